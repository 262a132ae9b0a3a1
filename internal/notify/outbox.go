package notify

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultRetention is how long the outbox keeps a message.
const DefaultRetention = time.Hour

// Outbox is a Mailer that keeps messages in memory by recipient instead of sending them.
// Dev only; config refuses it in production.
type Outbox struct {
	mu        sync.RWMutex
	m         map[string][]Message
	retention time.Duration
	nowF      func() time.Time
}

// NewOutbox returns an empty outbox that keeps messages for retention (DefaultRetention if <= 0).
func NewOutbox(retention time.Duration) *Outbox {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Outbox{
		m:         make(map[string][]Message),
		retention: retention,
		nowF:      func() time.Time { return time.Now().UTC() },
	}
}

// Send stores msg under its lowercased recipient.
func (o *Outbox) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = o.nowF()
	}
	key := strings.ToLower(strings.TrimSpace(msg.To))
	o.mu.Lock()
	defer o.mu.Unlock()
	o.m[key] = append(o.m[key], msg)
	return nil
}

// Messages returns the unexpired messages sent to email, oldest first. Expired messages are dropped.
func (o *Outbox) Messages(ctx context.Context, email string) []Message {
	key := strings.ToLower(strings.TrimSpace(email))
	cutoff := o.nowF().Add(-o.retention)
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.m[key][:0]
	for _, msg := range o.m[key] {
		if msg.SentAt.After(cutoff) {
			kept = append(kept, msg)
		}
	}
	if len(kept) == 0 {
		delete(o.m, key)
		return []Message{}
	}
	o.m[key] = kept
	out := make([]Message, len(kept))
	copy(out, kept)
	return out
}
