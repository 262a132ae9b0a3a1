// Package notify delivers account mail: an HTTP mail-API client for deployments and an
// in-memory outbox for development (GET /api/v1/dev/outbox/:email).
package notify

import (
	"context"
	"time"
)

// Message is a plain-text mail.
type Message struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sentAt"`
}

// Mailer sends a message. Implementations must not log Text, which can carry reset tokens.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
