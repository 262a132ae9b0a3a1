// Package telemetry carries security events (logins, password changes, resets) to an
// EventEmitter, normally the OTel log pipeline. Emission is best-effort.
package telemetry

import (
	"context"
	"time"
)

// EventType names a security event.
type EventType string

const (
	EventSignup             EventType = "account.signup"
	EventLoginSucceeded     EventType = "auth.login.succeeded"
	EventLoginFailed        EventType = "auth.login.failed"
	EventAccessDenied       EventType = "auth.access.denied"
	EventPasswordChanged    EventType = "password.changed"
	EventResetRequested     EventType = "password.reset.requested"
	EventResetCompleted     EventType = "password.reset.completed"
	EventNotificationFailed EventType = "password.reset.notification_failed"
	EventAccountDeactivated EventType = "account.deactivated"
)

// Event is one security event. UserID is empty when the account is unknown.
// Reason is a short machine-readable cause for failures; it never carries secrets.
type Event struct {
	Type      EventType
	UserID    string
	Reason    string
	Source    string
	CreatedAt time.Time
}

// EventEmitter emits security events (e.g. to OTel Logs). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}
