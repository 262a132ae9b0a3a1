package domain

import (
	"errors"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

var errResetPair = errors.New("must be set together with its expiry")

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// User is the account entity. PasswordHash is never rendered to clients.
// ResetTokenHash and ResetTokenExpiresAt are both set or both nil.
type User struct {
	ID                  string
	Name                string
	Email               string // lowercased; unique
	Photo               string
	Role                Role
	PasswordHash        string
	PasswordChangedAt   *time.Time
	ResetTokenHash      *string
	ResetTokenExpiresAt *time.Time
	Active              bool // false after the account deletes itself
	CreatedAt           time.Time
}

type Role string

const (
	RoleStandard Role = "standard"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStandard || r == RoleAdmin
}

// NormalizeEmail trims and lowercases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ProfileRules returns the validation rules for the client-editable profile fields, keyed by field name.
func ProfileRules() map[string][]validation.Rule {
	return map[string][]validation.Rule{
		"name":  {validation.Required, validation.Length(1, 200)},
		"email": {validation.Required, is.Email},
		"photo": {validation.Length(0, 500)},
		"role":  {validation.Required, validation.In(string(RoleStandard), string(RoleAdmin))},
	}
}

// ValidateField validates value against the profile rule for field. Unknown fields pass.
func ValidateField(field string, value string) error {
	rules, ok := ProfileRules()[field]
	if !ok {
		return nil
	}
	return validation.Validate(value, rules...)
}

// Validate validates the user for persistence. Returns validation.Errors keyed by field name.
func (u *User) Validate() error {
	errs := validation.Errors{
		"name":  ValidateField("name", u.Name),
		"email": ValidateField("email", u.Email),
		"photo": ValidateField("photo", u.Photo),
		"role":  ValidateField("role", string(u.Role)),
		"password": validation.Validate(u.PasswordHash, validation.Required),
	}
	if (u.ResetTokenHash == nil) != (u.ResetTokenExpiresAt == nil) {
		errs["passwordResetToken"] = errResetPair
	}
	return errs.Filter()
}

// ChangedPasswordAfter reports whether the password changed after a token issued at issuedAt.
// Both instants are compared at millisecond precision, the resolution a session token carries.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.UnixMilli() < u.PasswordChangedAt.UnixMilli()
}

// ResetPending reports whether a reset token is set and unexpired at now.
func (u *User) ResetPending(now time.Time) bool {
	return u.ResetTokenHash != nil && u.ResetTokenExpiresAt != nil && u.ResetTokenExpiresAt.After(now)
}
