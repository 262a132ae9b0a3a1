package domain

import (
	"testing"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
)

func validUser() *User {
	return &User{
		ID:           "u-1",
		Name:         "Ann",
		Email:        "ann@example.com",
		Role:         RoleStandard,
		PasswordHash: "$2a$04$hash",
		Active:       true,
	}
}

func TestValidate(t *testing.T) {
	if err := validUser().Validate(); err != nil {
		t.Fatalf("valid user: %v", err)
	}

	expires := time.Now()
	tests := []struct {
		name  string
		mod   func(u *User)
		field string
	}{
		{"missing name", func(u *User) { u.Name = "" }, "name"},
		{"bad email", func(u *User) { u.Email = "not-an-email" }, "email"},
		{"unknown role", func(u *User) { u.Role = "root" }, "role"},
		{"no password hash", func(u *User) { u.PasswordHash = "" }, "password"},
		{"reset expiry without hash", func(u *User) { u.ResetTokenExpiresAt = &expires }, "passwordResetToken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mod(u)
			err := u.Validate()
			errs, ok := err.(validation.Errors)
			if !ok {
				t.Fatalf("err = %v (%T), want validation.Errors", err, err)
			}
			if errs[tt.field] == nil {
				t.Errorf("no error for %q in %v", tt.field, errs)
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ann@Example.COM "); got != "ann@example.com" {
		t.Errorf("NormalizeEmail = %q", got)
	}
}

func TestRoleValid(t *testing.T) {
	if !RoleAdmin.Valid() || !RoleStandard.Valid() || Role("user").Valid() {
		t.Error("role validity mismatch")
	}
}

func TestChangedPasswordAfter(t *testing.T) {
	u := validUser()
	iat := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	if u.ChangedPasswordAfter(iat) {
		t.Error("never-changed password should not invalidate tokens")
	}

	changed := iat.Add(time.Second)
	u.PasswordChangedAt = &changed
	if !u.ChangedPasswordAfter(iat) {
		t.Error("token issued before the change should be stale")
	}

	sameSecond := iat.Add(500 * time.Millisecond)
	u.PasswordChangedAt = &sameSecond
	if !u.ChangedPasswordAfter(iat) {
		t.Error("token issued earlier in the same second as the change should be stale")
	}

	u.PasswordChangedAt = &iat
	if u.ChangedPasswordAfter(iat.Add(400 * time.Microsecond)) {
		t.Error("token issued in the millisecond of the change should stay valid")
	}
}

func TestResetPending(t *testing.T) {
	now := time.Now()
	u := validUser()
	if u.ResetPending(now) {
		t.Error("no reset token set")
	}
	hash := "h"
	later := now.Add(time.Minute)
	u.ResetTokenHash, u.ResetTokenExpiresAt = &hash, &later
	if !u.ResetPending(now) {
		t.Error("unexpired reset token should be pending")
	}
	if u.ResetPending(later) {
		t.Error("reset token should expire at its expiry")
	}
}
