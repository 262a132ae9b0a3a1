// Package service implements the password lifecycle (register, login, change, forgot, reset)
// and the session check behind protected routes.
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"account-service/internal/apperr"
	"account-service/internal/notify"
	"account-service/internal/resource"
	"account-service/internal/security"
	"account-service/internal/telemetry"
	"account-service/internal/user/domain"
)

// UserStore is the account storage the auth service needs. *repository.Store implements it.
type UserStore interface {
	FindByID(ctx context.Context, id string) (*domain.User, error)
	Create(ctx context.Context, u *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByResetToken(ctx context.Context, hash string, now time.Time) (*domain.User, error)
	SetPassword(ctx context.Context, id, hash string, changedAt time.Time) (*domain.User, error)
	ConsumeResetToken(ctx context.Context, id, tokenHash string, now time.Time, passwordHash string, changedAt time.Time) (*domain.User, error)
	SetResetToken(ctx context.Context, id, hash string, expiresAt time.Time) (*domain.User, error)
	ClearResetToken(ctx context.Context, id string) (*domain.User, error)
}

// Session is a signed-in account and its session token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// RegisterInput is the signup body.
type RegisterInput struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Photo           string `json:"photo"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// ChangePasswordInput is the change-password body. Email must be the caller's own.
type ChangePasswordInput struct {
	Email              string `json:"email"`
	Password           string `json:"password"`
	NewPassword        string `json:"newPassword"`
	ConfirmNewPassword string `json:"confirmNewPassword"`
}

// AuthService implements the password lifecycle over a UserStore.
type AuthService struct {
	users    UserStore
	hasher   *security.Hasher
	tokens   *security.TokenProvider
	mailer   notify.Mailer
	emitter  telemetry.EventEmitter
	resetTTL time.Duration
	now      func() time.Time
}

// NewAuthService returns an AuthService. emitter may be nil.
func NewAuthService(
	users UserStore,
	hasher *security.Hasher,
	tokens *security.TokenProvider,
	mailer notify.Mailer,
	emitter telemetry.EventEmitter,
	resetTTL time.Duration,
) *AuthService {
	return &AuthService{
		users:    users,
		hasher:   hasher,
		tokens:   tokens,
		mailer:   mailer,
		emitter:  emitter,
		resetTTL: resetTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Register creates a standard account and signs it in.
// Confirmation is checked before the password is hashed. A taken email is a Duplicate error.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.NewAccount(ctx, in, domain.RoleStandard)
	if err != nil {
		return nil, err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	s.emit(ctx, telemetry.EventSignup, u.ID, "")
	return s.issue(u)
}

// NewAccount validates in and returns an unsaved account with a fresh id and hashed password.
func (s *AuthService) NewAccount(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.New().String(),
		Name:      in.Name,
		Email:     domain.NormalizeEmail(in.Email),
		Photo:     in.Photo,
		Role:      role,
		Active:    true,
		CreatedAt: s.now(),
	}
	errs := validation.Errors{
		"name":            domain.ValidateField("name", u.Name),
		"email":           domain.ValidateField("email", u.Email),
		"photo":           domain.ValidateField("photo", u.Photo),
		"role":            domain.ValidateField("role", string(u.Role)),
		"password":        validatePassword(in.Password),
		"confirmPassword": validation.Validate(in.ConfirmPassword, validation.Required),
	}
	if err := errs.Filter(); err != nil {
		return nil, resource.Invalid(err)
	}
	if in.Password != in.ConfirmPassword {
		return nil, errPasswordMismatch()
	}
	hash, err := s.hasher.Hash(ctx, []byte(in.Password))
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if err := u.Validate(); err != nil {
		return nil, resource.Invalid(err)
	}
	return u, nil
}

// Login checks email and password and signs the account in.
// An unknown email and a wrong password fail identically.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, errMissingLoginInfo()
	}
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.emit(ctx, telemetry.EventLoginFailed, "", "unknown_email")
		return nil, errIncorrectLogin()
	}
	if err := s.checkPassword(ctx, u, password); err != nil {
		if isMismatch(err) {
			s.emit(ctx, telemetry.EventLoginFailed, u.ID, "wrong_password")
			return nil, errIncorrectLogin()
		}
		return nil, err
	}
	s.emit(ctx, telemetry.EventLoginSucceeded, u.ID, "")
	return s.issue(u)
}

// ChangePassword re-verifies the caller's current password, stores the new one and signs in again.
// Tokens issued before the change stop authenticating.
func (s *AuthService) ChangePassword(ctx context.Context, caller *domain.User, in ChangePasswordInput) (*Session, error) {
	if caller == nil {
		return nil, errUnauthenticated(msgMissingToken, nil)
	}
	u, err := s.users.FindByID(ctx, caller.ID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errUnauthenticated(msgUserGone, nil)
	}
	if in.Password == "" || domain.NormalizeEmail(in.Email) != u.Email {
		return nil, errIncorrectCurrentPassword()
	}
	if err := s.checkPassword(ctx, u, in.Password); err != nil {
		if isMismatch(err) {
			return nil, errIncorrectCurrentPassword()
		}
		return nil, err
	}
	hash, err := s.newPasswordHash(ctx, in.NewPassword, in.ConfirmNewPassword, "newPassword", "confirmNewPassword")
	if err != nil {
		return nil, err
	}
	if u, err = s.users.SetPassword(ctx, u.ID, hash, s.now()); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errUnauthenticated(msgUserGone, nil)
	}
	s.emit(ctx, telemetry.EventPasswordChanged, u.ID, "")
	return s.issue(u)
}

// ForgotPassword stores a reset token for the account with email and mails its cleartext inside
// resetURLPrefix+token. The cleartext is returned once and never stored. If the mail cannot be sent
// the token is cleared again and a NotificationFailed error is returned.
func (s *AuthService) ForgotPassword(ctx context.Context, email, resetURLPrefix string) (string, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.New(apperr.KindNotFound, msgUnknownEmail)
	}
	token, hash, err := security.NewResetToken()
	if err != nil {
		return "", err
	}
	if u, err = s.users.SetResetToken(ctx, u.ID, hash, s.now().Add(s.resetTTL)); err != nil {
		return "", err
	}
	if u == nil {
		return "", apperr.New(apperr.KindNotFound, msgUnknownEmail)
	}
	s.emit(ctx, telemetry.EventResetRequested, u.ID, "")

	msg := notify.Message{
		To:      u.Email,
		Subject: fmt.Sprintf("Your password reset token (valid only for %d minutes)", int(s.resetTTL.Minutes())),
		Text: fmt.Sprintf("Forgot your password? Submit a PATCH request with your new password and confirmPassword to: %s.\n"+
			" If you didn't forget your password, please ignore this email!", resetURLPrefix+token),
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		log.Printf("identity: reset mail for user %s failed: %v", u.ID, err)
		if _, clearErr := s.users.ClearResetToken(ctx, u.ID); clearErr != nil {
			log.Printf("identity: clear reset token for user %s: %v", u.ID, clearErr)
		}
		s.emit(ctx, telemetry.EventNotificationFailed, u.ID, "mail_send")
		return "", apperr.Wrap(apperr.KindNotificationFailed, msgNotificationFailed, err)
	}
	return token, nil
}

// ResetPassword consumes an unexpired reset token, sets the new password and signs in.
// The token is checked again in the write that consumes it, so of two concurrent resets
// with the same token only one succeeds.
func (s *AuthService) ResetPassword(ctx context.Context, token, password, confirm string) (*Session, error) {
	if token == "" {
		return nil, errResetTokenInvalid()
	}
	tokenHash := security.HashResetToken(token)
	now := s.now()
	u, err := s.users.GetByResetToken(ctx, tokenHash, now)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.ResetPending(now) {
		return nil, errResetTokenInvalid()
	}
	hash, err := s.newPasswordHash(ctx, password, confirm, "password", "confirmPassword")
	if err != nil {
		return nil, err
	}
	if u, err = s.users.ConsumeResetToken(ctx, u.ID, tokenHash, now, hash, s.now()); err != nil {
		return nil, err
	}
	if u == nil {
		return nil, errResetTokenInvalid()
	}
	s.emit(ctx, telemetry.EventResetCompleted, u.ID, "")
	return s.issue(u)
}

// newPasswordHash validates a new password against its confirmation and hashes it.
// Field names label validation messages.
func (s *AuthService) newPasswordHash(ctx context.Context, password, confirm, passwordField, confirmField string) (string, error) {
	errs := validation.Errors{
		passwordField: validatePassword(password),
		confirmField:  validation.Validate(confirm, validation.Required),
	}
	if err := errs.Filter(); err != nil {
		return "", resource.Invalid(err)
	}
	if password != confirm {
		return "", errPasswordMismatch()
	}
	return s.hasher.Hash(ctx, []byte(password))
}

func (s *AuthService) checkPassword(ctx context.Context, u *domain.User, password string) error {
	if u.PasswordHash == "" {
		return errMismatch
	}
	return s.hasher.Compare(ctx, u.PasswordHash, []byte(password))
}

func (s *AuthService) issue(u *domain.User) (*Session, error) {
	token, expiresAt, err := s.tokens.Sign(u.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: u, Token: token, ExpiresAt: expiresAt}, nil
}

func (s *AuthService) emit(ctx context.Context, typ telemetry.EventType, userID, reason string) {
	telemetry.EmitAsync(s.emitter, ctx, &telemetry.Event{Type: typ, UserID: userID, Reason: reason, Source: "identity"})
}

func validatePassword(password string) error {
	return validation.Validate(password, validation.Required, validation.RuneLength(domain.MinPasswordLength, 72))
}

var errMismatch = errors.New("identity: no password hash")

// isMismatch reports whether a comparison failed because the password was wrong rather than
// because hashing could not run (e.g. the context was canceled while waiting for a worker).
func isMismatch(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
