package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"account-service/internal/apperr"
	"account-service/internal/notify"
	"account-service/internal/security"
	"account-service/internal/telemetry"
	"account-service/internal/user/domain"
	userrepo "account-service/internal/user/repository"
)

const resetPrefix = "http://localhost/api/v1/users/resetPassword/"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg notify.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() (notify.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return notify.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []*telemetry.Event
}

func (r *recordingEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingEmitter) has(typ telemetry.EventType) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, e := range r.events {
			if e.Type == typ {
				r.mu.Unlock()
				return true
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

type fixture struct {
	svc     *AuthService
	store   *userrepo.Store
	mailer  *fakeMailer
	emitter *recordingEmitter
	clock   *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	store := userrepo.NewStore(userrepo.NewMemoryRepository())
	mailer := &fakeMailer{}
	emitter := &recordingEmitter{}
	tokens := security.NewTestTokenProvider().WithClock(clock.Now)
	svc := NewAuthService(store, security.NewHasher(4, 2), tokens, mailer, emitter, 10*time.Minute)
	svc.now = clock.Now
	return &fixture{svc: svc, store: store, mailer: mailer, emitter: emitter, clock: clock}
}

func (f *fixture) register(t *testing.T, email, password string) *Session {
	t.Helper()
	sess, err := f.svc.Register(context.Background(), RegisterInput{
		Name:            "Ada",
		Email:           email,
		Password:        password,
		ConfirmPassword: password,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return sess
}

func wantKind(t *testing.T, err error, kind apperr.Kind, msg string) {
	t.Helper()
	e, ok := apperr.As(err)
	if !ok {
		t.Fatalf("err = %v, want apperr %s", err, kind)
	}
	if e.Kind != kind {
		t.Errorf("kind = %s, want %s (message %q)", e.Kind, kind, e.Message)
	}
	if msg != "" && e.Message != msg {
		t.Errorf("message = %q, want %q", e.Message, msg)
	}
}

func TestRegister_ThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, " Ada@Example.com ", "correct horse")

	if reg.User.Email != "ada@example.com" {
		t.Errorf("email = %q, want normalized", reg.User.Email)
	}
	if reg.User.Role != domain.RoleStandard {
		t.Errorf("role = %q, want standard", reg.User.Role)
	}
	if reg.User.PasswordHash == "" || reg.User.PasswordHash == "correct horse" {
		t.Errorf("password hash = %q, want a bcrypt hash", reg.User.PasswordHash)
	}

	sess, err := f.svc.Login(ctx, "ADA@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := f.svc.tokens.Verify(sess.Token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != reg.User.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, reg.User.ID)
	}
	if !f.emitter.has(telemetry.EventSignup) || !f.emitter.has(telemetry.EventLoginSucceeded) {
		t.Error("signup and login events should be emitted")
	}
}

func TestRegister_PasswordMismatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Name: "Ada", Email: "ada@example.com", Password: "password1", ConfirmPassword: "password2"})
	wantKind(t, err, apperr.KindPasswordMismatch, "Passwords do not match.")

	if u, _ := f.store.GetByEmail(ctx, "ada@example.com"); u != nil {
		t.Error("no account should be stored after a mismatch")
	}
}

func TestRegister_Validation(t *testing.T) {
	f := newFixture(t)
	testCases := []struct {
		name  string
		in    RegisterInput
		field string
	}{
		{"missing name", RegisterInput{Email: "a@example.com", Password: "password1", ConfirmPassword: "password1"}, "name"},
		{"bad email", RegisterInput{Name: "A", Email: "nope", Password: "password1", ConfirmPassword: "password1"}, "email"},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "short", ConfirmPassword: "short"}, "password"},
		{"missing confirmation", RegisterInput{Name: "A", Email: "a@example.com", Password: "password1"}, "confirmPassword"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Register(context.Background(), tc.in)
			wantKind(t, err, apperr.KindValidation, "")
			if !strings.Contains(err.Error(), tc.field+":") {
				t.Errorf("error %q should name %s", err.Error(), tc.field)
			}
		})
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "password1")
	_, err := f.svc.Register(context.Background(), RegisterInput{
		Name: "Other", Email: "ADA@example.com", Password: "password2", ConfirmPassword: "password2",
	})
	wantKind(t, err, apperr.KindDuplicate, "")
	if !strings.Contains(err.Error(), "email") {
		t.Errorf("error %q should name the email field", err.Error())
	}
}

func TestNewAccount_Role(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.NewAccount(context.Background(), RegisterInput{
		Name: "Root", Email: "root@example.com", Password: "password1", ConfirmPassword: "password1",
	}, domain.RoleAdmin)
	if err != nil {
		t.Fatalf("NewAccount: %v", err)
	}
	if u.Role != domain.RoleAdmin || !u.Active || u.ID == "" {
		t.Errorf("account = %+v", u)
	}
	if _, err := f.svc.NewAccount(context.Background(), RegisterInput{
		Name: "Root", Email: "root@example.com", Password: "password1", ConfirmPassword: "password1",
	}, domain.Role("owner")); err == nil {
		t.Error("unknown role should fail validation")
	}
}

func TestLogin_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com", "password1")

	_, err := f.svc.Login(ctx, "", "password1")
	wantKind(t, err, apperr.KindValidation, "Please provide email and password.")
	_, err = f.svc.Login(ctx, "ada@example.com", "")
	wantKind(t, err, apperr.KindValidation, "Please provide email and password.")

	_, unknownErr := f.svc.Login(ctx, "nobody@example.com", "password1")
	_, wrongErr := f.svc.Login(ctx, "ada@example.com", "password2")
	wantKind(t, unknownErr, apperr.KindInvalidCredentials, "Incorrect email or password")
	wantKind(t, wrongErr, apperr.KindInvalidCredentials, "Incorrect email or password")
	if unknownErr.Error() != wrongErr.Error() {
		t.Errorf("unknown email and wrong password must fail identically: %q vs %q", unknownErr, wrongErr)
	}
	if e, _ := apperr.As(wrongErr); e.Status != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", e.Status)
	}
	if !f.emitter.has(telemetry.EventLoginFailed) {
		t.Error("login failure should be emitted")
	}
}

func TestLogin_DeactivatedAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")
	if ok, err := f.store.Deactivate(ctx, reg.User.ID); err != nil || !ok {
		t.Fatalf("Deactivate = %v, %v", ok, err)
	}
	_, err := f.svc.Login(ctx, "ada@example.com", "password1")
	wantKind(t, err, apperr.KindInvalidCredentials, "Incorrect email or password")
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")

	f.clock.Advance(10 * time.Second)
	sess, err := f.svc.ChangePassword(ctx, reg.User, ChangePasswordInput{
		Email: "ada@example.com", Password: "password1", NewPassword: "password2", ConfirmNewPassword: "password2",
	})
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if sess.User.PasswordChangedAt == nil {
		t.Fatal("PasswordChangedAt should be set")
	}

	_, err = f.svc.Authenticate(ctx, reg.Token)
	wantKind(t, err, apperr.KindUnauthenticated, "User recently changed password. Please login again.")
	if _, err := f.svc.Authenticate(ctx, sess.Token); err != nil {
		t.Errorf("token issued after the change should authenticate: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", "password1"); err == nil {
		t.Error("old password should no longer log in")
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", "password2"); err != nil {
		t.Errorf("new password should log in: %v", err)
	}
	if !f.emitter.has(telemetry.EventPasswordChanged) {
		t.Error("password change should be emitted")
	}
}

func TestChangePassword_StaleWithinTwoSeconds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")

	f.clock.Advance(1500 * time.Millisecond)
	sess, err := f.svc.ChangePassword(ctx, reg.User, ChangePasswordInput{
		Email: "ada@example.com", Password: "password1", NewPassword: "password2", ConfirmNewPassword: "password2",
	})
	if err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	_, err = f.svc.Authenticate(ctx, reg.Token)
	wantKind(t, err, apperr.KindUnauthenticated, "User recently changed password. Please login again.")
	if _, err := f.svc.Authenticate(ctx, sess.Token); err != nil {
		t.Errorf("token issued right after the change should authenticate: %v", err)
	}
}

func TestChangePassword_Failures(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ada@example.com", "password1")
	testCases := []struct {
		name string
		in   ChangePasswordInput
		kind apperr.Kind
	}{
		{"wrong current password", ChangePasswordInput{Email: "ada@example.com", Password: "nope1234", NewPassword: "password2", ConfirmNewPassword: "password2"}, apperr.KindInvalidCredentials},
		{"other email", ChangePasswordInput{Email: "eve@example.com", Password: "password1", NewPassword: "password2", ConfirmNewPassword: "password2"}, apperr.KindInvalidCredentials},
		{"mismatch", ChangePasswordInput{Email: "ada@example.com", Password: "password1", NewPassword: "password2", ConfirmNewPassword: "password3"}, apperr.KindPasswordMismatch},
		{"short new password", ChangePasswordInput{Email: "ada@example.com", Password: "password1", NewPassword: "short", ConfirmNewPassword: "short"}, apperr.KindValidation},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.ChangePassword(context.Background(), reg.User, tc.in)
			wantKind(t, err, tc.kind, "")
			if e, _ := apperr.As(err); e.Status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", e.Status)
			}
		})
	}
	if _, err := f.svc.Login(context.Background(), "ada@example.com", "password1"); err != nil {
		t.Errorf("failed changes must keep the old password: %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")

	token, err := f.svc.ForgotPassword(ctx, "ADA@example.com", resetPrefix)
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	msg, ok := f.mailer.last()
	if !ok {
		t.Fatal("reset mail should be sent")
	}
	if msg.To != "ada@example.com" {
		t.Errorf("To = %q", msg.To)
	}
	if msg.Subject != "Your password reset token (valid only for 10 minutes)" {
		t.Errorf("Subject = %q", msg.Subject)
	}
	if !strings.Contains(msg.Text, resetPrefix+token) {
		t.Errorf("mail text should carry the reset URL: %q", msg.Text)
	}

	stored, _ := f.store.FindByID(ctx, reg.User.ID)
	if stored.ResetTokenHash == nil || *stored.ResetTokenHash == token {
		t.Fatal("only the token hash should be stored")
	}
	if *stored.ResetTokenHash != security.HashResetToken(token) {
		t.Error("stored hash should match the mailed token")
	}

	f.clock.Advance(5 * time.Second)
	sess, err := f.svc.ResetPassword(ctx, token, "password2", "password2")
	if err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if sess.User.ResetTokenHash != nil || sess.User.ResetTokenExpiresAt != nil {
		t.Error("reset fields should be cleared together")
	}
	if _, err := f.svc.Authenticate(ctx, sess.Token); err != nil {
		t.Errorf("session after reset should authenticate: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", "password2"); err != nil {
		t.Errorf("new password should log in: %v", err)
	}

	_, err = f.svc.ResetPassword(ctx, token, "password3", "password3")
	wantKind(t, err, apperr.KindInvalidOrExpiredToken, "Token is invalid or has expired.")
	if !f.emitter.has(telemetry.EventResetRequested) || !f.emitter.has(telemetry.EventResetCompleted) {
		t.Error("reset events should be emitted")
	}
}

func TestResetPassword_Expired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com", "password1")
	token, err := f.svc.ForgotPassword(ctx, "ada@example.com", resetPrefix)
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}
	f.clock.Advance(11 * time.Minute)
	_, err = f.svc.ResetPassword(ctx, token, "password2", "password2")
	wantKind(t, err, apperr.KindInvalidOrExpiredToken, "")
	if e, _ := apperr.As(err); e.Status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", e.Status)
	}
}

func TestResetPassword_NeverIssued(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ada@example.com", "password1")
	for _, token := range []string{"", "deadbeef"} {
		_, err := f.svc.ResetPassword(context.Background(), token, "password2", "password2")
		wantKind(t, err, apperr.KindInvalidOrExpiredToken, "")
	}
}

func TestResetPassword_MismatchKeepsToken(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com", "password1")
	token, _ := f.svc.ForgotPassword(ctx, "ada@example.com", resetPrefix)

	_, err := f.svc.ResetPassword(ctx, token, "password2", "password3")
	wantKind(t, err, apperr.KindPasswordMismatch, "")
	if _, err := f.svc.ResetPassword(ctx, token, "password2", "password2"); err != nil {
		t.Errorf("token should survive a rejected attempt: %v", err)
	}
}

// lookupBarrier releases reset token lookups only once every expected caller has read the record.
type lookupBarrier struct {
	*userrepo.Store
	arrived sync.WaitGroup
}

func (b *lookupBarrier) GetByResetToken(ctx context.Context, hash string, now time.Time) (*domain.User, error) {
	u, err := b.Store.GetByResetToken(ctx, hash, now)
	b.arrived.Done()
	b.arrived.Wait()
	return u, err
}

func TestResetPassword_ConcurrentUseSucceedsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "ada@example.com", "password1")
	token, err := f.svc.ForgotPassword(ctx, "ada@example.com", resetPrefix)
	if err != nil {
		t.Fatalf("ForgotPassword: %v", err)
	}

	passwords := []string{"password2", "password3"}
	barrier := &lookupBarrier{Store: f.store}
	barrier.arrived.Add(len(passwords))
	f.svc.users = barrier

	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, pw := range passwords {
		wg.Add(1)
		go func(i int, pw string) {
			defer wg.Done()
			_, errs[i] = f.svc.ResetPassword(ctx, token, pw, pw)
		}(i, pw)
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			if winner >= 0 {
				t.Fatal("both resets with the same token succeeded")
			}
			winner = i
			continue
		}
		wantKind(t, err, apperr.KindInvalidOrExpiredToken, "Token is invalid or has expired.")
	}
	if winner < 0 {
		t.Fatal("no reset succeeded")
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", passwords[winner]); err != nil {
		t.Errorf("winning password should log in: %v", err)
	}
	if _, err := f.svc.Login(ctx, "ada@example.com", passwords[1-winner]); err == nil {
		t.Error("losing password must not be stored")
	}
}

func TestForgotPassword_UnknownEmail(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ForgotPassword(context.Background(), "nobody@example.com", resetPrefix)
	wantKind(t, err, apperr.KindNotFound, "There is no user with this email.")
	if _, ok := f.mailer.last(); ok {
		t.Error("no mail should be sent")
	}
}

func TestForgotPassword_MailFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")
	f.mailer.err = errors.New("smtp down")

	token, err := f.svc.ForgotPassword(ctx, "ada@example.com", resetPrefix)
	wantKind(t, err, apperr.KindNotificationFailed, "There was an error sending the email. Please try again later.")
	if token != "" {
		t.Error("no token should be returned when mail fails")
	}
	stored, _ := f.store.FindByID(ctx, reg.User.ID)
	if stored.ResetTokenHash != nil || stored.ResetTokenExpiresAt != nil {
		t.Error("reset token must be rolled back after a mail failure")
	}
	if !f.emitter.has(telemetry.EventNotificationFailed) {
		t.Error("notification failure should be emitted")
	}
}

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")

	u, err := f.svc.Authenticate(ctx, reg.Token)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.ID != reg.User.ID {
		t.Errorf("id = %q, want %q", u.ID, reg.User.ID)
	}

	_, err = f.svc.Authenticate(ctx, "")
	wantKind(t, err, apperr.KindUnauthenticated, "You are not logged in. Please login to have access.")

	tampered := reg.Token[:len(reg.Token)-2] + "xx"
	_, err = f.svc.Authenticate(ctx, tampered)
	wantKind(t, err, apperr.KindUnauthenticated, "Invalid token. Please login again.")
	if !errors.Is(err, security.ErrInvalidToken) {
		t.Error("invalid token cause should be kept")
	}

	other := security.NewTestTokenProvider()
	foreign, _, _ := other.WithClock(f.clock.Now).Sign("not-a-uuid")
	_, err = f.svc.Authenticate(ctx, foreign)
	wantKind(t, err, apperr.KindUnauthenticated, "User no longer exists.")
}

func TestAuthenticate_Expired(t *testing.T) {
	f := newFixture(t)
	reg := f.register(t, "ada@example.com", "password1")
	f.clock.Advance(2 * time.Hour)
	_, err := f.svc.Authenticate(context.Background(), reg.Token)
	wantKind(t, err, apperr.KindUnauthenticated, "Your token has expired. Please login again.")
	if !errors.Is(err, security.ErrExpiredToken) {
		t.Error("expired token cause should be kept")
	}
}

func TestAuthenticate_UserGone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	reg := f.register(t, "ada@example.com", "password1")
	if _, err := f.store.Deactivate(ctx, reg.User.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}
	_, err := f.svc.Authenticate(ctx, reg.Token)
	wantKind(t, err, apperr.KindUnauthenticated, "User no longer exists.")
	if !f.emitter.has(telemetry.EventAccessDenied) {
		t.Error("access denial should be emitted")
	}
}
