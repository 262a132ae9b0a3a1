// Package handler serves the signup, login and password routes under /users.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/identity/service"
	"account-service/internal/resource"
	"account-service/internal/server/middleware"
	"account-service/internal/user/domain"
	userhandler "account-service/internal/user/handler"
)

// CookieName is the session cookie set alongside every issued token.
const CookieName = "jwt"

const msgTokenSent = "Token was sent to email"

// Lifecycle is the password lifecycle the handlers call.
type Lifecycle interface {
	Register(ctx context.Context, in service.RegisterInput) (*service.Session, error)
	Login(ctx context.Context, email, password string) (*service.Session, error)
	ChangePassword(ctx context.Context, caller *domain.User, in service.ChangePasswordInput) (*service.Session, error)
	ForgotPassword(ctx context.Context, email, resetURLPrefix string) (string, error)
	ResetPassword(ctx context.Context, token, password, confirm string) (*service.Session, error)
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	TTL    time.Duration
	Secure bool
}

// Handler serves the auth routes.
type Handler struct {
	auth   Lifecycle
	cookie CookieConfig
}

// NewHandler returns a Handler.
func NewHandler(auth Lifecycle, cookie CookieConfig) *Handler {
	return &Handler{auth: auth, cookie: cookie}
}

// MountPublic registers the routes that need no session.
func (h *Handler) MountPublic(r fiber.Router) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/forgotPassword", h.ForgotPassword)
	r.Patch("/resetPassword/:token", h.ResetPassword)
}

// MountProtected registers the routes that need a session. guards, normally Protect, run before each.
func (h *Handler) MountProtected(r fiber.Router, guards ...fiber.Handler) {
	r.Patch("/changePassword", middleware.Chain(guards, h.ChangePassword)...)
}

func (h *Handler) Signup(c *fiber.Ctx) error {
	var in service.RegisterInput
	if err := resource.Decode(c.Body(), &in); err != nil {
		return err
	}
	sess, err := h.auth.Register(c.UserContext(), in)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusCreated, sess)
}

func (h *Handler) Login(c *fiber.Ctx) error {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := resource.Decode(c.Body(), &in); err != nil {
		return err
	}
	sess, err := h.auth.Login(c.UserContext(), in.Email, in.Password)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var in service.ChangePasswordInput
	if err := resource.Decode(c.Body(), &in); err != nil {
		return err
	}
	u, _ := middleware.CurrentUser(c)
	sess, err := h.auth.ChangePassword(c.UserContext(), u, in)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

// ForgotPassword mails a reset link pointing back at this server and responds 200 without the token.
func (h *Handler) ForgotPassword(c *fiber.Ctx) error {
	var in struct {
		Email string `json:"email"`
	}
	if err := resource.Decode(c.Body(), &in); err != nil {
		return err
	}
	prefix := c.Protocol() + "://" + c.Hostname() + "/api/v1/users/resetPassword/"
	if _, err := h.auth.ForgotPassword(c.UserContext(), in.Email, prefix); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "message": msgTokenSent})
}

func (h *Handler) ResetPassword(c *fiber.Ctx) error {
	var in struct {
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := resource.Decode(c.Body(), &in); err != nil {
		return err
	}
	sess, err := h.auth.ResetPassword(c.UserContext(), c.Params("token"), in.Password, in.ConfirmPassword)
	if err != nil {
		return err
	}
	return h.sendSession(c, http.StatusOK, sess)
}

// sendSession sets the session cookie and responds {status, token, data: {user}}.
func (h *Handler) sendSession(c *fiber.Ctx, status int, sess *service.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    sess.Token,
		Path:     "/",
		Expires:  time.Now().Add(h.cookie.TTL),
		HTTPOnly: true,
		Secure:   h.cookie.Secure,
	})
	return c.Status(status).JSON(fiber.Map{
		"status": "success",
		"token":  sess.Token,
		"data":   fiber.Map{"user": userhandler.Render(sess.User)},
	})
}
