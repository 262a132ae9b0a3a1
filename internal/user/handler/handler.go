// Package handler serves the /users/me routes.
package handler

import (
	"github.com/gofiber/fiber/v2"

	"account-service/internal/apperr"
	"account-service/internal/query"
	"account-service/internal/server/middleware"
	"account-service/internal/user/domain"
	"account-service/internal/user/repository"
	"account-service/internal/user/service"
)

// Handler serves the authenticated caller's own account.
type Handler struct {
	profiles *service.Profiles
}

// NewHandler returns a Handler backed by profiles.
func NewHandler(profiles *service.Profiles) *Handler {
	return &Handler{profiles: profiles}
}

// Mount registers GET, PATCH and DELETE on /me of r behind guards. Protect must be among them
// unless r already runs it.
func (h *Handler) Mount(r fiber.Router, guards ...fiber.Handler) {
	r.Get("/me", middleware.Chain(guards, h.GetMe)...)
	r.Patch("/me", middleware.Chain(guards, h.UpdateMe)...)
	r.Delete("/me", middleware.Chain(guards, h.DeleteMe)...)
}

// GetMe responds 200 {status, data} with the caller's account.
func (h *Handler) GetMe(c *fiber.Ctx) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": Render(u)})
}

// UpdateMe responds 200 {status, user} with the updated account.
func (h *Handler) UpdateMe(c *fiber.Ctx) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	updated, err := h.profiles.UpdateMe(c.UserContext(), u.ID, c.Body())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "user": Render(updated)})
}

// DeleteMe deactivates the caller and responds 200 {status, data: null}.
func (h *Handler) DeleteMe(c *fiber.Ctx) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.profiles.DeleteMe(c.UserContext(), u.ID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": "success", "data": nil})
}

// Render returns the client view of u. Password and reset fields are never included.
func Render(u *domain.User) map[string]any {
	return repository.Schema.Render(u, query.Projection{})
}

func caller(c *fiber.Ctx) (*domain.User, error) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		return nil, apperr.New(apperr.KindInternal, "user handler: route is not protected")
	}
	return u, nil
}
