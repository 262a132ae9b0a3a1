// Package handler serves the dev-only outbox route. It is mounted only when the outbox is enabled outside production.
package handler

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/apperr"
	"account-service/internal/notify"
)

const devOutboxNote = "DEV MODE ONLY"

// Reader lists the messages kept for a recipient. *notify.Outbox implements it.
type Reader interface {
	Messages(ctx context.Context, email string) []notify.Message
}

// Handler exposes the outbox.
type Handler struct {
	outbox Reader
}

// NewHandler returns a Handler reading from outbox.
func NewHandler(outbox Reader) *Handler {
	return &Handler{outbox: outbox}
}

// Mount registers GET /outbox/:email on r.
func (h *Handler) Mount(r fiber.Router) {
	r.Get("/outbox/:email", h.Outbox)
}

// Outbox responds with the unexpired messages sent to :email. No messages is a 404.
func (h *Handler) Outbox(c *fiber.Ctx) error {
	email := c.Params("email")
	if email == "" {
		return apperr.New(apperr.KindValidation, "email is required")
	}
	msgs := h.outbox.Messages(c.UserContext(), email)
	if len(msgs) == 0 {
		return apperr.New(apperr.KindNotFound, "No mail for that address.")
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(msgs),
		"data":   msgs,
		"note":   devOutboxNote,
	})
}
