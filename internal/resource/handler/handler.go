// Package handler exposes a resource.Service as JSON CRUD routes.
package handler

import (
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/query"
	"account-service/internal/resource"
	"account-service/internal/server/middleware"
)

// Handler serves list/create/get/update/delete for T.
type Handler[T any] struct {
	svc          *resource.Service[T]
	defaultLimit int
}

// New returns a Handler for svc. defaultLimit is the page size when a list request has no limit.
func New[T any](svc *resource.Service[T], defaultLimit int) *Handler[T] {
	return &Handler[T]{svc: svc, defaultLimit: defaultLimit}
}

// Mount registers GET/POST on "/" and GET/PATCH/DELETE on "/:id" of r, each behind guards.
func (h *Handler[T]) Mount(r fiber.Router, guards ...fiber.Handler) {
	r.Get("/", middleware.Chain(guards, h.List)...)
	r.Post("/", middleware.Chain(guards, h.Create)...)
	r.Get("/:id", middleware.Chain(guards, h.Get)...)
	r.Patch("/:id", middleware.Chain(guards, h.Update)...)
	r.Delete("/:id", middleware.Chain(guards, h.Delete)...)
}

// List responds 200 {status, count, data} with the page selected by the query string.
func (h *Handler[T]) List(c *fiber.Ctx) error {
	spec, err := query.Parse(QueryValues(c), query.Options{DefaultLimit: h.defaultLimit})
	if err != nil {
		return err
	}
	recs, err := h.svc.List(c.UserContext(), spec)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"status": "success",
		"count":  len(recs),
		"data":   h.svc.Schema().RenderAll(recs, spec.Fields),
	})
}

// Create responds 201 {status, data}.
func (h *Handler[T]) Create(c *fiber.Ctx) error {
	rec, err := h.svc.Create(c.UserContext(), c.Body())
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(h.envelope(rec))
}

// Get responds 200 {status, data}.
func (h *Handler[T]) Get(c *fiber.Ctx) error {
	rec, err := h.svc.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(h.envelope(rec))
}

// Update responds 200 {status, data} with the updated record.
func (h *Handler[T]) Update(c *fiber.Ctx) error {
	rec, err := h.svc.Update(c.UserContext(), c.Params("id"), c.Body())
	if err != nil {
		return err
	}
	return c.JSON(h.envelope(rec))
}

// Delete responds 204 with no body.
func (h *Handler[T]) Delete(c *fiber.Ctx) error {
	if err := h.svc.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *Handler[T]) envelope(rec *T) fiber.Map {
	return fiber.Map{"status": "success", "data": h.svc.Schema().Render(rec, query.Projection{})}
}

// QueryValues copies the request's query string into url.Values, keeping repeated keys in order.
func QueryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		values.Add(string(k), string(v))
	})
	return values
}
