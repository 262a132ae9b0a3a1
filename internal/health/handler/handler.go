// Package handler serves the readiness probe.
package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

const checkTimeout = 2 * time.Second

// Pinger checks database connectivity. *sql.DB implements it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker checks that the authorization policy evaluates. *engine.OPAEvaluator implements it.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Handler reports readiness. Nil dependencies are skipped.
type Handler struct {
	pinger Pinger
	policy PolicyChecker
}

// NewHandler returns a Handler. Either argument may be nil.
func NewHandler(pinger Pinger, policy PolicyChecker) *Handler {
	return &Handler{pinger: pinger, policy: policy}
}

// Check responds 200 {status: "ok"} when every dependency answers, else 503 {status: "unavailable"}.
// Failure detail is logged and never returned.
func (h *Handler) Check(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), checkTimeout)
	defer cancel()
	if h.pinger != nil {
		if err := h.pinger.PingContext(ctx); err != nil {
			log.Printf("health: database: %v", err)
			return unavailable(c)
		}
	}
	if h.policy != nil {
		if err := h.policy.HealthCheck(ctx); err != nil {
			log.Printf("health: policy: %v", err)
			return unavailable(c)
		}
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func unavailable(c *fiber.Ctx) error {
	return c.Status(http.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
}
