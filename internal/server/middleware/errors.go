package middleware

import (
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/apperr"
)

const msgSomethingWrong = "Something went wrong."

// ErrorHandler is the single place errors become responses. Operational errors keep their status
// and message. Anything else is a 500; in production its detail is replaced by a generic message.
func ErrorHandler(production bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(err, production)
		if status >= http.StatusInternalServerError {
			log.Printf("server: %s %s: %v", c.Method(), c.Path(), err)
		}
		return c.Status(status).JSON(body)
	}
}

func errorResponse(err error, production bool) (int, fiber.Map) {
	if e, ok := apperr.As(err); ok && e.Kind != apperr.KindInternal {
		body := fiber.Map{"status": "error", "message": e.Message}
		if !production && e.Err != nil {
			body["error"] = e.Err.Error()
		}
		return e.Status, body
	}
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code < http.StatusInternalServerError {
		return fe.Code, fiber.Map{"status": "error", "message": fe.Message}
	}
	if production {
		return http.StatusInternalServerError, fiber.Map{"status": "error", "message": msgSomethingWrong}
	}
	return http.StatusInternalServerError, fiber.Map{"status": "error", "message": err.Error(), "error": err.Error()}
}
