// Package middleware holds the Fiber middleware between the router and the handlers:
// bearer authentication, role restriction, request telemetry and the terminal error translator.
package middleware

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/user/domain"
)

type contextKey struct{ name string }

var userKey = contextKey{"user"}

// WithUser returns a context carrying the authenticated account.
func WithUser(ctx context.Context, u *domain.User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// UserFrom returns the authenticated account from ctx and true if set; otherwise nil, false.
func UserFrom(ctx context.Context) (*domain.User, bool) {
	u, ok := ctx.Value(userKey).(*domain.User)
	return u, ok && u != nil
}

// CurrentUser returns the account Protect attached to the request.
func CurrentUser(c *fiber.Ctx) (*domain.User, bool) {
	return UserFrom(c.UserContext())
}
