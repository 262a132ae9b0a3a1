package middleware

import (
	"context"
	"slices"
	"strings"

	"github.com/gofiber/fiber/v2"

	"account-service/internal/platform/rbac"
	"account-service/internal/policy/engine"
	"account-service/internal/user/domain"
)

const bearerPrefix = "bearer "

// Authenticator resolves a bearer token into an account.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Protect authenticates the Authorization: Bearer token and attaches the account to the request context.
// A missing or malformed header reaches the Authenticator as an empty token.
func Protect(auth Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := auth.Authenticate(c.UserContext(), extractBearer(c.Get(fiber.HeaderAuthorization)))
		if err != nil {
			return err
		}
		c.SetUserContext(WithUser(c.UserContext(), u))
		return c.Next()
	}
}

// Chain returns guards followed by h in a new slice, for registering guards on a single route.
// Route-level guards only run for requests that match the route, unlike Use on a group prefix.
func Chain(guards []fiber.Handler, h fiber.Handler) []fiber.Handler {
	return append(slices.Clip(guards), h)
}

// Restrict lets the request through only if the account attached by Protect has one of roles.
func Restrict(authz engine.Authorizer, roles ...domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, _ := CurrentUser(c)
		if err := rbac.RestrictTo(c.UserContext(), authz, u, roles...); err != nil {
			return err
		}
		return c.Next()
	}
}

// extractBearer returns the token from an Authorization header value, or "" if missing or malformed.
func extractBearer(header string) string {
	v := strings.TrimSpace(header)
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
