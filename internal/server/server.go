// Package server builds the Fiber application and its route table.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	healthhandler "account-service/internal/health/handler"
	identityhandler "account-service/internal/identity/handler"
	identityservice "account-service/internal/identity/service"
	notifyhandler "account-service/internal/notify/handler"
	"account-service/internal/policy/engine"
	"account-service/internal/resource"
	resourcehandler "account-service/internal/resource/handler"
	"account-service/internal/server/middleware"
	"account-service/internal/user/domain"
	userhandler "account-service/internal/user/handler"
	userservice "account-service/internal/user/service"
)

// Options are the transport settings taken from config.
type Options struct {
	// Production hides internal error detail, marks the session cookie Secure and disables the access log.
	Production bool
	// BodyLimit caps request bodies in bytes.
	BodyLimit int
	// CookieTTL is the session cookie lifetime.
	CookieTTL time.Duration
	// QueryDefaultLimit is the list page size when a request has no limit.
	QueryDefaultLimit int
}

// Deps holds the services behind the routes.
type Deps struct {
	Auth     *identityservice.AuthService
	Profiles *userservice.Profiles
	// Users is the admin CRUD service over accounts.
	Users *resource.Service[domain.User]
	Authz engine.Authorizer
	// HealthPinger is used by GET /health (e.g. *sql.DB). If nil, the database check is skipped.
	HealthPinger healthhandler.Pinger
	// HealthPolicyChecker is used by GET /health. If nil, the policy check is skipped.
	HealthPolicyChecker healthhandler.PolicyChecker
	// Outbox backs GET /api/v1/dev/outbox/:email. If nil, the route is not registered.
	Outbox notifyhandler.Reader
}

// New returns the application with every route registered.
//
// Routes under /api/v1/users, in match order. Guards are attached per route, so a path no
// route matches gets 404 (or 405 for a known path) before any token check:
//   - POST /signup, POST /login, POST /forgotPassword, PATCH /resetPassword/:token
//   - PATCH /changePassword, GET|PATCH|DELETE /me (authenticated)
//   - GET|POST /, GET|PATCH|DELETE /:id (authenticated, admin)
func New(opts Options, deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "account-service",
		BodyLimit:             opts.BodyLimit,
		ErrorHandler:          middleware.ErrorHandler(opts.Production),
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	if !opts.Production {
		app.Use(logger.New())
	}
	app.Use(middleware.RequestTelemetry(map[string]bool{"/health": true}))

	app.Get("/health", healthhandler.NewHandler(deps.HealthPinger, deps.HealthPolicyChecker).Check)

	api := app.Group("/api/v1")
	if deps.Outbox != nil && !opts.Production {
		notifyhandler.NewHandler(deps.Outbox).Mount(api.Group("/dev"))
	}

	users := api.Group("/users")
	auth := identityhandler.NewHandler(deps.Auth, identityhandler.CookieConfig{TTL: opts.CookieTTL, Secure: opts.Production})
	auth.MountPublic(users)

	protect := middleware.Protect(deps.Auth)
	auth.MountProtected(users, protect)
	userhandler.NewHandler(deps.Profiles).Mount(users, protect)
	resourcehandler.New(deps.Users, opts.QueryDefaultLimit).Mount(users, protect, middleware.Restrict(deps.Authz, domain.RoleAdmin))

	return app
}
