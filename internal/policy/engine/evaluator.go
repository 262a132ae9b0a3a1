// Package engine decides role-based access with an in-process OPA Rego policy.
package engine

import "context"

// Authorizer decides whether role may use a route restricted to allowed.
type Authorizer interface {
	Allowed(ctx context.Context, role string, allowed []string) (bool, error)
}
