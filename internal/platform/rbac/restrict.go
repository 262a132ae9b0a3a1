// Package rbac restricts routes by account role.
package rbac

import (
	"context"

	"account-service/internal/apperr"
	"account-service/internal/policy/engine"
	"account-service/internal/user/domain"
)

const msgNoPermission = "You do not have permission to perform this action."

// RestrictTo returns nil if user's role is one of roles, as decided by authz.
// A nil user is a wiring mistake (RestrictTo must run after authentication) and yields an Internal error.
func RestrictTo(ctx context.Context, authz engine.Authorizer, user *domain.User, roles ...domain.Role) error {
	if user == nil {
		return apperr.New(apperr.KindInternal, "rbac: RestrictTo called without an authenticated user")
	}
	allowed := make([]string, len(roles))
	for i, r := range roles {
		allowed[i] = string(r)
	}
	ok, err := authz.Allowed(ctx, string(user.Role), allowed)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "rbac: policy evaluation failed", err)
	}
	if !ok {
		return apperr.New(apperr.KindForbidden, msgNoPermission)
	}
	return nil
}
