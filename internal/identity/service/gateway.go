package service

import (
	"context"
	"errors"

	"account-service/internal/security"
	"account-service/internal/telemetry"
	"account-service/internal/user/domain"
	userrepo "account-service/internal/user/repository"
)

// Authenticate resolves a bearer token into the active account it was issued for.
// It stops at the first failing step: missing token, bad or expired signature, account gone,
// password changed after the token was issued. Every failure is Unauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, errUnauthenticated(msgMissingToken, nil)
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		if errors.Is(err, security.ErrExpiredToken) {
			return nil, errUnauthenticated(msgExpiredToken, err)
		}
		return nil, errUnauthenticated(msgInvalidToken, err)
	}
	id, err := userrepo.Schema.ParseID(claims.Subject)
	if err != nil {
		return nil, errUnauthenticated(msgUserGone, err)
	}
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.emit(ctx, telemetry.EventAccessDenied, id, "user_gone")
		return nil, errUnauthenticated(msgUserGone, nil)
	}
	if u.ChangedPasswordAfter(claims.IssuedAt) {
		s.emit(ctx, telemetry.EventAccessDenied, u.ID, "stale_token")
		return nil, errUnauthenticated(msgPasswordChanged, nil)
	}
	return u, nil
}
