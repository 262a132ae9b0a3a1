// Package service edits account profiles: the caller's own (/users/me) and, for admins, any account.
package service

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"

	"account-service/internal/apperr"
	identity "account-service/internal/identity/service"
	"account-service/internal/resource"
	"account-service/internal/telemetry"
	"account-service/internal/user/domain"
	"account-service/internal/user/repository"
)

const msgNotForPasswords = "This route is not for password updates. Please use /changePassword."

// AccountFactory builds a validated, unsaved account with a hashed password.
type AccountFactory interface {
	NewAccount(ctx context.Context, in identity.RegisterInput, role domain.Role) (*domain.User, error)
}

type profileBody struct {
	Name            *string `json:"name"`
	Email           *string `json:"email"`
	Photo           *string `json:"photo"`
	Role            *string `json:"role"`
	Password        *string `json:"password"`
	ConfirmPassword *string `json:"confirmPassword"`
}

type createBody struct {
	identity.RegisterInput
	Role string `json:"role"`
}

// Profiles edits accounts through the user store.
type Profiles struct {
	store   *repository.Store
	emitter telemetry.EventEmitter
}

// NewProfiles returns Profiles over store. emitter may be nil.
func NewProfiles(store *repository.Store, emitter telemetry.EventEmitter) *Profiles {
	return &Profiles{store: store, emitter: emitter}
}

// UpdateMe applies name, email and photo from body to the account with id. Other fields are ignored;
// a body carrying a password is rejected.
func (p *Profiles) UpdateMe(ctx context.Context, id string, body []byte) (*domain.User, error) {
	var in profileBody
	if err := resource.Decode(body, &in); err != nil {
		return nil, err
	}
	if nonEmpty(in.Password) || nonEmpty(in.ConfirmPassword) {
		return nil, apperr.New(apperr.KindValidation, msgNotForPasswords)
	}
	changes, err := in.changes(false)
	if err != nil {
		return nil, err
	}
	var u *domain.User
	if len(changes) == 0 {
		u, err = p.store.FindByID(ctx, id)
	} else {
		u, err = p.store.UpdateByID(ctx, id, changes)
	}
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.New(apperr.KindNotFound, "No user with that id.")
	}
	return u, nil
}

// DeleteMe deactivates the account with id. It disappears from every read, login included.
func (p *Profiles) DeleteMe(ctx context.Context, id string) error {
	ok, err := p.store.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.New(apperr.KindNotFound, "No user with that id.")
	}
	telemetry.EmitAsync(p.emitter, ctx, &telemetry.Event{Type: telemetry.EventAccountDeactivated, UserID: id, Source: "user"})
	return nil
}

// NewAdminService returns the generic CRUD service behind the admin-only /users collection.
// Creates go through accounts so passwords are confirmed and hashed; updates may change
// name, email, photo and role only.
func NewAdminService(repo repository.Repository, accounts AccountFactory) *resource.Service[domain.User] {
	return resource.NewService(repository.Schema, repo, resource.Hooks[domain.User]{
		Build: func(ctx context.Context, body []byte) (*domain.User, error) {
			var in createBody
			if err := resource.Decode(body, &in); err != nil {
				return nil, err
			}
			role := domain.Role(in.Role)
			if role == "" {
				role = domain.RoleStandard
			}
			return accounts.NewAccount(ctx, in.RegisterInput, role)
		},
		Patch: func(ctx context.Context, body []byte) (resource.Changes, error) {
			var in profileBody
			if err := resource.Decode(body, &in); err != nil {
				return nil, err
			}
			return in.changes(true)
		},
	})
}

// changes validates the present profile fields and returns them as changes. Role is read only if allowRole.
func (b profileBody) changes(allowRole bool) (resource.Changes, error) {
	changes := resource.Changes{}
	errs := validation.Errors{}
	set := func(field string, v *string, normalize func(string) string) {
		if v == nil {
			return
		}
		value := *v
		if normalize != nil {
			value = normalize(value)
		}
		errs[field] = domain.ValidateField(field, value)
		changes[field] = value
	}
	set("name", b.Name, nil)
	set("email", b.Email, domain.NormalizeEmail)
	set("photo", b.Photo, nil)
	if allowRole && b.Role != nil {
		errs["role"] = domain.ValidateField("role", *b.Role)
		changes["role"] = *b.Role
	}
	if err := errs.Filter(); err != nil {
		return nil, resource.Invalid(err)
	}
	return changes, nil
}

func nonEmpty(s *string) bool {
	return s != nil && *s != ""
}
