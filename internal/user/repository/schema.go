// Package repository persists users through the generic resource layer.
package repository

import (
	"account-service/internal/query"
	"account-service/internal/resource"
	"account-service/internal/user/domain"
)

// Schema is the users field catalog. Password and reset bookkeeping are hidden from clients;
// inactive users are excluded from every operation.
var Schema = resource.NewSchema(resource.Config[domain.User]{
	Name:  "user",
	Table: "users",
	Key:   "id",
	Fields: []resource.Field[domain.User]{
		{Name: "id", Type: resource.UUID, Ref: func(u *domain.User) any { return &u.ID }},
		{Name: "name", Ref: func(u *domain.User) any { return &u.Name }},
		{Name: "email", Unique: true, Ref: func(u *domain.User) any { return &u.Email }},
		{Name: "photo", Ref: func(u *domain.User) any { return &u.Photo }},
		{Name: "role", Ref: func(u *domain.User) any { return &u.Role }},
		{Name: "password", Column: "password_hash", Hidden: true, Ref: func(u *domain.User) any { return &u.PasswordHash }},
		{Name: "passwordChangedAt", Column: "password_changed_at", Type: resource.Time, Ref: func(u *domain.User) any { return &u.PasswordChangedAt }},
		{Name: "passwordResetToken", Column: "password_reset_token", Hidden: true, Ref: func(u *domain.User) any { return &u.ResetTokenHash }},
		{Name: "passwordResetExpires", Column: "password_reset_expires", Type: resource.Time, Hidden: true, Ref: func(u *domain.User) any { return &u.ResetTokenExpiresAt }},
		{Name: "active", Type: resource.Bool, Hidden: true, Ref: func(u *domain.User) any { return &u.Active }},
		{Name: "createdAt", Column: "created_at", Type: resource.Time, Ref: func(u *domain.User) any { return &u.CreatedAt }},
	},
	Always:      []query.Filter{{Field: "active", Op: query.OpEq, Value: true}},
	DefaultSort: []query.SortKey{{Field: "createdAt"}},
})
