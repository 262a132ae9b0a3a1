package resource

import (
	"context"

	"account-service/internal/query"
)

// BuildFunc constructs a new record from a request body. It reads only the fields it knows,
// validates them, and assigns the key.
type BuildFunc[T any] func(ctx context.Context, body []byte) (*T, error)

// PatchFunc turns a request body into validated changes over the editable fields. Other fields are ignored.
type PatchFunc func(ctx context.Context, body []byte) (Changes, error)

// ScopeFunc returns the ambient ownership filters for the caller in ctx; nil means unscoped.
type ScopeFunc func(ctx context.Context) []query.Filter

// Hooks are the per-resource functions the generic Service delegates to.
type Hooks[T any] struct {
	Build BuildFunc[T]
	Patch PatchFunc
	Scope ScopeFunc
}

// Service implements list/create/get/update/delete for T over a Repository.
type Service[T any] struct {
	schema *Schema[T]
	repo   Repository[T]
	hooks  Hooks[T]
}

// NewService returns a Service for schema backed by repo.
func NewService[T any](schema *Schema[T], repo Repository[T], hooks Hooks[T]) *Service[T] {
	return &Service[T]{schema: schema, repo: repo, hooks: hooks}
}

// Schema returns the schema the service binds requests against.
func (s *Service[T]) Schema() *Schema[T] { return s.schema }

// List binds spec to the schema, merges the ambient scope, and returns the matching page.
func (s *Service[T]) List(ctx context.Context, spec query.Spec) ([]*T, error) {
	bound, err := s.schema.Bind(spec, s.scope(ctx)...)
	if err != nil {
		return nil, err
	}
	recs, err := s.repo.Find(ctx, bound)
	if err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*T{}
	}
	return recs, nil
}

// Create builds a record from body and persists it.
func (s *Service[T]) Create(ctx context.Context, body []byte) (*T, error) {
	if s.hooks.Build == nil {
		return nil, errNoBuilder
	}
	rec, err := s.hooks.Build(ctx, body)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get returns the record with id visible to the caller, or NotFound.
func (s *Service[T]) Get(ctx context.Context, id string) (*T, error) {
	id, err := s.schema.ParseID(id)
	if err != nil {
		return nil, err
	}
	var rec *T
	if scope := s.scope(ctx); len(scope) > 0 {
		filters := append([]query.Filter{{Field: s.schema.Key().Name, Op: query.OpEq, Value: id}}, scope...)
		rec, err = FindOne(ctx, s.repo, filters...)
	} else {
		rec, err = s.repo.FindByID(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(s.schema.Name())
	}
	return rec, nil
}

// Update validates body into changes and applies them to the record with id in one storage call.
// A body with no editable fields returns the record unchanged.
func (s *Service[T]) Update(ctx context.Context, id string, body []byte) (*T, error) {
	if s.hooks.Patch == nil {
		return nil, errNoPatcher
	}
	id, err := s.visibleID(ctx, id)
	if err != nil {
		return nil, err
	}
	changes, err := s.hooks.Patch(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(changes) == 0 {
		return s.Get(ctx, id)
	}
	rec, err := s.repo.UpdateByID(ctx, id, changes)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, notFound(s.schema.Name())
	}
	return rec, nil
}

// Delete removes the record with id. Deleting an absent record returns NotFound.
func (s *Service[T]) Delete(ctx context.Context, id string) error {
	id, err := s.visibleID(ctx, id)
	if err != nil {
		return err
	}
	ok, err := s.repo.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return notFound(s.schema.Name())
	}
	return nil
}

// visibleID canonicalizes id and, for scoped services, checks the caller may see the record.
func (s *Service[T]) visibleID(ctx context.Context, id string) (string, error) {
	if len(s.scope(ctx)) == 0 {
		return s.schema.ParseID(id)
	}
	rec, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.schema.ID(rec), nil
}

func (s *Service[T]) scope(ctx context.Context) []query.Filter {
	if s.hooks.Scope == nil {
		return nil
	}
	return s.hooks.Scope(ctx)
}
