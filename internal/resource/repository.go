package resource

import (
	"context"

	"account-service/internal/query"
)

// Changes maps field names to new values for a partial update. Values are Go values of the
// field's type (or its pointer element type); nil clears a nullable field.
type Changes map[string]any

// Repository is the storage capability set every backend provides for T.
// Every operation honors the schema's Always filters: records they exclude behave as absent.
type Repository[T any] interface {
	// Find returns records matching spec's filters, ordered by spec.Sort, windowed by
	// spec.Skip()/spec.Limit. A zero Limit means no cap. No match is an empty slice, not an error.
	Find(ctx context.Context, spec query.Spec) ([]*T, error)
	// FindByID returns the record with id, or nil if not found.
	FindByID(ctx context.Context, id string) (*T, error)
	// Create persists rec. The record must have its key set.
	Create(ctx context.Context, rec *T) error
	// UpdateByID applies changes and returns the updated record, or nil if not found.
	// When guard filters are given the record must also match them at write time,
	// otherwise nothing changes and nil is returned.
	UpdateByID(ctx context.Context, id string, changes Changes, guard ...query.Filter) (*T, error)
	// DeleteByID removes the record and reports whether it existed.
	DeleteByID(ctx context.Context, id string) (bool, error)
}

// FindOne returns the first record matching filters, or nil.
func FindOne[T any](ctx context.Context, repo Repository[T], filters ...query.Filter) (*T, error) {
	recs, err := repo.Find(ctx, query.Spec{Filters: filters, Limit: 1})
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	return recs[0], nil
}
