// Package memory is an in-memory resource.Repository used in development mode and tests.
package memory

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"account-service/internal/query"
	"account-service/internal/resource"
)

// Repository stores copies of T keyed by the schema key. Safe for concurrent use.
type Repository[T any] struct {
	mu     sync.RWMutex
	schema *resource.Schema[T]
	rows   map[string]*T
}

// New returns an empty repository for schema.
func New[T any](schema *resource.Schema[T]) *Repository[T] {
	return &Repository[T]{schema: schema, rows: make(map[string]*T)}
}

// Find returns matching records ordered by spec.Sort and windowed by spec.Skip/Limit.
func (r *Repository[T]) Find(ctx context.Context, spec query.Spec) ([]*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*T
	for _, rec := range r.rows {
		ok, err := r.matches(rec, spec.Filters)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, clone(rec))
		}
	}
	keys := spec.Sort
	if len(keys) == 0 {
		keys = []query.SortKey{{Field: r.schema.Key().Name}}
	}
	fields := make([]resource.Field[T], len(keys))
	for i, k := range keys {
		f, ok := r.schema.Lookup(k.Field)
		if !ok {
			return nil, fmt.Errorf("memory: %s has no field %q", r.schema.Table(), k.Field)
		}
		fields[i] = f
	}
	sort.SliceStable(out, func(i, j int) bool {
		for n, k := range keys {
			c := compareSort(r.schema.Value(out[i], fields[n]), r.schema.Value(out[j], fields[n]))
			if c == 0 {
				continue
			}
			if k.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return window(out, spec), nil
}

// FindByID returns the record with id, or nil if not found.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, err := r.get(id)
	if err != nil || rec == nil {
		return nil, err
	}
	return clone(rec), nil
}

// Create stores a copy of rec. Duplicate keys or unique values are rejected.
func (r *Repository[T]) Create(ctx context.Context, rec *T) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.schema.ID(rec)
	if id == "" {
		return fmt.Errorf("memory: %s record has no key", r.schema.Table())
	}
	if _, exists := r.rows[id]; exists {
		return resource.Duplicate(r.schema.Key().Name, id, nil)
	}
	if err := r.checkUnique(rec, ""); err != nil {
		return err
	}
	r.rows[id] = clone(rec)
	return nil
}

// UpdateByID applies changes atomically and returns the updated record, or nil if not found
// or if it does not match guard.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, changes resource.Changes, guard ...query.Filter) (*T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, err := r.get(id)
	if err != nil || cur == nil {
		return nil, err
	}
	if ok, err := r.matches(cur, guard); err != nil || !ok {
		return nil, err
	}
	next := clone(cur)
	for name, v := range changes {
		if name == r.schema.Key().Name {
			return nil, fmt.Errorf("memory: %s key is immutable", r.schema.Table())
		}
		if err := r.schema.Set(next, name, v); err != nil {
			return nil, err
		}
	}
	if err := r.checkUnique(next, id); err != nil {
		return nil, err
	}
	r.rows[id] = next
	return clone(next), nil
}

// DeleteByID removes the record and reports whether it existed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, err := r.get(id)
	if err != nil || rec == nil {
		return false, err
	}
	delete(r.rows, id)
	return true, nil
}

// get returns the stored record for id when the Always filters admit it. Caller holds mu.
func (r *Repository[T]) get(id string) (*T, error) {
	rec, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	ok, err := r.matches(rec, nil)
	if err != nil || !ok {
		return nil, err
	}
	return rec, nil
}

func (r *Repository[T]) matches(rec *T, filters []query.Filter) (bool, error) {
	for _, set := range [][]query.Filter{r.schema.Always(), filters} {
		for _, f := range set {
			fd, ok := r.schema.Lookup(f.Field)
			if !ok {
				return false, fmt.Errorf("memory: %s has no field %q", r.schema.Table(), f.Field)
			}
			if !match(r.schema.Value(rec, fd), f.Op, f.Value) {
				return false, nil
			}
		}
	}
	return true, nil
}

// checkUnique rejects rec when a unique field collides with another row, active or not. Caller holds mu.
func (r *Repository[T]) checkUnique(rec *T, self string) error {
	for _, f := range r.schema.Fields() {
		if !f.Unique {
			continue
		}
		v := r.schema.Value(rec, f)
		if v == nil {
			continue
		}
		for id, other := range r.rows {
			if id == self {
				continue
			}
			if c, ok := compare(v, r.schema.Value(other, f)); ok && c == 0 {
				return resource.Duplicate(f.Name, fmt.Sprint(v), nil)
			}
		}
	}
	return nil
}

func window[T any](recs []*T, spec query.Spec) []*T {
	skip := spec.Skip()
	if skip >= len(recs) {
		return []*T{}
	}
	recs = recs[skip:]
	if spec.Limit > 0 && spec.Limit < len(recs) {
		recs = recs[:spec.Limit]
	}
	return recs
}

func clone[T any](rec *T) *T {
	c := *rec
	return &c
}

func match(v any, op query.Op, operand any) bool {
	if v == nil || operand == nil {
		return op == query.OpEq && v == nil && operand == nil
	}
	c, ok := compare(v, operand)
	if !ok {
		return false
	}
	switch op {
	case query.OpEq:
		return c == 0
	case query.OpGt:
		return c > 0
	case query.OpGte:
		return c >= 0
	case query.OpLt:
		return c < 0
	case query.OpLte:
		return c <= 0
	}
	return false
}

// compareSort orders nil after every value, as Postgres does for ascending sorts.
func compareSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	c, _ := compare(a, b)
	return c
}

// compare orders two values of compatible kinds; ok is false when they cannot be compared.
func compare(a, b any) (int, bool) {
	if ta, isTime := a.(time.Time); isTime {
		tb, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return ta.Compare(tb), true
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch {
	case va.Kind() == reflect.String && vb.Kind() == reflect.String:
		return cmp3(va.String() < vb.String(), va.String() > vb.String()), true
	case va.Kind() == reflect.Bool && vb.Kind() == reflect.Bool:
		return cmp3(!va.Bool() && vb.Bool(), va.Bool() && !vb.Bool()), true
	case va.CanInt() && vb.CanInt():
		return cmp3(va.Int() < vb.Int(), va.Int() > vb.Int()), true
	case isNumber(va) && isNumber(vb):
		fa, fb := toFloat(va), toFloat(vb)
		return cmp3(fa < fb, fa > fb), true
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	}
	return 0
}

func isNumber(v reflect.Value) bool {
	return v.CanInt() || v.CanUint() || v.CanFloat()
}

func toFloat(v reflect.Value) float64 {
	switch {
	case v.CanInt():
		return float64(v.Int())
	case v.CanUint():
		return float64(v.Uint())
	}
	return v.Float()
}
