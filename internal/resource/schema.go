// Package resource is the generic CRUD layer: a Schema describing an entity's fields,
// a Repository contract any storage backend can implement, and a Service that binds
// parsed list queries to the schema and turns missing records into NotFound.
package resource

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"account-service/internal/apperr"
	"account-service/internal/query"
)

// Type is the storage type of a field. Filter operands are coerced to it.
type Type int

const (
	String Type = iota
	Int
	Float
	Bool
	Time
	UUID
)

// Field maps an API field name to a column and a location inside T.
type Field[T any] struct {
	// Name is the client-facing name used in filters, sort, projection and responses.
	Name string
	// Column is the storage column; defaults to Name.
	Column string
	Type   Type
	// Ref returns a pointer to the field inside the record.
	Ref func(*T) any
	// Hidden fields are never rendered and cannot be filtered, sorted or projected by clients.
	Hidden bool
	// Unique fields report duplicate values as Duplicate errors.
	Unique bool
}

// Config describes a Schema.
type Config[T any] struct {
	// Name is the singular noun used in client messages ("No user with that id.").
	Name  string
	Table string
	// Key is the Name of the identity field.
	Key    string
	Fields []Field[T]
	// Always filters apply to every read and write (soft-delete markers).
	Always []query.Filter
	// DefaultSort applies when a list request has no sort.
	DefaultSort []query.SortKey
}

// Schema is an immutable field catalog for T.
type Schema[T any] struct {
	name        string
	table       string
	key         int
	fields      []Field[T]
	index       map[string]int
	always      []query.Filter
	defaultSort []query.SortKey
}

// NewSchema validates c and builds the schema. A misconfigured schema is a programming error and panics.
func NewSchema[T any](c Config[T]) *Schema[T] {
	s := &Schema[T]{
		name:        c.Name,
		table:       c.Table,
		fields:      make([]Field[T], len(c.Fields)),
		index:       make(map[string]int, len(c.Fields)),
		always:      c.Always,
		defaultSort: c.DefaultSort,
	}
	if s.table == "" {
		panic("resource: schema table is required")
	}
	for i, f := range c.Fields {
		if f.Name == "" || f.Ref == nil {
			panic(fmt.Sprintf("resource: %s field %d needs a name and ref", s.table, i))
		}
		if _, dup := s.index[f.Name]; dup {
			panic(fmt.Sprintf("resource: %s field %q declared twice", s.table, f.Name))
		}
		if f.Column == "" {
			f.Column = f.Name
		}
		s.fields[i] = f
		s.index[f.Name] = i
	}
	key, ok := s.index[c.Key]
	if !ok {
		panic(fmt.Sprintf("resource: %s key %q is not a field", s.table, c.Key))
	}
	s.key = key
	for _, f := range s.always {
		if _, ok := s.index[f.Field]; !ok {
			panic(fmt.Sprintf("resource: %s always-filter on unknown field %q", s.table, f.Field))
		}
	}
	for _, k := range s.defaultSort {
		if _, ok := s.index[k.Field]; !ok {
			panic(fmt.Sprintf("resource: %s default sort on unknown field %q", s.table, k.Field))
		}
	}
	return s
}

func (s *Schema[T]) Name() string { return s.name }
func (s *Schema[T]) Table() string { return s.table }
func (s *Schema[T]) Key() Field[T] { return s.fields[s.key] }
func (s *Schema[T]) Fields() []Field[T] { return s.fields }
func (s *Schema[T]) Always() []query.Filter { return s.always }
func (s *Schema[T]) DefaultSort() []query.SortKey { return s.defaultSort }

// Lookup returns the field named name, hidden or not.
func (s *Schema[T]) Lookup(name string) (Field[T], bool) {
	i, ok := s.index[name]
	if !ok {
		return Field[T]{}, false
	}
	return s.fields[i], true
}

func (s *Schema[T]) visible(name string) (Field[T], bool) {
	f, ok := s.Lookup(name)
	if !ok || f.Hidden {
		return Field[T]{}, false
	}
	return f, true
}

// Value returns the current value of field f in rec. Nil pointers yield nil; other pointers are dereferenced.
func (s *Schema[T]) Value(rec *T, f Field[T]) any {
	v := reflect.ValueOf(f.Ref(rec)).Elem()
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	return v.Interface()
}

// ID returns the identity of rec as a string.
func (s *Schema[T]) ID(rec *T) string {
	v := s.Value(rec, s.Key())
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Set assigns v to the field named name in rec. A nil v clears the field.
// Values of a pointer field's element type are boxed; named types convert from their underlying kind.
func (s *Schema[T]) Set(rec *T, name string, v any) error {
	f, ok := s.Lookup(name)
	if !ok {
		return fmt.Errorf("resource: %s has no field %q", s.table, name)
	}
	dst := reflect.ValueOf(f.Ref(rec)).Elem()
	if v == nil {
		dst.SetZero()
		return nil
	}
	src := reflect.ValueOf(v)
	switch {
	case src.Type().AssignableTo(dst.Type()):
		dst.Set(src)
	case dst.Kind() == reflect.Pointer && src.Type().AssignableTo(dst.Type().Elem()):
		p := reflect.New(dst.Type().Elem())
		p.Elem().Set(src)
		dst.Set(p)
	case src.Kind() == dst.Kind() && src.Type().ConvertibleTo(dst.Type()):
		dst.Set(src.Convert(dst.Type()))
	default:
		return fmt.Errorf("resource: cannot assign %T to %s.%s", v, s.table, name)
	}
	return nil
}

// ParseID validates a client-supplied identity and returns its canonical form.
func (s *Schema[T]) ParseID(raw string) (string, error) {
	key := s.Key()
	v, err := Coerce(key.Type, raw)
	if err != nil {
		return "", apperr.New(apperr.KindValidation, "Invalid "+key.Name+": "+raw+".")
	}
	return fmt.Sprint(v), nil
}

// Bind checks a parsed spec against the schema: client filters, sort keys and projected fields must
// name visible fields, and filter operands are coerced to the field type. The ambient scope filters
// are appended as given. An empty sort takes the default sort; the key is always the final tiebreaker.
func (s *Schema[T]) Bind(spec query.Spec, scope ...query.Filter) (query.Spec, error) {
	out := spec
	out.Filters = make([]query.Filter, 0, len(spec.Filters)+len(scope))
	for _, f := range spec.Filters {
		fd, ok := s.visible(f.Field)
		if !ok {
			return query.Spec{}, unknownField(f.Field)
		}
		if raw, isString := f.Value.(string); isString {
			v, err := Coerce(fd.Type, raw)
			if err != nil {
				return query.Spec{}, apperr.New(apperr.KindInvalidQuery, "Invalid "+fd.Name+": "+raw+".")
			}
			f.Value = v
		}
		out.Filters = append(out.Filters, f)
	}
	out.Filters = append(out.Filters, scope...)

	sortKeys := spec.Sort
	if len(sortKeys) == 0 {
		sortKeys = s.defaultSort
	}
	out.Sort = make([]query.SortKey, 0, len(sortKeys)+1)
	keyed := false
	for _, k := range sortKeys {
		if _, ok := s.visible(k.Field); !ok && len(spec.Sort) > 0 {
			return query.Spec{}, unknownField(k.Field)
		}
		keyed = keyed || k.Field == s.Key().Name
		out.Sort = append(out.Sort, k)
	}
	if !keyed {
		out.Sort = append(out.Sort, query.SortKey{Field: s.Key().Name})
	}

	for _, name := range append(append([]string(nil), spec.Fields.Include...), spec.Fields.Exclude...) {
		if _, ok := s.visible(name); !ok {
			return query.Spec{}, unknownField(name)
		}
	}
	return out, nil
}

// Render returns the visible fields of rec selected by p, keyed by field name.
func (s *Schema[T]) Render(rec *T, p query.Projection) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		if f.Hidden || !selected(p, f.Name) {
			continue
		}
		out[f.Name] = s.Value(rec, f)
	}
	return out
}

// RenderAll renders every record with the same projection.
func (s *Schema[T]) RenderAll(recs []*T, p query.Projection) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, s.Render(r, p))
	}
	return out
}

func selected(p query.Projection, name string) bool {
	if len(p.Include) > 0 {
		return slices.Contains(p.Include, name)
	}
	return !slices.Contains(p.Exclude, name)
}

// Coerce converts a raw query operand to the Go value stored for t.
// String operands are returned as given; other types ignore surrounding whitespace.
func Coerce(t Type, raw string) (any, error) {
	if t == String {
		return raw, nil
	}
	raw = strings.TrimSpace(raw)
	switch t {
	case Int:
		return strconv.ParseInt(raw, 10, 64)
	case Float:
		return strconv.ParseFloat(raw, 64)
	case Bool:
		return strconv.ParseBool(raw)
	case Time:
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return ts.UTC(), nil
		}
		ts, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			return nil, err
		}
		return ts.UTC(), nil
	case UUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		return id.String(), nil
	default:
		return raw, nil
	}
}

func unknownField(name string) error {
	return apperr.New(apperr.KindInvalidQuery, "Invalid query field: "+name+".")
}
