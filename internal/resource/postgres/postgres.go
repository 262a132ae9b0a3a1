// Package postgres is a resource.Repository over database/sql with the pgx driver.
// Table and column names come from the schema; every client value is a bind parameter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"account-service/internal/apperr"
	"account-service/internal/query"
	"account-service/internal/resource"
)

const (
	codeUniqueViolation   = "23505"
	codeInvalidText       = "22P02"
	codeInvalidDatetime   = "22007"
	codeDatetimeOverflow  = "22008"
	codeNumericOutOfRange = "22003"
)

var ops = map[query.Op]string{
	query.OpEq:  "=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

var duplicateDetail = regexp.MustCompile(`^Key \(([^)]+)\)=\((.*)\) already exists`)

// Repository implements resource.Repository[T] for one table.
type Repository[T any] struct {
	db      *sql.DB
	schema  *resource.Schema[T]
	columns string
}

// New returns a repository for schema's table on db.
func New[T any](db *sql.DB, schema *resource.Schema[T]) *Repository[T] {
	cols := make([]string, 0, len(schema.Fields()))
	for _, f := range schema.Fields() {
		cols = append(cols, f.Column)
	}
	return &Repository[T]{db: db, schema: schema, columns: strings.Join(cols, ", ")}
}

// Find runs a single SELECT with WHERE, ORDER BY, LIMIT and OFFSET derived from spec.
func (r *Repository[T]) Find(ctx context.Context, spec query.Spec) ([]*T, error) {
	var a args
	where, err := r.where(&a, spec.Filters)
	if err != nil {
		return nil, err
	}
	q := "SELECT " + r.columns + " FROM " + r.schema.Table() + where
	order, err := r.orderBy(spec.Sort)
	if err != nil {
		return nil, err
	}
	q += order
	if spec.Limit > 0 {
		q += " LIMIT " + a.add(spec.Limit)
	}
	if skip := spec.Skip(); skip > 0 {
		q += " OFFSET " + a.add(skip)
	}
	rows, err := r.db.QueryContext(ctx, q, a...)
	if err != nil {
		return nil, r.translate(err)
	}
	defer rows.Close()
	out := []*T{}
	for rows.Next() {
		rec := new(T)
		if err := rows.Scan(r.dest(rec)...); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, r.translate(err)
	}
	return out, nil
}

// FindByID returns the record with id, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var a args
	where, err := r.where(&a, r.byKey(id))
	if err != nil {
		return nil, err
	}
	rec := new(T)
	err = r.db.QueryRowContext(ctx, "SELECT "+r.columns+" FROM "+r.schema.Table()+where, a...).Scan(r.dest(rec)...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, r.translate(err)
	}
	return rec, nil
}

// Create inserts every schema column of rec.
func (r *Repository[T]) Create(ctx context.Context, rec *T) error {
	var a args
	marks := make([]string, 0, len(r.schema.Fields()))
	for _, f := range r.schema.Fields() {
		marks = append(marks, a.add(r.schema.Value(rec, f)))
	}
	q := "INSERT INTO " + r.schema.Table() + " (" + r.columns + ") VALUES (" + strings.Join(marks, ", ") + ")"
	if _, err := r.db.ExecContext(ctx, q, a...); err != nil {
		return r.translate(err)
	}
	return nil
}

// UpdateByID applies changes in one UPDATE ... RETURNING and returns the new row, or nil if not found.
// guard filters join the WHERE clause, so a row that stopped matching them is left untouched.
func (r *Repository[T]) UpdateByID(ctx context.Context, id string, changes resource.Changes, guard ...query.Filter) (*T, error) {
	if len(changes) == 0 && len(guard) == 0 {
		return r.FindByID(ctx, id)
	}
	if len(changes) == 0 {
		return resource.FindOne[T](ctx, r, append(r.byKey(id), guard...)...)
	}
	names := make([]string, 0, len(changes))
	for name := range changes {
		names = append(names, name)
	}
	sort.Strings(names)

	var a args
	sets := make([]string, 0, len(names))
	for _, name := range names {
		f, ok := r.schema.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("postgres: %s has no field %q", r.schema.Table(), name)
		}
		if name == r.schema.Key().Name {
			return nil, fmt.Errorf("postgres: %s key is immutable", r.schema.Table())
		}
		sets = append(sets, f.Column+" = "+a.add(changes[name]))
	}
	where, err := r.where(&a, append(r.byKey(id), guard...))
	if err != nil {
		return nil, err
	}
	q := "UPDATE " + r.schema.Table() + " SET " + strings.Join(sets, ", ") + where + " RETURNING " + r.columns
	rec := new(T)
	if err := r.db.QueryRowContext(ctx, q, a...).Scan(r.dest(rec)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, r.translate(err)
	}
	return rec, nil
}

// DeleteByID deletes the row and reports whether one existed.
func (r *Repository[T]) DeleteByID(ctx context.Context, id string) (bool, error) {
	var a args
	where, err := r.where(&a, r.byKey(id))
	if err != nil {
		return false, err
	}
	res, err := r.db.ExecContext(ctx, "DELETE FROM "+r.schema.Table()+where, a...)
	if err != nil {
		return false, r.translate(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *Repository[T]) byKey(id string) []query.Filter {
	return []query.Filter{{Field: r.schema.Key().Name, Op: query.OpEq, Value: id}}
}

// where renders the schema's Always filters followed by filters. Returns "" when there are none.
func (r *Repository[T]) where(a *args, filters []query.Filter) (string, error) {
	all := append(append([]query.Filter(nil), r.schema.Always()...), filters...)
	if len(all) == 0 {
		return "", nil
	}
	conds := make([]string, 0, len(all))
	for _, f := range all {
		fd, ok := r.schema.Lookup(f.Field)
		if !ok {
			return "", fmt.Errorf("postgres: %s has no field %q", r.schema.Table(), f.Field)
		}
		op, ok := ops[f.Op]
		if !ok {
			return "", fmt.Errorf("postgres: unsupported operator %q", f.Op)
		}
		if f.Value == nil {
			if f.Op != query.OpEq {
				return "", fmt.Errorf("postgres: %q on NULL", f.Op)
			}
			conds = append(conds, fd.Column+" IS NULL")
			continue
		}
		conds = append(conds, fd.Column+" "+op+" "+a.add(f.Value))
	}
	return " WHERE " + strings.Join(conds, " AND "), nil
}

func (r *Repository[T]) orderBy(keys []query.SortKey) (string, error) {
	if len(keys) == 0 {
		keys = []query.SortKey{{Field: r.schema.Key().Name}}
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		f, ok := r.schema.Lookup(k.Field)
		if !ok {
			return "", fmt.Errorf("postgres: %s has no field %q", r.schema.Table(), k.Field)
		}
		dir := " ASC"
		if k.Desc {
			dir = " DESC"
		}
		parts = append(parts, f.Column+dir)
	}
	return " ORDER BY " + strings.Join(parts, ", "), nil
}

func (r *Repository[T]) dest(rec *T) []any {
	out := make([]any, 0, len(r.schema.Fields()))
	for _, f := range r.schema.Fields() {
		out = append(out, f.Ref(rec))
	}
	return out
}

// translate maps Postgres failures onto the error taxonomy; other errors pass through.
func (r *Repository[T]) translate(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case codeUniqueViolation:
		field, value := r.duplicateOf(pgErr)
		return resource.Duplicate(field, value, err)
	case codeInvalidText, codeInvalidDatetime, codeDatetimeOverflow, codeNumericOutOfRange:
		return apperr.Wrap(apperr.KindValidation, "Invalid input data.", err)
	}
	return err
}

func (r *Repository[T]) duplicateOf(pgErr *pgconn.PgError) (field, value string) {
	column := ""
	if m := duplicateDetail.FindStringSubmatch(pgErr.Detail); m != nil {
		column, value = m[1], m[2]
	}
	for _, f := range r.schema.Fields() {
		if column != "" && f.Column == column {
			return f.Name, value
		}
		if column == "" && f.Unique && strings.Contains(pgErr.ConstraintName, f.Column) {
			return f.Name, ""
		}
	}
	return "field", value
}

// args accumulates positional parameters.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return "$" + strconv.Itoa(len(*a))
}
