// Package query turns the flat key/value parameters of a list request into a read Spec:
// comparison filters, sort order, field projection, and a pagination window.
//
// Each stage is parsed independently. Storage backends apply filter and sort before the
// pagination window; projection is applied to the returned records last.
package query

import (
	"cmp"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"account-service/internal/apperr"
)

// Reserved parameter names; every other key is a filter.
const (
	ParamSort   = "sort"
	ParamFields = "fields"
	ParamPage   = "page"
	ParamLimit  = "limit"
)

// DefaultLimit is the page size used when Options.DefaultLimit is unset.
const DefaultLimit = 100

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "eq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
)

var bracketOps = map[string]Op{
	"gt":  OpGt,
	"gte": OpGte,
	"lt":  OpLt,
	"lte": OpLte,
}

// Filter compares Field against Value. Value is the raw operand string as parsed; storage layers
// may replace it with a typed value before executing.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// SortKey orders by Field, descending when Desc.
type SortKey struct {
	Field string
	Desc  bool
}

// Projection selects returned fields. At most one of Include and Exclude is non-empty;
// both empty means every projectable field.
type Projection struct {
	Include []string
	Exclude []string
}

// Empty reports whether the projection selects the default field set.
func (p Projection) Empty() bool { return len(p.Include) == 0 && len(p.Exclude) == 0 }

// Spec is a composed read specification.
type Spec struct {
	Filters []Filter
	Sort    []SortKey
	Fields  Projection
	Page    int
	Limit   int
}

// Skip is the zero-based number of records preceding the page.
func (s Spec) Skip() int {
	if s.Page < 1 {
		return 0
	}
	return (s.Page - 1) * s.Limit
}

// Options tune Parse.
type Options struct {
	DefaultLimit int
}

// Parse builds a Spec from raw query parameters. When a key repeats, its last value wins.
// Missing page/limit take defaults; non-numeric or non-positive values fail with InvalidQuery.
func Parse(values url.Values, opts Options) (Spec, error) {
	var spec Spec
	var err error
	if spec.Filters, err = ParseFilters(values); err != nil {
		return Spec{}, err
	}
	if spec.Sort, err = ParseSort(last(values, ParamSort)); err != nil {
		return Spec{}, err
	}
	if spec.Fields, err = ParseFields(last(values, ParamFields)); err != nil {
		return Spec{}, err
	}
	if spec.Page, spec.Limit, err = ParsePagination(last(values, ParamPage), last(values, ParamLimit), opts.DefaultLimit); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// ParseFilters reads every non-reserved key as an equality filter, or as a comparison when the
// key carries a bracketed operator suffix: price[gte]=10.
func ParseFilters(values url.Values) ([]Filter, error) {
	var filters []Filter
	for key := range values {
		if isReserved(key) {
			continue
		}
		field, op, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		filters = append(filters, Filter{Field: field, Op: op, Value: last(values, key)})
	}
	slices.SortFunc(filters, func(a, b Filter) int {
		return cmp.Or(cmp.Compare(a.Field, b.Field), cmp.Compare(a.Op, b.Op))
	})
	return filters, nil
}

// ParseSort reads a comma-separated list of fields, each optionally prefixed with "-" for descending.
func ParseSort(raw string) ([]SortKey, error) {
	var keys []SortKey
	for _, part := range splitList(raw) {
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		if name == "" {
			return nil, invalid("Invalid sort: " + raw + ".")
		}
		keys = append(keys, SortKey{Field: name, Desc: desc})
	}
	return keys, nil
}

// ParseFields reads a comma-separated list of included fields, or of "-" prefixed excluded fields.
// Mixing the two forms fails with InvalidQuery.
func ParseFields(raw string) (Projection, error) {
	var p Projection
	for _, part := range splitList(raw) {
		if name, ok := strings.CutPrefix(part, "-"); ok {
			if name == "" {
				return Projection{}, invalid("Invalid fields: " + raw + ".")
			}
			p.Exclude = append(p.Exclude, name)
			continue
		}
		p.Include = append(p.Include, part)
	}
	if len(p.Include) > 0 && len(p.Exclude) > 0 {
		return Projection{}, invalid("Fields cannot mix inclusion and exclusion.")
	}
	return p, nil
}

// ParsePagination returns page and limit, applying 1 and defaultLimit when absent.
func ParsePagination(rawPage, rawLimit string, defaultLimit int) (page, limit int, err error) {
	if defaultLimit < 1 {
		defaultLimit = DefaultLimit
	}
	if page, err = positive(ParamPage, rawPage, 1); err != nil {
		return 0, 0, err
	}
	if limit, err = positive(ParamLimit, rawLimit, defaultLimit); err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func positive(name, raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, invalid("Invalid " + name + ": " + raw + ".")
	}
	return n, nil
}

func splitKey(key string) (string, Op, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		if strings.ContainsRune(key, ']') || strings.TrimSpace(key) == "" {
			return "", "", invalid("Invalid filter: " + key + ".")
		}
		return key, OpEq, nil
	}
	if open == 0 || !strings.HasSuffix(key, "]") {
		return "", "", invalid("Invalid filter: " + key + ".")
	}
	op, ok := bracketOps[key[open+1:len(key)-1]]
	if !ok {
		return "", "", invalid("Invalid filter operator: " + key + ".")
	}
	return key[:open], op, nil
}

func isReserved(key string) bool {
	switch key {
	case ParamSort, ParamFields, ParamPage, ParamLimit:
		return true
	}
	return false
}

func last(values url.Values, key string) string {
	v := values[key]
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func invalid(msg string) error {
	return apperr.New(apperr.KindInvalidQuery, msg)
}
