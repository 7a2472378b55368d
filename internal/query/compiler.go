package query

import (
	"encoding/json"
	"math"
	"strings"
	"time"

	"BackofficeAPI/internal/logger"
	"BackofficeAPI/internal/schema"

	"github.com/spf13/cast"
)

// CompilePredicate turns a filter map into a conjunction of leaf predicates.
// Keys without a schema field are dropped silently. Entries are compiled in
// key order so equal inputs produce equal trees.
func CompilePredicate(s schema.EntitySchema, filters map[string]FilterValue) (Predicate, error) {
	children := make([]Predicate, 0, len(filters))
	for _, name := range sortedFilterNames(filters) {
		field, ok := s.Field(name)
		if !ok {
			logger.Debug("filter_dropped", map[string]any{
				"entity": s.Entity,
				"field":  name,
			})
			continue
		}
		p, err := compileField(field, filters[name])
		if err != nil {
			return nil, err
		}
		if p != nil {
			children = append(children, p)
		}
	}
	return And{Children: children}, nil
}

func compileField(f schema.FieldSchema, value FilterValue) (Predicate, error) {
	if _, ok := value.(Null); ok || value == nil {
		return nil, nil
	}

	// numeric fields never fall through to list/format/string/range handling
	if f.IsNumeric() {
		n, err := coerceNumber(f, value)
		if err != nil {
			return nil, err
		}
		return Equals{Field: scalarPath(f), Value: n}, nil
	}

	if list, ok := value.(List); ok {
		return In{Field: listPath(f), Values: normalizeList(list.Values)}, nil
	}

	if f.Format != "" {
		return compileFormatted(f, value)
	}

	switch v := value.(type) {
	case Scalar:
		if s, ok := v.Value.(string); ok {
			return Like{Field: scalarPath(f), Substring: s}, nil
		}
		return Equals{Field: scalarPath(f), Value: normalizeScalar(v.Value)}, nil
	case Range:
		return compileRange(f, v)
	default:
		return nil, userErrorf(CodeInvalidFilterValue, "filter %q: unsupported value %T", f.Name, value)
	}
}

func compileFormatted(f schema.FieldSchema, value FilterValue) (Predicate, error) {
	switch f.Format {
	case schema.FormatDateTime:
		if r, ok := value.(Range); ok {
			var b Between
			b.Field = scalarPath(f)
			if r.Min != nil {
				t, err := coerceTime(f, r.Min)
				if err != nil {
					return nil, err
				}
				b.Min = t
			}
			if r.Max != nil {
				t, err := coerceTime(f, r.Max)
				if err != nil {
					return nil, err
				}
				b.Max = t
			}
			if b.Min == nil && b.Max == nil {
				return nil, nil
			}
			return b, nil
		}
		t, err := coerceTime(f, scalarValue(value))
		if err != nil {
			return nil, err
		}
		return Equals{Field: scalarPath(f), Value: t}, nil

	case schema.FormatDateTimeNoYear:
		s, ok := value.(Scalar)
		if !ok {
			return nil, userErrorf(CodeInvalidDate, "filter %q expects a single date", f.Name)
		}
		t, err := coerceTime(f, s.Value)
		if err != nil {
			return nil, err
		}
		return DateComponentEquals{Field: scalarPath(f), Month: t.Month(), Day: t.Day()}, nil

	default:
		logger.Debug("filter_format_ignored", map[string]any{
			"field":  f.Name,
			"format": f.Format,
		})
		return nil, nil
	}
}

func compileRange(f schema.FieldSchema, r Range) (Predicate, error) {
	b := Between{Field: scalarPath(f)}
	for _, bound := range []struct {
		raw any
		dst *any
	}{{r.Min, &b.Min}, {r.Max, &b.Max}} {
		if bound.raw == nil {
			continue
		}
		v, err := comparableBound(f, bound.raw)
		if err != nil {
			return nil, err
		}
		*bound.dst = v
	}
	if b.Min == nil && b.Max == nil {
		return nil, nil
	}
	return b, nil
}

// scalarPath addresses the attribute compared by scalar and range filters.
func scalarPath(f schema.FieldSchema) Path {
	if rel := f.Relation; rel != nil {
		if rel.ForeignKey {
			return Path{rel.Attribute, rel.Key}
		}
		return Path{rel.Attribute, rel.MatchBy}
	}
	return Path{schema.ToAttribute(f.Name)}
}

// listPath addresses the display-name attribute of the related entity:
// pickers send names, not ids.
func listPath(f schema.FieldSchema) Path {
	if rel := f.Relation; rel != nil {
		return Path{rel.Attribute, rel.MatchBy}
	}
	return Path{schema.ToAttribute(f.Name)}
}

func scalarValue(v FilterValue) any {
	if s, ok := v.(Scalar); ok {
		return s.Value
	}
	return v
}

func coerceNumber(f schema.FieldSchema, value FilterValue) (any, error) {
	s, ok := value.(Scalar)
	if !ok {
		return nil, userErrorf(CodeNotANumber, "filter %q expects a number", f.Name)
	}
	var raw string
	switch v := s.Value.(type) {
	case json.Number:
		raw = v.String()
	case string:
		raw = strings.TrimSpace(v)
	default:
		return nil, userErrorf(CodeNotANumber, "filter %q expects a number, got %v", f.Name, s.Value)
	}
	if raw == "" {
		return nil, userErrorf(CodeNotANumber, "filter %q expects a number, got an empty string", f.Name)
	}
	n, err := cast.ToFloat64E(raw)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, userErrorf(CodeNotANumber, "filter %q expects a number, got %q", f.Name, raw)
	}
	if f.IsIntegral() && n == math.Trunc(n) && math.Abs(n) < 1<<53 {
		return int64(n), nil
	}
	return n, nil
}

func coerceTime(f schema.FieldSchema, v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return time.Time{}, userErrorf(CodeInvalidDate, "filter %q expects a date string", f.Name)
	}
	t, err := cast.ToTimeE(strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, userErrorf(CodeInvalidDate, "filter %q: cannot parse date %q", f.Name, s)
	}
	return t, nil
}

// comparableBound follows the field's declared type: bounds on a string field
// stay strings even when they look numeric. Elsewhere numeric bounds become
// numbers.
func comparableBound(f schema.FieldSchema, v any) (any, error) {
	if f.HasType("string") {
		switch t := v.(type) {
		case json.Number:
			return t.String(), nil
		case string:
			return t, nil
		}
	}
	switch t := v.(type) {
	case json.Number:
		return normalizeScalar(t), nil
	case string:
		if strings.TrimSpace(t) == "" {
			return t, nil
		}
		if n, err := cast.ToFloat64E(strings.TrimSpace(t)); err == nil && !math.IsNaN(n) && !math.IsInf(n, 0) {
			return n, nil
		}
		return t, nil
	default:
		return nil, userErrorf(CodeInvalidFilterValue, "filter %q: range bound %v is not comparable", f.Name, v)
	}
}

func normalizeList(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = normalizeScalar(v)
	}
	return out
}

// normalizeScalar turns json.Number into int64 or float64.
func normalizeScalar(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if fl, err := n.Float64(); err == nil {
		return fl
	}
	return n.String()
}
