package store

import (
	"cmp"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"BackofficeAPI/internal/query"

	"github.com/spf13/cast"
)

// Matches evaluates p against row. Paths crossing a to-many relation match
// when any related row satisfies the leaf.
func Matches(p query.Predicate, row Row) bool {
	switch n := p.(type) {
	case nil:
		return true
	case query.And:
		for _, c := range n.Children {
			if !Matches(c, row) {
				return false
			}
		}
		return true
	case query.Equals:
		return anyValue(row, n.Field, func(v any) bool { return equalValues(v, n.Value) })
	case query.Like:
		needle := strings.ToLower(n.Substring)
		return anyValue(row, n.Field, func(v any) bool {
			s, err := cast.ToStringE(v)
			return err == nil && strings.Contains(strings.ToLower(s), needle)
		})
	case query.In:
		return anyValue(row, n.Field, func(v any) bool {
			for _, want := range n.Values {
				if equalValues(v, want) {
					return true
				}
			}
			return false
		})
	case query.Between:
		return anyValue(row, n.Field, func(v any) bool {
			if n.Min != nil {
				if c, ok := compareValues(v, n.Min); !ok || c < 0 {
					return false
				}
			}
			if n.Max != nil {
				if c, ok := compareValues(v, n.Max); !ok || c > 0 {
					return false
				}
			}
			return true
		})
	case query.DateComponentEquals:
		return anyValue(row, n.Field, func(v any) bool {
			t, ok := toTime(v)
			return ok && t.Month() == n.Month && t.Day() == n.Day
		})
	default:
		return false
	}
}

func anyValue(row Row, path query.Path, fn func(any) bool) bool {
	for _, v := range values(row, path) {
		if v != nil && fn(v) {
			return true
		}
	}
	return false
}

// values resolves path against row, fanning out over slices.
func values(row Row, path query.Path) []any {
	cur := []any{row}
	for _, seg := range path {
		var next []any
		for _, v := range cur {
			for _, item := range fanOut(v) {
				if m, ok := item.(map[string]any); ok {
					if fv, ok := m[seg]; ok {
						next = append(next, fv)
					}
				}
			}
		}
		cur = next
	}
	var out []any
	for _, v := range cur {
		out = append(out, fanOut(v)...)
	}
	return out
}

func fanOut(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		return t
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []byte:
		return []any{t}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

func equalValues(a, b any) bool {
	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok || bok {
		return aok && bok && an == bn
	}
	if isTime(a) || isTime(b) {
		at, aok := toTime(a)
		bt, bok := toTime(b)
		return aok && bok && at.Equal(bt)
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two values of the same kind; ok is false when the
// kinds cannot be compared.
func compareValues(a, b any) (int, bool) {
	if an, ok := toNumber(a); ok {
		bn, ok := toNumber(b)
		if !ok {
			return 0, false
		}
		return cmp.Compare(an, bn), true
	}
	if isTime(a) || isTime(b) {
		at, aok := toTime(a)
		bt, bok := toTime(b)
		if !aok || !bok {
			return 0, false
		}
		return at.Compare(bt), true
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

// compareForSort orders nil after every value so ascending sorts put missing
// values last, as Postgres does.
func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	if c, ok := compareValues(a, b); ok {
		return c
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32:
		return cast.ToFloat64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func isTime(v any) bool {
	_, ok := v.(time.Time)
	return ok
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := cast.ToTimeE(t)
		return parsed, err == nil
	}
	return time.Time{}, false
}
