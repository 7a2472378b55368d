package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// FilterValue is the parsed shape of one filter entry. It is built once at
// the JSON boundary so the compiler dispatches on a closed set of types.
type FilterValue interface {
	filterValue()
}

// Null never yields a predicate.
type Null struct{}

// Scalar holds a string, json.Number or bool.
type Scalar struct {
	Value any
}

// List holds scalars.
type List struct {
	Values []any
}

// Range holds optional inclusive bounds; a nil bound is absent.
type Range struct {
	Min any
	Max any
}

func (Null) filterValue()   {}
func (Scalar) filterValue() {}
func (List) filterValue()   {}
func (Range) filterValue()  {}

// ParseFilters decodes the filterParams JSON object.
func ParseFilters(raw string) (map[string]FilterValue, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var generic map[string]any
	if err := dec.Decode(&generic); err != nil {
		return nil, userErrorf(CodeMalformedFilterParams, "filterParams is not a JSON object: %v", err)
	}
	if dec.More() {
		return nil, userErrorf(CodeMalformedFilterParams, "filterParams has trailing data")
	}
	out := make(map[string]FilterValue, len(generic))
	for name, v := range generic {
		fv, err := NewFilterValue(v)
		if err != nil {
			return nil, userErrorf(CodeInvalidFilterValue, "filter %q: %v", name, err)
		}
		out[name] = fv
	}
	return out, nil
}

// NewFilterValue converts one decoded JSON value (decoded with UseNumber).
func NewFilterValue(v any) (FilterValue, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case string, json.Number, bool:
		return Scalar{Value: t}, nil
	case []any:
		values := make([]any, 0, len(t))
		for i, item := range t {
			switch item.(type) {
			case string, json.Number, bool:
				values = append(values, item)
			default:
				return nil, fmt.Errorf("list element %d is not a scalar", i)
			}
		}
		return List{Values: values}, nil
	case map[string]any:
		var r Range
		for _, key := range []string{"min", "max"} {
			bound, ok := t[key]
			if !ok || bound == nil {
				continue
			}
			switch bound.(type) {
			case string, json.Number, bool:
			default:
				return nil, fmt.Errorf("range bound %q is not a scalar", key)
			}
			if key == "min" {
				r.Min = bound
			} else {
				r.Max = bound
			}
		}
		return r, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func sortedFilterNames(filters map[string]FilterValue) []string {
	names := make([]string, 0, len(filters))
	for name := range filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
