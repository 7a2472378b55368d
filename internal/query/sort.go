package query

import (
	"strings"

	"BackofficeAPI/internal/schema"
)

// OrderParam is one client-supplied (field, direction) pair.
type OrderParam struct {
	Field     string
	Direction string
}

type SortKey struct {
	Field     Path
	Ascending bool
}

// CompileSort converts order params into sort keys. With no params the result
// is a single ascending key on idField. Any direction other than "desc"
// (case-insensitive) sorts ascending.
func CompileSort(order []OrderParam, idField string) []SortKey {
	if len(order) == 0 {
		return []SortKey{{Field: Path{schema.ToAttribute(idField)}, Ascending: true}}
	}
	keys := make([]SortKey, 0, len(order))
	for _, o := range order {
		keys = append(keys, SortKey{
			Field:     Path(strings.Split(schema.ToAttribute(o.Field), ".")),
			Ascending: !strings.EqualFold(strings.TrimSpace(o.Direction), "desc"),
		})
	}
	return keys
}
