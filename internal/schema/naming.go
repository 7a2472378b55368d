package schema

import (
	"strings"

	"github.com/iancoleman/strcase"
)

// ToAttribute converts a snake_case request name to the store's camelCase
// attribute convention. Dotted paths are converted segment by segment.
func ToAttribute(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = strcase.ToLowerCamel(p)
	}
	return strings.Join(parts, ".")
}

// ToColumn converts a camelCase attribute back to a snake_case column name.
func ToColumn(attr string) string {
	return strcase.ToSnake(attr)
}

// relationAttribute derives the attribute of a relation field: the relation
// suffix is stripped and the remainder converted ("country_id" -> "country").
func relationAttribute(field string) string {
	base := strings.TrimSuffix(field, "_id")
	if base == "" {
		base = field
	}
	return ToAttribute(base)
}
