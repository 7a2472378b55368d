package crud

import (
	"testing"

	"BackofficeAPI/internal/store"

	"github.com/google/go-cmp/cmp"
)

func TestSchemaProjectionNestedRows(t *testing.T) {
	row := store.Row{
		"id":               int64(7),
		"name":             "Lamp",
		"shortDescription": "warm light",
		"price":            19.5,
		"country":          store.Row{"id": int64(3), "name": "Latvia"},
		"categories":       []any{store.Row{"id": int64(1), "name": "Home"}, store.Row{"id": int64(2), "name": "Lighting"}},
		"internal":         "hidden",
	}
	got := SchemaProjection(productSchema())(row)
	want := map[string]any{
		"id":                int64(7),
		"name":              "Lamp",
		"short_description": "warm light",
		"price":             19.5,
		"country_id":        int64(3),
		"categories":        []any{"Home", "Lighting"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection (-want +got):\n%s", diff)
	}
}

func TestSchemaProjectionFlatRows(t *testing.T) {
	row := store.Row{
		"id":         int64(8),
		"name":       "Desk",
		"price":      float64(120),
		"countryId":  int64(4),
		"categories": []any{"Office"},
	}
	got := SchemaProjection(productSchema())(row)
	want := map[string]any{
		"id":                int64(8),
		"name":              "Desk",
		"short_description": nil,
		"price":             float64(120),
		"country_id":        int64(4),
		"categories":        []any{"Office"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection (-want +got):\n%s", diff)
	}
}
