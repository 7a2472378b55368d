package store

import (
	"testing"
	"time"

	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"
)

func productSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Entity:     "products",
		Table:      "products",
		PrimaryKey: "id",
		Fields: map[string]schema.FieldSchema{
			"id":                {Name: "id", Types: []string{"integer"}},
			"name":              {Name: "name", Types: []string{"string"}},
			"short_description": {Name: "short_description", Types: []string{"string"}},
			"price":             {Name: "price", Types: []string{"number"}},
			"released_at":       {Name: "released_at", Types: []string{"string"}, Format: schema.FormatDateTime},
			"birth_date":        {Name: "birth_date", Types: []string{"string"}, Format: schema.FormatDateTimeNoYear},
			"country_id": {Name: "country_id", Types: []string{"integer"}, Relation: &schema.Relation{
				Attribute: "country", Key: "id", MatchBy: "name", ForeignKey: true,
				Kind: schema.BelongsTo, Table: "countries", FK: "country_id",
			}},
			"categories": {Name: "categories", Types: []string{"array"}, Relation: &schema.Relation{
				Attribute: "categories", Key: "id", MatchBy: "name", Kind: schema.ManyToMany,
				Table: "categories", Through: "products_categories", FK: "category_id", ThroughFK: "product_id",
			}},
			"reviews": {Name: "reviews", Types: []string{"array"}, Relation: &schema.Relation{
				Attribute: "reviews", Key: "id", MatchBy: "author", Kind: schema.HasMany,
				Table: "reviews", FK: "product_id",
			}},
		},
	}
}

func compile(t *testing.T, raw string) query.Predicate {
	t.Helper()
	filters, err := query.ParseFilters(raw)
	if err != nil {
		t.Fatalf("ParseFilters(%s): %v", raw, err)
	}
	p, err := query.CompilePredicate(productSchema(), filters)
	if err != nil {
		t.Fatalf("CompilePredicate(%s): %v", raw, err)
	}
	return p
}

func window(t *testing.T, page, size int) (int, int) {
	t.Helper()
	offset, limit, err := query.Window(page, size)
	if err != nil {
		t.Fatalf("Window(%d, %d): %v", page, size, err)
	}
	return offset, limit
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func catalogue() []Row {
	electronics := Row{"id": int64(1), "name": "Electronics"}
	books := Row{"id": int64(2), "name": "Books"}
	garden := Row{"id": int64(3), "name": "Garden"}
	latvia := Row{"id": int64(10), "name": "Latvia"}
	chile := Row{"id": int64(11), "name": "Chile"}

	return []Row{
		{"id": int64(1), "name": "Foobar", "price": 5.0, "shortDescription": "Soft 100% cotton",
			"releasedAt": day(2020, 3, 15), "birthDate": day(1995, 3, 15),
			"country": latvia, "categories": []any{electronics}},
		{"id": int64(2), "name": "Gadget", "price": "5", "shortDescription": "plain",
			"releasedAt": day(2021, 6, 1), "birthDate": day(2031, 3, 15),
			"country": chile, "categories": []any{books, garden}},
		{"id": int64(3), "name": "Widget", "price": 12.5, "shortDescription": "shiny",
			"releasedAt": day(2022, 1, 1), "birthDate": day(2020, 4, 15),
			"country": latvia, "categories": []any{}},
		{"id": int64(4), "name": "Sprocket", "price": int64(12), "shortDescription": nil,
			"releasedAt": nil, "birthDate": "1988-03-15",
			"categories": []any{garden}, "reviews": []any{Row{"id": int64(1), "author": "ann"}}},
	}
}
