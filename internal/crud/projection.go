package crud

import (
	"BackofficeAPI/internal/schema"
	"BackofficeAPI/internal/store"
)

// SchemaProjection maps rows onto the schema's properties using the
// property names as keys. Related rows are reduced to their match-by
// attribute; foreign keys to the related key. Already reduced values, such as
// the name arrays selected by the Postgres store, pass through.
func SchemaProjection(es schema.EntitySchema) Mapper[map[string]any] {
	es = es.Clone()
	names := es.FieldNames()
	return func(row store.Row) map[string]any {
		out := make(map[string]any, len(names)+1)
		if pk := es.PrimaryKey; pk != "" {
			out[pk] = row[schema.ToAttribute(pk)]
		}
		for _, name := range names {
			out[name] = project(es.Fields[name], row)
		}
		return out
	}
}

func project(f schema.FieldSchema, row store.Row) any {
	rel := f.Relation
	if rel == nil {
		return row[schema.ToAttribute(f.Name)]
	}
	if rel.ForeignKey {
		if v, ok := row[schema.ToAttribute(f.Name)]; ok {
			return v
		}
		if related, ok := row[rel.Attribute].(map[string]any); ok {
			return related[rel.Key]
		}
		return nil
	}

	switch related := row[rel.Attribute].(type) {
	case map[string]any:
		return related[rel.MatchBy]
	case []any:
		out := make([]any, 0, len(related))
		for _, item := range related {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m[rel.MatchBy])
			} else {
				out = append(out, item)
			}
		}
		return out
	case []map[string]any:
		out := make([]any, 0, len(related))
		for _, m := range related {
			out = append(out, m[rel.MatchBy])
		}
		return out
	default:
		return row[schema.ToAttribute(f.Name)]
	}
}
