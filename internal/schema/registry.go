package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"BackofficeAPI/internal/logger"
)

// ErrUnknownEntity is a configuration error: schemas are deployment
// artifacts, so a missing one is never the caller's fault.
var ErrUnknownEntity = errors.New("schema: unknown entity")

// Registry is the read-only set of entity schemas published once at startup.
// It is never mutated after construction, so concurrent readers need no lock;
// every accessor hands out a deep copy.
type Registry struct {
	schemas map[string]EntitySchema
}

// NewRegistry copies schemas into a new registry.
func NewRegistry(schemas ...EntitySchema) *Registry {
	r := &Registry{schemas: make(map[string]EntitySchema, len(schemas))}
	for _, s := range schemas {
		r.schemas[s.Entity] = s.Clone()
	}
	return r
}

// Load reads every document from src and builds the registry. Any invalid
// document aborts the whole load.
func Load(ctx context.Context, src Source) (*Registry, error) {
	docs, err := src.Documents(ctx)
	if err != nil {
		return nil, fmt.Errorf("load error: %w", err)
	}
	schemas := make([]EntitySchema, 0, len(docs))
	for _, doc := range docs {
		s, err := Parse(doc)
		if err != nil {
			return nil, fmt.Errorf("parse error: %w", err)
		}
		schemas = append(schemas, s)
		logger.Info("schema_loaded", map[string]any{
			"entity": s.Entity,
			"table":  s.Table,
			"fields": len(s.Fields),
			"origin": doc.Origin,
		})
	}
	return NewRegistry(schemas...), nil
}

// Get returns a deep copy of the schema registered for entity.
func (r *Registry) Get(entity string) (EntitySchema, error) {
	s, ok := r.schemas[entity]
	if !ok {
		return EntitySchema{}, fmt.Errorf("%w: %s", ErrUnknownEntity, entity)
	}
	return s.Clone(), nil
}

func (r *Registry) Has(entity string) bool {
	_, ok := r.schemas[entity]
	return ok
}

// Names returns the registered entity names in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
