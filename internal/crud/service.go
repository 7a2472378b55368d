package crud

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"BackofficeAPI/internal/logger"
	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"
	"BackofficeAPI/internal/store"
)

var (
	// ErrNotFound means no row has the requested primary key.
	ErrNotFound = errors.New("not found")
	// ErrNotDeletable means the entity has no active flag to clear.
	ErrNotDeletable = errors.New("entity does not support soft delete")
)

// PaginatedResponse is one page of DTOs plus the total number of matches.
type PaginatedResponse[D any] struct {
	Items      []D   `json:"result"`
	TotalCount int64 `json:"count"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalPages int   `json:"totalPages"`
}

// Mapper converts a store row into the entity's DTO.
type Mapper[D any] func(store.Row) D

// Service answers filtered, sorted, paginated queries for one entity.
type Service[D any] struct {
	entity   string
	registry *schema.Registry
	store    store.Store
	mapper   Mapper[D]
	opts     query.ParseOptions
}

// NewService fails when entity has no schema: that is a deployment error and
// must surface at startup rather than per request.
func NewService[D any](entity string, reg *schema.Registry, st store.Store, mapper Mapper[D], opts query.ParseOptions) (*Service[D], error) {
	if _, err := reg.Get(entity); err != nil {
		return nil, err
	}
	if mapper == nil {
		return nil, fmt.Errorf("crud: nil mapper for %s", entity)
	}
	return &Service[D]{
		entity:   entity,
		registry: reg,
		store:    st,
		mapper:   mapper,
		opts:     opts,
	}, nil
}

func (s *Service[D]) Entity() string {
	return s.entity
}

// Find parses raw, executes the plan and maps every row. Input problems come
// back as *query.UserError.
func (s *Service[D]) Find(ctx context.Context, raw map[string]string) (PaginatedResponse[D], error) {
	es, err := s.registry.Get(s.entity)
	if err != nil {
		return PaginatedResponse[D]{}, err
	}
	req, err := query.ParseRequest(raw, s.opts)
	if err != nil {
		return PaginatedResponse[D]{}, err
	}
	plan, err := query.NewPlan(es, req)
	if err != nil {
		return PaginatedResponse[D]{}, err
	}
	if logger.DebugEnabled() {
		logger.Debug("query_plan", map[string]any{
			"entity": s.entity,
			"leaves": len(query.Leaves(plan.Predicate)),
			"sort":   sortDescription(plan.Sort),
			"offset": plan.Offset,
			"limit":  plan.Limit,
		})
	}

	rows, total, err := s.store.Find(ctx, es, plan)
	if err != nil {
		logger.Error("store_find_failed", map[string]any{
			"entity": s.entity,
			"error":  err.Error(),
		})
		return PaginatedResponse[D]{}, fmt.Errorf("find %s: %w", s.entity, err)
	}

	items := make([]D, 0, len(rows))
	for _, r := range rows {
		items = append(items, s.mapper(r))
	}
	return PaginatedResponse[D]{
		Items:      items,
		TotalCount: total,
		Page:       req.Page,
		PageSize:   req.PageSize,
		TotalPages: totalPages(total, req.PageSize),
	}, nil
}

// Count returns the number of rows matching filterParams. Paging and order
// keys are ignored; a missing filterParams counts everything.
func (s *Service[D]) Count(ctx context.Context, raw map[string]string) (int64, error) {
	es, err := s.registry.Get(s.entity)
	if err != nil {
		return 0, err
	}
	filtersRaw := strings.TrimSpace(raw[query.ParamFilterParams])
	if filtersRaw == "" {
		filtersRaw = "{}"
	}
	filters, err := query.ParseFilters(filtersRaw)
	if err != nil {
		return 0, err
	}
	pred, err := query.CompilePredicate(es, filters)
	if err != nil {
		return 0, err
	}
	n, err := s.store.Count(ctx, es, pred)
	if err != nil {
		logger.Error("store_count_failed", map[string]any{
			"entity": s.entity,
			"error":  err.Error(),
		})
		return 0, fmt.Errorf("count %s: %w", s.entity, err)
	}
	return n, nil
}

// Get returns the DTO of the row whose primary key is id.
func (s *Service[D]) Get(ctx context.Context, id string) (D, error) {
	var zero D
	es, err := s.registry.Get(s.entity)
	if err != nil {
		return zero, err
	}
	plan := query.Plan{
		Predicate: query.And{Children: []query.Predicate{
			query.Equals{Field: query.Path{schema.ToAttribute(es.PrimaryKey)}, Value: parseID(id)},
		}},
		Sort:  query.CompileSort(nil, es.PrimaryKey),
		Limit: 1,
	}
	rows, _, err := s.store.Find(ctx, es, plan)
	if err != nil {
		logger.Error("store_get_failed", map[string]any{
			"entity": s.entity,
			"id":     id,
			"error":  err.Error(),
		})
		return zero, fmt.Errorf("get %s %s: %w", s.entity, id, err)
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s %s: %w", s.entity, id, ErrNotFound)
	}
	return s.mapper(rows[0]), nil
}

// Delete is a soft delete: the row stays and its active flag is cleared.
func (s *Service[D]) Delete(ctx context.Context, id string) error {
	es, err := s.registry.Get(s.entity)
	if err != nil {
		return err
	}
	if _, ok := es.Field(store.ActiveColumn); !ok {
		return fmt.Errorf("%s: %w", s.entity, ErrNotDeletable)
	}
	found, err := s.store.Deactivate(ctx, es, parseID(id))
	if err != nil {
		logger.Error("store_deactivate_failed", map[string]any{
			"entity": s.entity,
			"id":     id,
			"error":  err.Error(),
		})
		return fmt.Errorf("delete %s %s: %w", s.entity, id, err)
	}
	if !found {
		return fmt.Errorf("%s %s: %w", s.entity, id, ErrNotFound)
	}
	logger.Info("entity_deactivated", map[string]any{
		"entity": s.entity,
		"id":     id,
	})
	return nil
}

// parseID keeps decimal ids numeric so they compare equal to integer keys.
func parseID(id string) any {
	id = strings.TrimSpace(id)
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 || total <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func sortDescription(keys []query.SortKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		dir := "asc"
		if !k.Ascending {
			dir = "desc"
		}
		out[i] = k.Field.String() + " " + dir
	}
	return out
}
