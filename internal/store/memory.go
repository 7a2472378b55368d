package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"
)

// Memory keeps rows per entity in insertion order. It is the reference
// implementation of predicate semantics and backs the service tests.
type Memory struct {
	mu   sync.RWMutex
	rows map[string][]Row
}

func NewMemory() *Memory {
	return &Memory{rows: make(map[string][]Row)}
}

// Insert appends copies of rows to entity.
func (m *Memory) Insert(entity string, rows ...Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range rows {
		m.rows[entity] = append(m.rows[entity], maps.Clone(r))
	}
}

func (m *Memory) Find(ctx context.Context, s schema.EntitySchema, plan query.Plan) ([]Row, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	if err := checkWindow(plan); err != nil {
		return nil, 0, err
	}
	matched := m.match(s.Entity, plan.Predicate)
	sortRows(matched, plan.Sort)

	total := int64(len(matched))
	start := min(plan.Offset, len(matched))
	end := len(matched)
	if plan.Limit > 0 {
		end = min(start+plan.Limit, len(matched))
	}
	page := make([]Row, 0, end-start)
	for _, r := range matched[start:end] {
		page = append(page, maps.Clone(r))
	}
	return page, total, nil
}

func (m *Memory) Count(ctx context.Context, s schema.EntitySchema, pred query.Predicate) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return int64(len(m.match(s.Entity, pred))), nil
}

func (m *Memory) Deactivate(ctx context.Context, s schema.EntitySchema, id any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	pk := schema.ToAttribute(s.PrimaryKey)
	m.mu.Lock()
	defer m.mu.Unlock()
	found := false
	rows := m.rows[s.Entity]
	for i, r := range rows {
		if equalValues(r[pk], id) {
			// readers may still hold r
			updated := maps.Clone(r)
			updated[ActiveColumn] = false
			rows[i] = updated
			found = true
		}
	}
	return found, nil
}

func (m *Memory) match(entity string, pred query.Predicate) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Row
	for _, r := range m.rows[entity] {
		if Matches(pred, r) {
			out = append(out, r)
		}
	}
	return out
}

// sortRows is stable: rows equal under every key keep store order.
func sortRows(rows []Row, keys []query.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keys {
			c := compareForSort(first(values(rows[i], k.Field)), first(values(rows[j], k.Field)))
			if c == 0 {
				continue
			}
			if !k.Ascending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func first(vs []any) any {
	if len(vs) == 0 {
		return nil
	}
	return vs[0]
}
