package store

import (
	"context"
	"errors"
	"fmt"

	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"
)

// Row is one entity keyed by camelCase attribute. Related entities appear as
// nested rows (belongs_to) or slices of rows (has_many, many_to_many).
type Row = map[string]any

// ActiveColumn is the soft-delete flag. Deactivated rows stay readable.
const ActiveColumn = "active"

// ErrInvalidWindow is returned for a plan with a negative offset or limit.
var ErrInvalidWindow = errors.New("store: invalid page window")

// Store executes compiled plans for an entity.
type Store interface {
	// Find returns the page selected by plan and the number of rows matching
	// plan.Predicate before pagination.
	Find(ctx context.Context, s schema.EntitySchema, plan query.Plan) ([]Row, int64, error)
	Count(ctx context.Context, s schema.EntitySchema, pred query.Predicate) (int64, error)
	// Deactivate clears the active flag of the row whose primary key is id
	// and reports whether such a row exists.
	Deactivate(ctx context.Context, s schema.EntitySchema, id any) (bool, error)
}

func checkWindow(plan query.Plan) error {
	if plan.Offset < 0 || plan.Limit < 0 {
		return fmt.Errorf("%w: offset %d, limit %d", ErrInvalidWindow, plan.Offset, plan.Limit)
	}
	return nil
}
