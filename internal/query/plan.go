package query

import (
	"math"

	"BackofficeAPI/internal/schema"
)

// Plan is the compiled, ready-to-execute query. Limit always equals the
// requested page size and Offset is derived from the requested page.
type Plan struct {
	Predicate Predicate
	Sort      []SortKey
	Offset    int
	Limit     int
}

// Window translates a one-based page into a zero-based offset and limit.
// A page whose offset does not fit in an int is rejected, never wrapped.
func Window(page, pageSize int) (offset, limit int, err error) {
	if page < 1 {
		return 0, 0, userErrorf(CodeInvalidPage, "page must be at least 1, got %d", page)
	}
	if pageSize < 1 {
		return 0, 0, userErrorf(CodeInvalidPageSize, "pageSize must be at least 1, got %d", pageSize)
	}
	if page-1 > math.MaxInt/pageSize {
		return 0, 0, userErrorf(CodeInvalidPage, "page %d with pageSize %d is out of range", page, pageSize)
	}
	return (page - 1) * pageSize, pageSize, nil
}

// NewPlan compiles req against s.
func NewPlan(s schema.EntitySchema, req FilterRequest) (Plan, error) {
	pred, err := CompilePredicate(s, req.Filters)
	if err != nil {
		return Plan{}, err
	}
	offset, limit, err := Window(req.Page, req.PageSize)
	if err != nil {
		return Plan{}, err
	}
	return Plan{
		Predicate: pred,
		Sort:      CompileSort(req.Order, s.PrimaryKey),
		Offset:    offset,
		Limit:     limit,
	}, nil
}
