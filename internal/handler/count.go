package handler

import (
	"net/http"

	"BackofficeAPI/internal/crud"
	"BackofficeAPI/internal/query"
)

type countResponse struct {
	Count int64 `json:"count"`
}

// CountHandler serves GET /api/{entity}/count?filterParams=...
func CountHandler[D any](svc *crud.Service[D]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		n, err := svc.Count(r.Context(), rawParams(r, query.ParamFilterParams))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, countResponse{Count: n})
	}
}
