package handler

import (
	"net/http"

	"BackofficeAPI/internal/crud"
	"BackofficeAPI/internal/query"
)

// FilteredHandler serves GET /api/{entity}/filtered with the page, pageSize,
// filterParams and orderParams query parameters.
func FilteredHandler[D any](svc *crud.Service[D]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowGet(w, r) {
			return
		}
		raw := rawParams(r, query.ParamPage, query.ParamPageSize, query.ParamFilterParams, query.ParamOrderParams)
		resp, err := svc.Find(r.Context(), raw)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
