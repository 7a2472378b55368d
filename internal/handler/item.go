package handler

import (
	"net/http"

	"BackofficeAPI/internal/crud"
)

// ItemHandler serves GET and DELETE /api/{entity}/{id}. DELETE is a soft
// delete and answers 204.
func ItemHandler[D any](svc *crud.Service[D]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		switch r.Method {
		case http.MethodGet:
			dto, err := svc.Get(r.Context(), id)
			if err != nil {
				writeError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, dto)
		case http.MethodDelete:
			if err := svc.Delete(r.Context(), id); err != nil {
				writeError(w, r, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, r, http.MethodGet+", "+http.MethodDelete)
		}
	}
}
