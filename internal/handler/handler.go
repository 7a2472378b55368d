package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"BackofficeAPI/internal/crud"
	"BackofficeAPI/internal/logger"
	"BackofficeAPI/internal/query"
)

// Endpoints are the handlers serving one entity.
type Endpoints struct {
	Filtered http.HandlerFunc
	Count    http.HandlerFunc
	Item     http.HandlerFunc
}

// Entities routes /api/{entity}/... requests to the endpoints of entity.
type Entities map[string]Endpoints

// ForService builds the endpoints of svc.
func ForService[D any](svc *crud.Service[D]) Endpoints {
	return Endpoints{
		Filtered: FilteredHandler(svc),
		Count:    CountHandler(svc),
		Item:     ItemHandler(svc),
	}
}

func (e Entities) Filtered(w http.ResponseWriter, r *http.Request) {
	if ep, ok := e.lookup(w, r); ok {
		ep.Filtered(w, r)
	}
}

func (e Entities) Count(w http.ResponseWriter, r *http.Request) {
	if ep, ok := e.lookup(w, r); ok {
		ep.Count(w, r)
	}
}

func (e Entities) Item(w http.ResponseWriter, r *http.Request) {
	if ep, ok := e.lookup(w, r); ok {
		ep.Item(w, r)
	}
}

func (e Entities) lookup(w http.ResponseWriter, r *http.Request) (Endpoints, bool) {
	entity := r.PathValue("entity")
	ep, ok := e[entity]
	if !ok {
		logger.Warn("unknown_entity", map[string]any{
			"path":   r.URL.Path,
			"entity": entity,
		})
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{
			Code:    "NOT_FOUND",
			Message: "entity " + entity + " is not served",
		}})
		return Endpoints{}, false
	}
	return ep, true
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

// rawParams collects the first value of each key from the query string.
func rawParams(r *http.Request, keys ...string) map[string]string {
	values := r.URL.Query()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if values.Has(k) {
			out[k] = values.Get(k)
		}
	}
	return out
}

func allowGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	methodNotAllowed(w, r, http.MethodGet)
	return false
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	logger.Warn("method_not_allowed", map[string]any{
		"path":   r.URL.Path,
		"method": r.Method,
	})
	w.Header().Set("Allow", allow)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{
		Code:    "METHOD_NOT_ALLOWED",
		Message: "only " + allow + " allowed",
	}})
}

// writeError answers user errors with 400 and their code and a missing row
// with 404; anything else is reported as an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if ue, ok := query.AsUserError(err); ok {
		logger.Warn("invalid_request", map[string]any{
			"path":    r.URL.Path,
			"code":    ue.Code,
			"message": ue.Message,
		})
		writeJSON(w, http.StatusBadRequest, errorBody{Error: errorDetail{Code: ue.Code, Message: ue.Message}})
		return
	}
	if errors.Is(err, crud.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: errorDetail{Code: "NOT_FOUND", Message: err.Error()}})
		return
	}
	if errors.Is(err, crud.ErrNotDeletable) {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Warn("request_canceled", map[string]any{"path": r.URL.Path})
		return
	}
	logger.Error("request_failed", map[string]any{
		"path":  r.URL.Path,
		"error": err.Error(),
	})
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: errorDetail{
		Code:    "INTERNAL",
		Message: "internal error",
	}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("write_response_failed", map[string]any{
			"error": err.Error(),
		})
	}
}
