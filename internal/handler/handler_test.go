package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"BackofficeAPI/internal/crud"
	"BackofficeAPI/internal/query"
	"BackofficeAPI/internal/schema"
	"BackofficeAPI/internal/store"

	"github.com/google/go-cmp/cmp"
)

func productSchema() schema.EntitySchema {
	return schema.EntitySchema{
		Entity:     "products",
		Table:      "products",
		PrimaryKey: "id",
		Fields: map[string]schema.FieldSchema{
			"name":   {Name: "name", Types: []string{"string"}},
			"price":  {Name: "price", Types: []string{"number"}},
			"active": {Name: "active", Types: []string{"boolean"}},
			"categories": {Name: "categories", Types: []string{"array"}, Relation: &schema.Relation{
				Attribute: "categories", Key: "id", MatchBy: "name", Kind: schema.ManyToMany,
			}},
		},
	}
}

func newMux(t *testing.T, strict bool) *http.ServeMux {
	t.Helper()
	mem := store.NewMemory()
	for i := 1; i <= 25; i++ {
		cat := "Books"
		if i%2 == 0 {
			cat = "Electronics"
		}
		mem.Insert("products", store.Row{
			"id":         int64(i),
			"name":       fmt.Sprintf("Product %d", i),
			"price":      float64(i),
			"active":     true,
			"categories": []any{store.Row{"id": int64(i % 2), "name": cat}},
		})
	}
	es := productSchema()
	svc, err := crud.NewService("products", schema.NewRegistry(es), mem, crud.SchemaProjection(es),
		query.ParseOptions{Strict: strict})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	entities := Entities{"products": ForService(svc)}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/{entity}/filtered", entities.Filtered)
	mux.HandleFunc("/api/{entity}/count", entities.Count)
	mux.HandleFunc("/api/{entity}/{id}", entities.Item)
	return mux
}

func get(t *testing.T, mux http.Handler, path string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodGet, path+"?"+q.Encode(), nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

type filteredBody struct {
	Result     []map[string]any `json:"result"`
	Count      int64            `json:"count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

func TestFilteredHandlerReturnsPage(t *testing.T) {
	w := get(t, newMux(t, true), "/api/products/filtered", map[string]string{
		"page":         "2",
		"pageSize":     "5",
		"filterParams": `{"categories": ["Electronics"]}`,
		"orderParams":  `[["price", "desc"]]`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var body filteredBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Count != 12 || body.Page != 2 || body.PageSize != 5 || body.TotalPages != 3 {
		t.Fatalf("unexpected metadata: %+v", body)
	}
	var prices []float64
	for _, item := range body.Result {
		prices = append(prices, item["price"].(float64))
	}
	if diff := cmp.Diff([]float64{14, 12, 10, 8, 6}, prices); diff != "" {
		t.Fatalf("prices (-want +got):\n%s", diff)
	}
	if got := body.Result[0]["categories"]; !cmp.Equal(got, []any{"Electronics"}) {
		t.Fatalf("categories not projected to names: %v", got)
	}
}

func TestFilteredHandlerUserErrorIs400(t *testing.T) {
	w := get(t, newMux(t, true), "/api/products/filtered", map[string]string{
		"pageSize":     "5",
		"filterParams": `{}`,
		"orderParams":  `[]`,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error.Code != query.CodePageRequired {
		t.Fatalf("unexpected code %q", body.Error.Code)
	}

	w = get(t, newMux(t, true), "/api/products/filtered", map[string]string{
		"page":         "1",
		"pageSize":     "5",
		"filterParams": `{"price": "cheap"}`,
		"orderParams":  `[]`,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestFilteredHandlerLenient(t *testing.T) {
	w := get(t, newMux(t, false), "/api/products/filtered", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var body filteredBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Result) != query.DefaultPageSize || body.Count != 25 {
		t.Fatalf("unexpected body: %d items, count %d", len(body.Result), body.Count)
	}
}

func TestCountHandler(t *testing.T) {
	w := get(t, newMux(t, true), "/api/products/count", map[string]string{
		"filterParams": `{"name": "product 2"}`,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", w.Code, w.Body.String())
	}
	var body countResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	// Product 2, 20..25
	if body.Count != 7 {
		t.Fatalf("want 7, got %d", body.Count)
	}
}

func TestUnknownEntityIs404(t *testing.T) {
	w := get(t, newMux(t, true), "/api/orders/count", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestOnlyGetAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/products/count", nil)
	w := httptest.NewRecorder()
	newMux(t, true).ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != http.MethodGet {
		t.Fatalf("unexpected Allow header %q", got)
	}
}

func TestItemGet(t *testing.T) {
	mux := newMux(t, true)
	w := get(t, mux, "/api/products/7", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["name"] != "Product 7" || body["id"] != float64(7) {
		t.Fatalf("unexpected item: %v", body)
	}

	if w := get(t, mux, "/api/products/700", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for a missing id, got %d", w.Code)
	}
}

func TestItemDeleteIsSoft(t *testing.T) {
	mux := newMux(t, true)
	req := httptest.NewRequest(http.MethodDelete, "/api/products/3", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	w = get(t, mux, "/api/products/3", nil)
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["active"] != false {
		t.Fatalf("expected active=false after delete, got %v", body)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/products/300", nil)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestItemMethodNotAllowed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/products/3", nil)
	w := httptest.NewRecorder()
	newMux(t, true).ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", w.Code)
	}
	if got := w.Header().Get("Allow"); got != "GET, DELETE" {
		t.Fatalf("unexpected Allow header %q", got)
	}
}
