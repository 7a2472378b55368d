package itests

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type filteredResponse struct {
	Result     []map[string]any `json:"result"`
	Count      int64            `json:"count"`
	Page       int              `json:"page"`
	PageSize   int              `json:"pageSize"`
	TotalPages int              `json:"totalPages"`
}

func getJSON(t *testing.T, path string, params map[string]string, out any) int {
	t.Helper()
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(testBaseURL + path + "?" + q.Encode())
	if err != nil {
		t.Fatalf("GET %s failed: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.Unmarshal(b, out); err != nil {
			t.Fatalf("invalid JSON response: %v; body=%s", err, string(b))
		}
	}
	return resp.StatusCode
}

func filtered(t *testing.T, entity, filters, order string, page, size string) filteredResponse {
	t.Helper()
	var out filteredResponse
	status := getJSON(t, "/api/"+entity+"/filtered", map[string]string{
		"page":         page,
		"pageSize":     size,
		"filterParams": filters,
		"orderParams":  order,
	}, &out)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	return out
}

func names(items []map[string]any) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i], _ = it["name"].(string)
	}
	return out
}

func Test_Filtered_SubstringIsCaseInsensitive(t *testing.T) {
	out := filtered(t, "products", `{"name": "foo"}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Foobar Speaker"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_LikeMetacharactersAreLiteral(t *testing.T) {
	out := filtered(t, "products", `{"short_description": "100%"}`, `[]`, "1", "10")
	if out.Count != 1 {
		t.Fatalf("expected one match for a literal percent sign, got %d", out.Count)
	}
}

func Test_Filtered_NumericStringComparesAsNumber(t *testing.T) {
	out := filtered(t, "products", `{"price": "5"}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Garden Hose", "Seed Pack"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_CategoriesMatchByName(t *testing.T) {
	out := filtered(t, "products", `{"categories": ["Electronics", "Books"]}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Foobar Speaker", "Go Programming", "E-Reader"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]any{"Books", "Electronics"}, out.Result[2]["categories"]); diff != "" {
		t.Fatalf("categories projection (-want +got):\n%s", diff)
	}
}

func Test_Filtered_RelatedNameAndForeignKey(t *testing.T) {
	out := filtered(t, "products", `{"country": "jap"}`, `[["price", "desc"]]`, "1", "10")
	if diff := cmp.Diff([]string{"E-Reader", "Go Programming"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
	if out.Result[0]["country"] != "Japan" || out.Result[0]["country_id"] != float64(3) {
		t.Fatalf("unexpected relation projection: %v", out.Result[0])
	}

	out = filtered(t, "products", `{"country_id": 1}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Foobar Speaker", "Seed Pack"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_HasManyExists(t *testing.T) {
	out := filtered(t, "products", `{"reviews": "bob"}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Foobar Speaker"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_DateRange(t *testing.T) {
	out := filtered(t, "products", `{"released_at": {"min": "2022-01-01", "max": "2023-12-31"}}`, `[]`, "1", "10")
	if diff := cmp.Diff([]string{"Foobar Speaker", "Garden Hose"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_BirthdayIgnoresYear(t *testing.T) {
	out := filtered(t, "users", `{"birth_date": "2020-03-15"}`, `[]`, "1", "10")
	var emails []string
	for _, u := range out.Result {
		emails = append(emails, u["email"].(string))
	}
	if diff := cmp.Diff([]string{"ann@example.com", "kei@example.com"}, emails); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_PaginationAndOrder(t *testing.T) {
	out := filtered(t, "products", `{}`, `[["price", "desc"]]`, "2", "2")
	if out.Count != 5 || out.Page != 2 || out.PageSize != 2 || out.TotalPages != 3 {
		t.Fatalf("unexpected metadata: %+v", out)
	}
	// prices 120, 49.9 | 35, 5 (id 2), 5 (id 5)
	if diff := cmp.Diff([]string{"Go Programming", "Garden Hose"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}

func Test_Filtered_UserErrorIs400(t *testing.T) {
	status := getJSON(t, "/api/products/filtered", map[string]string{
		"page": "1", "pageSize": "10", "filterParams": `{"price": "cheap"}`, "orderParams": `[]`,
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
}

func Test_Count_Products(t *testing.T) {
	var out struct {
		Count int64 `json:"count"`
	}
	if status := getJSON(t, "/api/products/count", map[string]string{"filterParams": `{"categories": ["Garden"]}`}, &out); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if out.Count != 2 {
		t.Fatalf("want 2, got %d", out.Count)
	}
}

func Test_Item_GetAndSoftDelete(t *testing.T) {
	var product map[string]any
	if status := getJSON(t, "/api/products/4", nil, &product); status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if product["name"] != "E-Reader" || product["country"] != "Japan" || product["active"] != true {
		t.Fatalf("unexpected product: %v", product)
	}
	if status := getJSON(t, "/api/products/404", nil, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", status)
	}

	req, _ := http.NewRequest(http.MethodDelete, testBaseURL+"/api/users/2", nil)
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("DELETE failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	var user map[string]any
	if status := getJSON(t, "/api/users/2", nil, &user); status != http.StatusOK {
		t.Fatalf("soft-deleted user must stay readable, got %d", status)
	}
	if user["email"] != "bob@example.com" || user["active"] != false {
		t.Fatalf("unexpected user: %v", user)
	}
}

func Test_Filtered_OrderByForeignKey(t *testing.T) {
	out := filtered(t, "products", `{}`, `[["country_id", "desc"]]`, "1", "10")
	// Japan (3): ids 3, 4 | Chile (2): id 2 | Latvia (1): ids 1, 5
	if diff := cmp.Diff([]string{"Go Programming", "E-Reader", "Garden Hose", "Foobar Speaker", "Seed Pack"}, names(out.Result)); diff != "" {
		t.Fatalf("(-want +got):\n%s", diff)
	}
}
