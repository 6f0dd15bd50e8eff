package spices

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
	"spice-taste/stores/memory"

	"github.com/go-chi/chi/v5"
)

func newRouter(store core.DocumentStore, upsert bool) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/spice", HandleList(store))
	r.Post("/spice", HandleCreate(store))
	r.Get("/spice/{id}", HandleGet(store))
	r.Put("/spice/{id}", HandleUpdateQuantity(store, upsert))
	r.Delete("/spice/{id}", HandleDelete(store))
	r.Get("/spiceCount", HandleCount(store))
	r.Get("/myitem", HandleListByOwner(store))
	return r
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("Failed to decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestCreate_DuplicateSuppressed(t *testing.T) {
	store := memory.NewStore()
	r := newRouter(store, true)
	body := `{"email":"a@x.com","name":"Cumin","price":5,"quantity":10,"image":"i.png"}`

	rec := do(t, r, http.MethodPost, "/spice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	first := decode[resource.CreateResponse](t, rec)
	if !first.Success {
		t.Errorf("first create success = false, want true")
	}

	rec = do(t, r, http.MethodPost, "/spice", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	second := decode[resource.CreateResponse](t, rec)
	if second.Success {
		t.Errorf("second create success = true, want false")
	}
	if second.Item["name"] != "Cumin" {
		t.Errorf("Item = %v, want the stored listing", second.Item)
	}

	count := decode[CountResponse](t, do(t, r, http.MethodGet, "/spiceCount", ""))
	if count.Count != 1 {
		t.Errorf("count = %d, want 1", count.Count)
	}
}

func TestCreate_DifferentQuantityIsNewListing(t *testing.T) {
	r := newRouter(memory.NewStore(), true)

	do(t, r, http.MethodPost, "/spice", `{"email":"a@x.com","name":"Cumin","price":5,"quantity":10,"image":"i.png"}`)
	resp := decode[resource.CreateResponse](t, do(t, r, http.MethodPost, "/spice", `{"email":"a@x.com","name":"Cumin","price":5,"quantity":11,"image":"i.png"}`))
	if !resp.Success {
		t.Error("listing with a different quantity should be created")
	}
}

func seed(t *testing.T, r http.Handler, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		resp := decode[resource.CreateResponse](t, do(t, r, http.MethodPost, "/spice", fmt.Sprintf(`{"name":"spice-%d","email":"owner%d@x.com"}`, i, i%2)))
		if !resp.Success {
			t.Fatalf("seed %d was not created", i)
		}
		ids = append(ids, resp.Result.InsertedID.(string))
	}
	return ids
}

func TestList_Pagination(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	seed(t, r, 5)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"no pagination", "", []string{"spice-0", "spice-1", "spice-2", "spice-3", "spice-4"}},
		{"second page of two", "?page=1&size=2", []string{"spice-2", "spice-3"}},
		{"page zero with size", "?page=0&size=2", []string{"spice-0", "spice-1"}},
		{"last partial page", "?page=2&size=2", []string{"spice-4"}},
		{"past the end", "?page=9&size=2", []string{}},
		{"zeros", "?page=0&size=0", []string{"spice-0", "spice-1", "spice-2", "spice-3", "spice-4"}},
		{"unparseable", "?page=x&size=y", []string{"spice-0", "spice-1", "spice-2", "spice-3", "spice-4"}},
		{"page without size", "?page=3", []string{"spice-0", "spice-1", "spice-2", "spice-3", "spice-4"}},
		{"skip wraps to zero", "?page=4611686018427387904&size=4", []string{}},
		{"skip wraps negative", "?page=3074457345618258603&size=3", []string{}},
		{"max page", "?page=9223372036854775807&size=2", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := decode[[]core.Document](t, do(t, r, http.MethodGet, "/spice"+tt.query, ""))
			if len(docs) != len(tt.want) {
				t.Fatalf("got %d docs, want %d", len(docs), len(tt.want))
			}
			for i, name := range tt.want {
				if docs[i]["name"] != name {
					t.Errorf("docs[%d].name = %v, want %s", i, docs[i]["name"], name)
				}
			}
		})
	}
}

func TestGet(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	ids := seed(t, r, 2)

	doc := decode[core.Document](t, do(t, r, http.MethodGet, "/spice/"+ids[1], ""))
	if doc["name"] != "spice-1" || doc[core.IDField] != ids[1] {
		t.Errorf("GET /spice/{id} = %v", doc)
	}

	rec := do(t, r, http.MethodGet, "/spice/"+core.NewID(), "")
	if rec.Code != http.StatusOK {
		t.Errorf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "null" {
		t.Errorf("body for unknown id = %q, want null", got)
	}
}

func TestMalformedID(t *testing.T) {
	r := newRouter(memory.NewStore(), true)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := do(t, r, method, "/spice/not-an-id", `{"quantity":1}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want %d", method, rec.Code, http.StatusBadRequest)
		}
	}
}

func TestUpdateQuantity_Existing(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	ids := seed(t, r, 1)

	result := decode[core.UpdateResult](t, do(t, r, http.MethodPut, "/spice/"+ids[0], `{"quantity":3,"name":"ignored"}`))
	if result.MatchedCount != 1 || result.ModifiedCount != 1 || result.UpsertedCount != 0 {
		t.Errorf("UpdateResult = %+v", result)
	}

	doc := decode[core.Document](t, do(t, r, http.MethodGet, "/spice/"+ids[0], ""))
	if doc["quantity"] != float64(3) {
		t.Errorf("quantity = %v, want 3", doc["quantity"])
	}
	if doc["name"] != "spice-0" {
		t.Errorf("name = %v, only quantity should change", doc["name"])
	}
}

func TestUpdateQuantity_UpsertCreatesPartialDocument(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	id := core.NewID()

	result := decode[core.UpdateResult](t, do(t, r, http.MethodPut, "/spice/"+id, `{"quantity":3}`))
	if result.UpsertedCount != 1 || result.UpsertedID != id {
		t.Errorf("UpdateResult = %+v, want an upsert of %s", result, id)
	}

	doc := decode[core.Document](t, do(t, r, http.MethodGet, "/spice/"+id, ""))
	if len(doc) != 2 || doc["quantity"] != float64(3) {
		t.Errorf("upserted document = %v, want only _id and quantity", doc)
	}
}

func TestUpdateQuantity_NoUpsert(t *testing.T) {
	r := newRouter(memory.NewStore(), false)
	id := core.NewID()

	result := decode[core.UpdateResult](t, do(t, r, http.MethodPut, "/spice/"+id, `{"quantity":3}`))
	if result.MatchedCount != 0 || result.UpsertedCount != 0 {
		t.Errorf("UpdateResult = %+v, want no match and no upsert", result)
	}

	count := decode[CountResponse](t, do(t, r, http.MethodGet, "/spiceCount", ""))
	if count.Count != 0 {
		t.Errorf("count = %d, want 0", count.Count)
	}
}

func TestDelete_Twice(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	ids := seed(t, r, 1)

	first := decode[core.DeleteResult](t, do(t, r, http.MethodDelete, "/spice/"+ids[0], ""))
	if first.DeletedCount != 1 {
		t.Errorf("first delete removed %d, want 1", first.DeletedCount)
	}

	rec := do(t, r, http.MethodDelete, "/spice/"+ids[0], "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	second := decode[core.DeleteResult](t, rec)
	if second.DeletedCount != 0 {
		t.Errorf("second delete removed %d, want 0", second.DeletedCount)
	}
}

func TestListByOwner(t *testing.T) {
	r := newRouter(memory.NewStore(), true)
	seed(t, r, 5)

	docs := decode[[]core.Document](t, do(t, r, http.MethodGet, "/myitem?email=owner0@x.com", ""))
	if len(docs) != 3 {
		t.Fatalf("got %d listings, want 3", len(docs))
	}
	for _, doc := range docs {
		if doc["email"] != "owner0@x.com" {
			t.Errorf("listing of another owner returned: %v", doc)
		}
	}

	none := decode[[]core.Document](t, do(t, r, http.MethodGet, "/myitem?email=nobody@x.com", ""))
	if len(none) != 0 {
		t.Errorf("got %d listings for an unknown owner, want 0", len(none))
	}
}
