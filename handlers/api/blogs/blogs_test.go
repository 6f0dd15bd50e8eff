package blogs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"
	"spice-taste/stores/memory"
)

func postBlog(t *testing.T, handler http.HandlerFunc, body string) resource.CreateResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/blog", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Status code mismatch: got %d, want %d", rec.Code, http.StatusOK)
	}
	var resp resource.CreateResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return resp
}

func TestHandleCreate_Duplicate(t *testing.T) {
	store := memory.NewStore()
	handler := HandleCreate(store)
	body := `{"email":"a@x.com","name":"Saffron","des":"notes","docs":["d1"],"image":"s.png"}`

	first := postBlog(t, handler, body)
	if !first.Success || first.Result == nil {
		t.Fatalf("first create = %+v, want success", first)
	}

	second := postBlog(t, handler, body)
	if second.Success {
		t.Error("identical post should not be created twice")
	}
	if second.Item[core.IDField] != first.Result.InsertedID {
		t.Errorf("Item._id = %v, want %v", second.Item[core.IDField], first.Result.InsertedID)
	}

	count, _ := store.Collection(core.BlogCollection).EstimatedCount(context.Background())
	if count != 1 {
		t.Errorf("EstimatedCount() = %d, want 1", count)
	}
}

func TestHandleList(t *testing.T) {
	store := memory.NewStore()
	postBlog(t, HandleCreate(store), `{"name":"Saffron"}`)
	postBlog(t, HandleCreate(store), `{"name":"Sumac"}`)

	rec := httptest.NewRecorder()
	HandleList(store)(rec, httptest.NewRequest(http.MethodGet, "/blog", nil))

	var docs []core.Document
	if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d posts, want 2", len(docs))
	}
}
