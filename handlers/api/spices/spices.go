package spices

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"spice-taste/core"
	"spice-taste/handlers/api/resource"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Identity are the fields that make two listings the same listing.
var Identity = []string{"email", "name", "price", "quantity", "image"}

type CountResponse struct {
	Count int64 `json:"count"`
}

func collection(store core.DocumentStore) core.Collection {
	return store.Collection(core.SpiceCollection)
}

// pagination reads ?page and ?size. Either one being non-zero turns paging on,
// so page=0&size=2 is the first page of two. A skip too large for int64 is
// clamped, which still lies past the end of any collection.
func pagination(r *http.Request) *core.FindOptions {
	page := queryInt(r, "page")
	size := queryInt(r, "size")
	if page == 0 && size == 0 {
		return nil
	}
	if size > 0 && page > math.MaxInt64/size {
		return &core.FindOptions{Skip: math.MaxInt64, Limit: size}
	}
	return &core.FindOptions{Skip: page * size, Limit: size}
}

// queryInt parses a non-negative integer query parameter; anything else is 0.
func queryInt(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(key)), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func HandleList(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := pagination(r)
		docs, err := collection(store).Find(r.Context(), core.Filter{}, opts)
		if err != nil {
			resource.RenderStoreError(w, r, err, "list spices", logrus.Fields{"pagination": opts})
			return
		}
		render.JSON(w, r, docs)
	}
}

func HandleCount(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		count, err := collection(store).EstimatedCount(r.Context())
		if err != nil {
			resource.RenderStoreError(w, r, err, "count spices", nil)
			return
		}
		render.JSON(w, r, CountResponse{Count: count})
	}
}

// HandleGet answers JSON null when the listing does not exist.
func HandleGet(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID, err := resource.PathParam(r, "id")
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		id, err := store.ParseID(rawID)
		if err != nil {
			resource.RenderStoreError(w, r, err, "parse id", nil)
			return
		}

		doc, err := collection(store).FindOne(r.Context(), core.Filter{core.IDField: id})
		if errors.Is(err, core.ErrNotFound) {
			render.JSON(w, r, nil)
			return
		}
		if err != nil {
			resource.RenderStoreError(w, r, err, "get spice", logrus.Fields{"id": rawID})
			return
		}
		render.JSON(w, r, doc)
	}
}

// HandleUpdateQuantity sets only the quantity field. With upsert an unknown id
// creates a document holding just that id and quantity.
func HandleUpdateQuantity(store core.DocumentStore, upsert bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID, err := resource.PathParam(r, "id")
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		id, err := store.ParseID(rawID)
		if err != nil {
			resource.RenderStoreError(w, r, err, "parse id", nil)
			return
		}

		body, err := resource.DecodeDocument(w, r)
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		result, err := collection(store).UpdateOne(r.Context(),
			core.Filter{core.IDField: id},
			core.Document{"quantity": body["quantity"]},
			&core.UpdateOptions{Upsert: upsert},
		)
		if err != nil {
			resource.RenderStoreError(w, r, err, "update spice quantity", logrus.Fields{"id": rawID})
			return
		}
		render.JSON(w, r, result)
	}
}

func HandleCreate(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleCreateUnique(collection(store), Identity...)
}

// HandleDelete reports the number of removed documents, 0 when the id was unknown.
func HandleDelete(store core.DocumentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rawID, err := resource.PathParam(r, "id")
		if err != nil {
			resource.RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		id, err := store.ParseID(rawID)
		if err != nil {
			resource.RenderStoreError(w, r, err, "parse id", nil)
			return
		}

		result, err := collection(store).DeleteOne(r.Context(), core.Filter{core.IDField: id})
		if err != nil {
			resource.RenderStoreError(w, r, err, "delete spice", logrus.Fields{"id": rawID})
			return
		}
		render.JSON(w, r, result)
	}
}

// HandleListByOwner filters by ?email=. A missing parameter matches listings without an email.
func HandleListByOwner(store core.DocumentStore) http.HandlerFunc {
	return resource.HandleFind(collection(store), func(r *http.Request) core.Filter {
		email, ok := r.URL.Query()["email"]
		if !ok || len(email) == 0 {
			return core.Filter{"email": nil}
		}
		return core.Filter{"email": email[0]}
	})
}
