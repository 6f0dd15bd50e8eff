// Package resource holds the request plumbing every collection handler shares:
// body decoding, error rendering and the existence-guarded create.
package resource

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"spice-taste/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

const maxBodyBytes = 1 << 20

type (
	// CreateResponse is the body of every create route. Result is set when a
	// document was inserted, Item when an identical one already existed.
	CreateResponse struct {
		Success bool               `json:"success"`
		Result  *core.InsertResult `json:"result,omitempty"`
		Item    core.Document      `json:"item,omitempty"`
	}

	ErrorResponse struct {
		Message string `json:"message"`
	}
)

// DecodeDocument reads the request body as a JSON object. An empty body
// decodes to an empty document.
func DecodeDocument(w http.ResponseWriter, r *http.Request) (core.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	var doc core.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return core.Document{}, nil
		}
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if doc == nil {
		doc = core.Document{}
	}
	return doc, nil
}

// PathParam returns the URL parameter key with percent-escapes decoded.
// chi matches on the escaped RawPath when the request carries one, and on the
// already decoded Path otherwise, so only the first case is unescaped here.
func PathParam(r *http.Request, key string) (string, error) {
	value := chi.URLParam(r, key)
	if r.URL.RawPath == "" {
		return value, nil
	}
	decoded, err := url.PathUnescape(value)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", key, err)
	}
	return decoded, nil
}

// RenderError writes a JSON error body with status.
func RenderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Message: message})
}

// RenderStoreError logs a failed store call and answers 400 for malformed ids, 500 otherwise.
func RenderStoreError(w http.ResponseWriter, r *http.Request, err error, action string, fields logrus.Fields) {
	if errors.Is(err, core.ErrInvalidID) {
		RenderError(w, r, http.StatusBadRequest, "invalid id")
		return
	}
	logrus.WithFields(fields).WithError(err).Errorf("Failed to %s", action)
	RenderError(w, r, http.StatusInternalServerError, "Failed to "+action)
}

// HandleCreateUnique inserts the posted document unless one with the same
// identity fields already exists, in which case the existing one is returned
// with success=false. The lookup and the insert are separate store calls, so
// concurrent identical submissions can both be inserted.
func HandleCreateUnique(coll core.Collection, identity ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := DecodeDocument(w, r)
		if err != nil {
			RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		existing, err := coll.FindOne(r.Context(), doc.Pick(identity...))
		switch {
		case err == nil:
			render.JSON(w, r, CreateResponse{Success: false, Item: existing})
			return
		case !errors.Is(err, core.ErrNotFound):
			RenderStoreError(w, r, err, "look up document", nil)
			return
		}

		result, err := coll.InsertOne(r.Context(), doc)
		if err != nil {
			RenderStoreError(w, r, err, "create document", nil)
			return
		}
		render.JSON(w, r, CreateResponse{Success: true, Result: result})
	}
}

// HandleCreate inserts the posted document unconditionally.
func HandleCreate(coll core.Collection) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := DecodeDocument(w, r)
		if err != nil {
			RenderError(w, r, http.StatusBadRequest, err.Error())
			return
		}

		result, err := coll.InsertOne(r.Context(), doc)
		if err != nil {
			RenderStoreError(w, r, err, "create document", nil)
			return
		}
		render.JSON(w, r, CreateResponse{Success: true, Result: result})
	}
}

// HandleFind returns the documents matching the filter built from the request.
func HandleFind(coll core.Collection, filter func(r *http.Request) core.Filter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f := core.Filter{}
		if filter != nil {
			f = filter(r)
		}

		docs, err := coll.Find(r.Context(), f, nil)
		if err != nil {
			RenderStoreError(w, r, err, "list documents", logrus.Fields{"filter": f})
			return
		}
		render.JSON(w, r, docs)
	}
}
