package core

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by FindOne when no document matches the filter.
	ErrNotFound = errors.New("document not found")

	// ErrInvalidID is returned by ParseID when the raw id is not in the store's id format.
	ErrInvalidID = errors.New("invalid document id")
)

// IDField is the field every stored document carries its identifier in.
const IDField = "_id"

// Collection names used by the handlers.
const (
	SpiceCollection   = "spices"
	UserCollection    = "users"
	MessageCollection = "messages"
	BlogCollection    = "blogs"
	CommentCollection = "comments"
)

type (
	// Document is an opaque JSON-shaped document. Handlers only constrain the fields they read or write.
	Document map[string]any

	// Filter selects documents by exact match on top-level fields.
	// A nil value matches documents where the field is missing or null.
	Filter map[string]any

	FindOptions struct {
		Skip  int64
		Limit int64 // 0 means no limit
	}

	UpdateOptions struct {
		Upsert bool
	}

	InsertResult struct {
		Acknowledged bool `json:"acknowledged"`
		InsertedID   any  `json:"insertedId"`
	}

	UpdateResult struct {
		Acknowledged  bool  `json:"acknowledged"`
		MatchedCount  int64 `json:"matchedCount"`
		ModifiedCount int64 `json:"modifiedCount"`
		UpsertedCount int64 `json:"upsertedCount"`
		UpsertedID    any   `json:"upsertedId"`
	}

	DeleteResult struct {
		Acknowledged bool  `json:"acknowledged"`
		DeletedCount int64 `json:"deletedCount"`
	}

	// Collection is a single named set of documents.
	Collection interface {
		// Find returns every matching document in insertion order.
		Find(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error)

		// FindOne returns the first matching document or ErrNotFound.
		FindOne(ctx context.Context, filter Filter) (Document, error)

		InsertOne(ctx context.Context, doc Document) (*InsertResult, error)

		// UpdateOne applies set to the first matching document, the way a "$set" update does.
		UpdateOne(ctx context.Context, filter Filter, set Document, opts *UpdateOptions) (*UpdateResult, error)

		DeleteOne(ctx context.Context, filter Filter) (*DeleteResult, error)

		// EstimatedCount returns a fast, possibly stale, document count.
		EstimatedCount(ctx context.Context) (int64, error)
	}

	// DocumentStore hands out collections and knows the id format of its backend.
	DocumentStore interface {
		Collection(name string) Collection

		// ParseID converts a path parameter into the value stored under IDField.
		ParseID(raw string) (any, error)

		Close(ctx context.Context) error
	}
)

// Clone returns a shallow copy of d.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// Pick builds an exact-match filter from the named fields of d.
// Fields absent from d become nil and therefore match missing fields.
func (d Document) Pick(fields ...string) Filter {
	f := make(Filter, len(fields))
	for _, name := range fields {
		f[name] = d[name]
	}
	return f
}
