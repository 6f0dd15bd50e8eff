package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// ErrImmutableID is returned when an update tries to change a document's IDField.
var ErrImmutableID = errors.New("the _id field is immutable")

// The helpers below give the non-Mongo backends the same filter, update and
// upsert semantics the Mongo backend gets from the server.

// Matches reports whether doc satisfies every condition in filter.
func Matches(doc Document, filter Filter) bool {
	for field, want := range filter {
		got, ok := doc[field]
		if want == nil {
			if ok && got != nil {
				return false
			}
			continue
		}
		if !ok || !ValuesEqual(got, want) {
			return false
		}
	}
	return true
}

// ValuesEqual compares two JSON-shaped values by their canonical JSON encoding,
// so 5 and 5.0 are equal and map key order does not matter.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ja, jb)
}

// ApplySet writes every field of set into doc and reports whether anything changed.
func ApplySet(doc Document, set Document) (bool, error) {
	if id, ok := set[IDField]; ok && !ValuesEqual(id, doc[IDField]) {
		return false, ErrImmutableID
	}
	modified := false
	for field, v := range set {
		if old, ok := doc[field]; ok && ValuesEqual(old, v) {
			continue
		}
		doc[field] = v
		modified = true
	}
	return modified, nil
}

// UpsertDocument builds the document an upsert inserts when nothing matched:
// the equality fields of the filter overlaid with the "$set" fields.
// IDField is filled with a fresh ULID when neither side provides one.
func UpsertDocument(filter Filter, set Document) Document {
	doc := make(Document, len(filter)+len(set)+1)
	for field, v := range filter {
		if v != nil {
			doc[field] = v
		}
	}
	for field, v := range set {
		doc[field] = v
	}
	if _, ok := doc[IDField]; !ok {
		doc[IDField] = NewID()
	}
	return doc
}

// Window applies skip and limit to an ordered result set.
func Window(docs []Document, opts *FindOptions) []Document {
	if opts == nil {
		return docs
	}
	if opts.Skip > 0 {
		if opts.Skip >= int64(len(docs)) {
			return []Document{}
		}
		docs = docs[opts.Skip:]
	}
	if opts.Limit > 0 && opts.Limit < int64(len(docs)) {
		docs = docs[:opts.Limit]
	}
	return docs
}

// NewID returns a new ULID string. ULIDs sort by creation time, which keeps
// file and object listings in insertion order.
func NewID() string {
	return ulid.Make().String()
}

// ParseULID validates raw as a ULID and returns its canonical form.
func ParseULID(raw string) (string, error) {
	id, err := ulid.ParseStrict(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}
	return id.String(), nil
}

// PrepareInsert copies doc and assigns IDField when the caller did not supply one.
func PrepareInsert(doc Document) Document {
	out := doc.Clone()
	if id, ok := out[IDField]; !ok || id == nil {
		out[IDField] = NewID()
	}
	return out
}
