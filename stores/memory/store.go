package memory

import (
	"context"
	"fmt"
	"sync"

	"spice-taste/core"

	"github.com/sirupsen/logrus"
)

// memStore keeps every collection as an insertion-ordered slice.
type memStore struct {
	mu          sync.RWMutex
	collections map[string][]core.Document
}

type collection struct {
	store *memStore
	name  string
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		collections: make(map[string][]core.Document),
	}
}

func (s *memStore) Collection(name string) core.Collection {
	return &collection{store: s, name: name}
}

func (s *memStore) ParseID(raw string) (any, error) {
	return core.ParseULID(raw)
}

func (s *memStore) Close(ctx context.Context) error {
	return nil
}

func (c *collection) Find(ctx context.Context, filter core.Filter, opts *core.FindOptions) ([]core.Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	matched := make([]core.Document, 0)
	for _, doc := range c.store.collections[c.name] {
		if core.Matches(doc, filter) {
			matched = append(matched, doc.Clone())
		}
	}
	docs := core.Window(matched, opts)

	logrus.WithField("collection", c.name).Debugf("Found %d documents", len(docs))
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter core.Filter) (core.Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	for _, doc := range c.store.collections[c.name] {
		if core.Matches(doc, filter) {
			return doc.Clone(), nil
		}
	}
	return nil, core.ErrNotFound
}

func (c *collection) InsertOne(ctx context.Context, doc core.Document) (*core.InsertResult, error) {
	stored := core.PrepareInsert(doc)
	id := stored[core.IDField]

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	for _, existing := range c.store.collections[c.name] {
		if core.ValuesEqual(existing[core.IDField], id) {
			return nil, fmt.Errorf("duplicate key: %v", id)
		}
	}
	c.store.collections[c.name] = append(c.store.collections[c.name], stored)

	logrus.WithFields(logrus.Fields{
		"collection":  c.name,
		"document_id": id,
	}).Info("Document created successfully")
	return &core.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter core.Filter, set core.Document, opts *core.UpdateOptions) (*core.UpdateResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	log := logrus.WithField("collection", c.name)
	for _, doc := range c.store.collections[c.name] {
		if !core.Matches(doc, filter) {
			continue
		}
		modified, err := core.ApplySet(doc, set)
		if err != nil {
			return nil, err
		}
		result := &core.UpdateResult{Acknowledged: true, MatchedCount: 1}
		if modified {
			result.ModifiedCount = 1
		}
		log.WithField("document_id", doc[core.IDField]).Info("Document updated successfully")
		return result, nil
	}

	if opts == nil || !opts.Upsert {
		return &core.UpdateResult{Acknowledged: true}, nil
	}

	doc := core.UpsertDocument(filter, set)
	c.store.collections[c.name] = append(c.store.collections[c.name], doc)
	log.WithField("document_id", doc[core.IDField]).Info("Document upserted successfully")
	return &core.UpdateResult{
		Acknowledged:  true,
		UpsertedCount: 1,
		UpsertedID:    doc[core.IDField],
	}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter core.Filter) (*core.DeleteResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs := c.store.collections[c.name]
	for i, doc := range docs {
		if core.Matches(doc, filter) {
			c.store.collections[c.name] = append(docs[:i:i], docs[i+1:]...)
			logrus.WithFields(logrus.Fields{
				"collection":  c.name,
				"document_id": doc[core.IDField],
			}).Info("Document deleted successfully")
			return &core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
		}
	}
	return &core.DeleteResult{Acknowledged: true}, nil
}

func (c *collection) EstimatedCount(ctx context.Context) (int64, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	return int64(len(c.store.collections[c.name])), nil
}
