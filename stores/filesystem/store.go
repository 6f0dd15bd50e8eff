package filesystem

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"spice-taste/core"

	"github.com/sirupsen/logrus"
)

const fileExt = ".json"

// fsStore keeps one JSON file per document under basePath/<collection>/<id>.json.
type fsStore struct {
	basePath string
	mu       sync.RWMutex
}

type collection struct {
	store *fsStore
	name  string
	dir   string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) (*fsStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &fsStore{basePath: basePath}, nil
}

func (s *fsStore) Collection(name string) core.Collection {
	return &collection{store: s, name: name, dir: filepath.Join(s.basePath, name)}
}

func (s *fsStore) ParseID(raw string) (any, error) {
	return core.ParseULID(raw)
}

func (s *fsStore) Close(ctx context.Context) error {
	return nil
}

// documentPath maps an id to a file inside the collection directory.
// Ids that would escape the directory are rejected.
func (c *collection) documentPath(id any) (string, error) {
	name, ok := id.(string)
	if !ok {
		return "", fmt.Errorf("%w: filesystem ids must be strings, got %T", core.ErrInvalidID, id)
	}
	if name == "" || name == "." || name == ".." || filepath.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: %q must not be a path", core.ErrInvalidID, name)
	}
	return filepath.Join(c.dir, name+fileExt), nil
}

// readAll returns the documents of the collection ordered by file name.
func (c *collection) readAll() ([]core.Document, error) {
	log := logrus.WithField("collection", c.name).WithField("path", c.dir)

	files, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []core.Document{}, nil
		}
		log.WithError(err).Error("Failed to read collection directory")
		return nil, err
	}

	docs := make([]core.Document, 0, len(files))
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), fileExt) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, file.Name()))
		if err != nil {
			log.WithError(err).Warnf("Failed to read document file %s, skipping", file.Name())
			continue
		}
		var doc core.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			log.WithError(err).Warnf("Failed to unmarshal document file %s, skipping", file.Name())
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *collection) write(doc core.Document) error {
	path, err := c.documentPath(doc[core.IDField])
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("failed to create collection directory: %w", err)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (c *collection) Find(ctx context.Context, filter core.Filter, opts *core.FindOptions) ([]core.Document, error) {
	c.store.mu.RLock()
	defer c.store.mu.RUnlock()

	docs, err := c.readAll()
	if err != nil {
		return nil, err
	}
	matched := make([]core.Document, 0, len(docs))
	for _, doc := range docs {
		if core.Matches(doc, filter) {
			matched = append(matched, doc)
		}
	}
	return core.Window(matched, opts), nil
}

func (c *collection) FindOne(ctx context.Context, filter core.Filter) (core.Document, error) {
	docs, err := c.Find(ctx, filter, &core.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, core.ErrNotFound
	}
	return docs[0], nil
}

func (c *collection) InsertOne(ctx context.Context, doc core.Document) (*core.InsertResult, error) {
	stored := core.PrepareInsert(doc)
	id := stored[core.IDField]
	log := logrus.WithFields(logrus.Fields{"collection": c.name, "document_id": id})

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	path, err := c.documentPath(id)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("duplicate key: %v", id)
	}
	if err := c.write(stored); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}

	log.Info("Document created successfully")
	return &core.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter core.Filter, set core.Document, opts *core.UpdateOptions) (*core.UpdateResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.readAll()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if !core.Matches(doc, filter) {
			continue
		}
		modified, err := core.ApplySet(doc, set)
		if err != nil {
			return nil, err
		}
		result := &core.UpdateResult{Acknowledged: true, MatchedCount: 1}
		if modified {
			if err := c.write(doc); err != nil {
				return nil, err
			}
			result.ModifiedCount = 1
		}
		return result, nil
	}

	if opts == nil || !opts.Upsert {
		return &core.UpdateResult{Acknowledged: true}, nil
	}

	doc := core.UpsertDocument(filter, set)
	if err := c.write(doc); err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"collection": c.name, "document_id": doc[core.IDField]}).Info("Document upserted successfully")
	return &core.UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: doc[core.IDField]}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter core.Filter) (*core.DeleteResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.readAll()
	if err != nil {
		return nil, err
	}
	for _, doc := range docs {
		if !core.Matches(doc, filter) {
			continue
		}
		path, err := c.documentPath(doc[core.IDField])
		if err != nil {
			return nil, err
		}
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				break
			}
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"collection": c.name, "path": path}).Info("Document deleted successfully")
		return &core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
	}
	return &core.DeleteResult{Acknowledged: true}, nil
}

func (c *collection) EstimatedCount(ctx context.Context) (int64, error) {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var n int64
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fileExt) {
			n++
		}
	}
	return n, nil
}
