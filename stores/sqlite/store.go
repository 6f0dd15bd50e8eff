package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"spice-taste/core"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

type collection struct {
	db   *sql.DB
	name string
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type row struct {
	seq int64
	doc core.Document
}

// NewStore creates a new SQLite-based store. Every collection shares one table
// of JSON documents; seq keeps insertion order.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	tableStmt := `
	CREATE TABLE IF NOT EXISTS documents (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		data TEXT NOT NULL,
		UNIQUE (collection, id)
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return &sqliteStore{db}, nil
}

func (s *sqliteStore) Collection(name string) core.Collection {
	return &collection{db: s.db, name: name}
}

func (s *sqliteStore) ParseID(raw string) (any, error) {
	return core.ParseULID(raw)
}

func (s *sqliteStore) Close(ctx context.Context) error {
	return s.db.Close()
}

// idKey is the indexed form of a document id.
func idKey(id any) (string, error) {
	b, err := json.Marshal(id)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrInvalidID, err)
	}
	return string(b), nil
}

// scan loads the documents of the collection that match filter, in insertion order.
// Filters on the id use the index; every other field is matched in Go.
func (c *collection) scan(ctx context.Context, q queryer, filter core.Filter) ([]row, error) {
	query := "SELECT seq, data FROM documents WHERE collection = ?"
	args := []any{c.name}
	if id, ok := filter[core.IDField]; ok && id != nil {
		key, err := idKey(id)
		if err != nil {
			return nil, err
		}
		query += " AND id = ?"
		args = append(args, key)
	}
	query += " ORDER BY seq"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matched []row
	for rows.Next() {
		var (
			r    row
			data string
		)
		if err := rows.Scan(&r.seq, &data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(data), &r.doc); err != nil {
			logrus.WithError(err).WithField("collection", c.name).Warnf("Failed to unmarshal document %d, skipping", r.seq)
			continue
		}
		if core.Matches(r.doc, filter) {
			matched = append(matched, r)
		}
	}
	return matched, rows.Err()
}

func (c *collection) Find(ctx context.Context, filter core.Filter, opts *core.FindOptions) ([]core.Document, error) {
	rows, err := c.scan(ctx, c.db, filter)
	if err != nil {
		logrus.WithError(err).WithField("collection", c.name).Error("Failed to query documents")
		return nil, err
	}
	docs := make([]core.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.doc)
	}
	return core.Window(docs, opts), nil
}

func (c *collection) FindOne(ctx context.Context, filter core.Filter) (core.Document, error) {
	rows, err := c.scan(ctx, c.db, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, core.ErrNotFound
	}
	return rows[0].doc, nil
}

func (c *collection) InsertOne(ctx context.Context, doc core.Document) (*core.InsertResult, error) {
	stored := core.PrepareInsert(doc)
	id := stored[core.IDField]
	log := logrus.WithFields(logrus.Fields{"collection": c.name, "document_id": id})

	if err := insert(ctx, c.db, c.name, stored); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return &core.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insert(ctx context.Context, e execer, name string, doc core.Document) error {
	key, err := idKey(doc[core.IDField])
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = e.ExecContext(ctx, "INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)", name, key, string(data))
	if err != nil && strings.Contains(err.Error(), "UNIQUE") {
		return fmt.Errorf("duplicate key: %v", doc[core.IDField])
	}
	return err
}

func (c *collection) UpdateOne(ctx context.Context, filter core.Filter, set core.Document, opts *core.UpdateOptions) (*core.UpdateResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := c.scan(ctx, tx, filter)
	if err != nil {
		return nil, err
	}

	result := &core.UpdateResult{Acknowledged: true}
	switch {
	case len(rows) > 0:
		target := rows[0]
		modified, err := core.ApplySet(target.doc, set)
		if err != nil {
			return nil, err
		}
		result.MatchedCount = 1
		if modified {
			data, err := json.Marshal(target.doc)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal document: %w", err)
			}
			if _, err := tx.ExecContext(ctx, "UPDATE documents SET data = ? WHERE seq = ?", string(data), target.seq); err != nil {
				return nil, err
			}
			result.ModifiedCount = 1
		}
	case opts != nil && opts.Upsert:
		doc := core.UpsertDocument(filter, set)
		if err := insert(ctx, tx, c.name, doc); err != nil {
			return nil, err
		}
		result.UpsertedCount = 1
		result.UpsertedID = doc[core.IDField]
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter core.Filter) (*core.DeleteResult, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := c.scan(ctx, tx, filter)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &core.DeleteResult{Acknowledged: true}, nil
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE seq = ?", rows[0].seq)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &core.DeleteResult{Acknowledged: true, DeletedCount: n}, nil
}

func (c *collection) EstimatedCount(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents WHERE collection = ?", c.name).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}
	return n, nil
}
