package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"

	"spice-taste/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

const objectExt = ".json"

// s3Store keeps one JSON object per document under <collection>/<id>.json.
// Object listings are lexicographic, so ULID keys come back in insertion order.
type s3Store struct {
	s3Client s3API
	bucket   string
	mu       sync.Mutex
}

// s3API is the part of *s3.Client the store calls.
type s3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type collection struct {
	store *s3Store
	name  string
}

// NewStore creates a new S3-based store using the default AWS credential chain.
func NewStore(ctx context.Context, bucketName string) (*s3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}, nil
}

func (s *s3Store) Collection(name string) core.Collection {
	return &collection{store: s, name: name}
}

func (s *s3Store) ParseID(raw string) (any, error) {
	return core.ParseULID(raw)
}

func (s *s3Store) Close(ctx context.Context) error {
	return nil
}

func (c *collection) objectKey(id any) (string, error) {
	name, ok := id.(string)
	if !ok {
		return "", fmt.Errorf("%w: s3 ids must be strings, got %T", core.ErrInvalidID, id)
	}
	if path.Base(name) != name || name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q must not be a path", core.ErrInvalidID, name)
	}
	return path.Join(c.name, name+objectExt), nil
}

func (c *collection) listKeys(ctx context.Context) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.store.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(c.store.bucket),
		Prefix: aws.String(c.name + "/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list collection %s: %w", c.name, err)
		}
		for _, object := range page.Contents {
			if key := aws.ToString(object.Key); strings.HasSuffix(key, objectExt) {
				keys = append(keys, key)
			}
		}
	}
	return keys, nil
}

func (c *collection) get(ctx context.Context, key string) (core.Document, error) {
	resp, err := c.store.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read document data: %w", err)
	}
	var doc core.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document %s: %w", key, err)
	}
	return doc, nil
}

func (c *collection) put(ctx context.Context, doc core.Document) error {
	key, err := c.objectKey(doc[core.IDField])
	if err != nil {
		return err
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = c.store.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.store.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to upload document: %w", err)
	}
	return nil
}

// matching returns the documents matching filter in key order. A filter on the
// id reads a single object instead of listing the collection.
func (c *collection) matching(ctx context.Context, filter core.Filter, limit int) ([]core.Document, error) {
	if id, ok := filter[core.IDField]; ok && id != nil {
		key, err := c.objectKey(id)
		if err != nil {
			return []core.Document{}, nil
		}
		doc, err := c.get(ctx, key)
		if errors.Is(err, core.ErrNotFound) {
			return []core.Document{}, nil
		}
		if err != nil {
			return nil, err
		}
		if !core.Matches(doc, filter) {
			return []core.Document{}, nil
		}
		return []core.Document{doc}, nil
	}

	keys, err := c.listKeys(ctx)
	if err != nil {
		return nil, err
	}
	docs := make([]core.Document, 0, len(keys))
	for _, key := range keys {
		doc, err := c.get(ctx, key)
		if err != nil {
			logrus.WithError(err).WithField("key", key).Warn("Skipping unreadable document")
			continue
		}
		if core.Matches(doc, filter) {
			docs = append(docs, doc)
			if limit > 0 && len(docs) == limit {
				break
			}
		}
	}
	return docs, nil
}

func (c *collection) Find(ctx context.Context, filter core.Filter, opts *core.FindOptions) ([]core.Document, error) {
	docs, err := c.matching(ctx, filter, 0)
	if err != nil {
		return nil, err
	}
	return core.Window(docs, opts), nil
}

func (c *collection) FindOne(ctx context.Context, filter core.Filter) (core.Document, error) {
	docs, err := c.matching(ctx, filter, 1)
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

	key, err := c.objectKey(id)
	if err != nil {
		return nil, err
	}
	_, err = c.get(ctx, key)
	switch {
	case err == nil:
		return nil, fmt.Errorf("duplicate key: %v", id)
	case !errors.Is(err, core.ErrNotFound):
		return nil, err
	}

	if err := c.put(ctx, stored); err != nil {
		log.WithError(err).Error("Failed to create document")
		return nil, err
	}
	log.Info("Document created successfully")
	return &core.InsertResult{Acknowledged: true, InsertedID: id}, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter core.Filter, set core.Document, opts *core.UpdateOptions) (*core.UpdateResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.matching(ctx, filter, 1)
	if err != nil {
		return nil, err
	}

	if len(docs) > 0 {
		doc := docs[0]
		modified, err := core.ApplySet(doc, set)
		if err != nil {
			return nil, err
		}
		result := &core.UpdateResult{Acknowledged: true, MatchedCount: 1}
		if modified {
			if err := c.put(ctx, doc); err != nil {
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
	if err := c.put(ctx, doc); err != nil {
		return nil, err
	}
	return &core.UpdateResult{Acknowledged: true, UpsertedCount: 1, UpsertedID: doc[core.IDField]}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter core.Filter) (*core.DeleteResult, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	docs, err := c.matching(ctx, filter, 1)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return &core.DeleteResult{Acknowledged: true}, nil
	}

	key, err := c.objectKey(docs[0][core.IDField])
	if err != nil {
		return nil, err
	}
	_, err = c.store.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.store.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return &core.DeleteResult{Acknowledged: true, DeletedCount: 1}, nil
}

func (c *collection) EstimatedCount(ctx context.Context) (int64, error) {
	keys, err := c.listKeys(ctx)
	if err != nil {
		return 0, err
	}
	return int64(len(keys)), nil
}
