// Package mongo stores documents in MongoDB, the managed document database the
// service runs against in production.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"spice-taste/core"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const DefaultDatabase = "spice-taste"

type mongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

type collection struct {
	coll *mongo.Collection
}

// BuildURI assembles an Atlas SRV connection string from credentials and a cluster host.
func BuildURI(user, pass, cluster string) string {
	u := url.URL{
		Scheme:   "mongodb+srv",
		User:     url.UserPassword(user, pass),
		Host:     cluster,
		Path:     "/",
		RawQuery: "retryWrites=true&w=majority",
	}
	return u.String()
}

// NewStore connects to uri with the Stable API v1 and pings the primary.
func NewStore(ctx context.Context, uri, database string) (*mongoStore, error) {
	if database == "" {
		database = DefaultDatabase
	}

	opts := options.Client().
		ApplyURI(uri).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1)).
		SetBSONOptions(&options.BSONOptions{DefaultDocumentM: true})

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	logrus.WithField("database", database).Info("Connected to MongoDB")
	return &mongoStore{client: client, db: client.Database(database)}, nil
}

func (s *mongoStore) Collection(name string) core.Collection {
	return &collection{coll: s.db.Collection(name)}
}

func (s *mongoStore) ParseID(raw string) (any, error) {
	return ParseObjectID(raw)
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// ParseObjectID parses a 24 character hex ObjectID.
func ParseObjectID(raw string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(raw)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", core.ErrInvalidID, raw)
	}
	return id, nil
}

func toBSON(m map[string]any) bson.M {
	if m == nil {
		return bson.M{}
	}
	return bson.M(m)
}

func (c *collection) Find(ctx context.Context, filter core.Filter, opts *core.FindOptions) ([]core.Document, error) {
	findOpts := options.Find()
	if opts != nil {
		if opts.Skip > 0 {
			findOpts.SetSkip(opts.Skip)
		}
		if opts.Limit > 0 {
			findOpts.SetLimit(opts.Limit)
		}
	}

	cursor, err := c.coll.Find(ctx, toBSON(filter), findOpts)
	if err != nil {
		return nil, err
	}
	var results []bson.M
	if err := cursor.All(ctx, &results); err != nil {
		return nil, err
	}

	docs := make([]core.Document, 0, len(results))
	for _, m := range results {
		docs = append(docs, core.Document(m))
	}
	return docs, nil
}

func (c *collection) FindOne(ctx context.Context, filter core.Filter) (core.Document, error) {
	var m bson.M
	err := c.coll.FindOne(ctx, toBSON(filter)).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return core.Document(m), nil
}

func (c *collection) InsertOne(ctx context.Context, doc core.Document) (*core.InsertResult, error) {
	res, err := c.coll.InsertOne(ctx, toBSON(doc))
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"collection": c.coll.Name(), "document_id": res.InsertedID}).Info("Document created successfully")
	return &core.InsertResult{Acknowledged: true, InsertedID: res.InsertedID}, nil
}

func (c *collection) UpdateOne(ctx context.Context, filter core.Filter, set core.Document, opts *core.UpdateOptions) (*core.UpdateResult, error) {
	updateOpts := options.Update()
	if opts != nil {
		updateOpts.SetUpsert(opts.Upsert)
	}

	res, err := c.coll.UpdateOne(ctx, toBSON(filter), bson.M{"$set": toBSON(set)}, updateOpts)
	if err != nil {
		return nil, err
	}
	return &core.UpdateResult{
		Acknowledged:  true,
		MatchedCount:  res.MatchedCount,
		ModifiedCount: res.ModifiedCount,
		UpsertedCount: res.UpsertedCount,
		UpsertedID:    res.UpsertedID,
	}, nil
}

func (c *collection) DeleteOne(ctx context.Context, filter core.Filter) (*core.DeleteResult, error) {
	res, err := c.coll.DeleteOne(ctx, toBSON(filter))
	if err != nil {
		return nil, err
	}
	return &core.DeleteResult{Acknowledged: true, DeletedCount: res.DeletedCount}, nil
}

func (c *collection) EstimatedCount(ctx context.Context) (int64, error) {
	return c.coll.EstimatedDocumentCount(ctx)
}
