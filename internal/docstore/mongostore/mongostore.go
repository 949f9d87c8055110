// Package mongostore implements docstore.Store on MongoDB.
//
// Path mapping: a top-level path uses its name as the Mongo collection. A
// subcollection path ("users", uid, "cart") maps to the leaf collection
// ("cart") with every document carrying a "_parent" scoping field
// ("users/<uid>"); reads and queries inject the matching filter. Batch
// commits run inside a session transaction and subscriptions use change
// streams, so the server must be a replica set.
package mongostore

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/khanaeats/khana-api/internal/docstore"
)

const (
	fieldID        = "_id"
	fieldParent    = "_parent"
	fieldCreatedAt = "created_at"
	fieldUpdatedAt = "updated_at"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Store is a MongoDB-backed docstore.Store.
type Store struct {
	client   *mongo.Client
	database *mongo.Database
}

var _ docstore.Store = (*Store)(nil)

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(100).
		SetMinPoolSize(10)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "connect to mongodb")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, errors.Wrap(err, "ping mongodb")
	}

	return &Store{
		client:   client,
		database: client.Database(cfg.Database),
	}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping reports connectivity to the primary.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) collection(path docstore.Path) *mongo.Collection {
	return s.database.Collection(path.Leaf())
}

// scope returns the filter that pins an operation to path's documents.
func scope(path docstore.Path, id string) bson.M {
	filter := bson.M{fieldID: id}
	if parent := path.Parent(); parent != "" {
		filter[fieldParent] = parent
	}
	return filter
}

func (s *Store) Get(ctx context.Context, path docstore.Path, id string) (docstore.Document, error) {
	var raw bson.M
	err := s.collection(path).FindOne(ctx, scope(path, id)).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return docstore.Document{}, docstore.ErrNotFound
		}
		return docstore.Document{}, errors.Wrap(err, "find document")
	}
	return decodeDocument(raw), nil
}

func (s *Store) Query(ctx context.Context, path docstore.Path, q docstore.Query) ([]docstore.Document, error) {
	filter := queryFilter(path, q)

	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.collection(path).Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "query collection")
	}
	defer cur.Close(ctx)

	var out []docstore.Document
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, errors.Wrap(err, "decode document")
		}
		out = append(out, decodeDocument(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate cursor")
	}
	return out, nil
}

func (s *Store) Add(ctx context.Context, path docstore.Path, fields map[string]any) (string, error) {
	id := primitive.NewObjectID().Hex()
	if err := s.Set(ctx, path, id, fields); err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) Set(ctx context.Context, path docstore.Path, id string, fields map[string]any) error {
	_, err := s.collection(path).UpdateOne(ctx, scope(path, id), setUpdate(path, fields), options.Update().SetUpsert(true))
	if err != nil {
		return errors.Wrap(err, "set document")
	}
	return nil
}

func (s *Store) Update(ctx context.Context, path docstore.Path, id string, fields map[string]any) error {
	res, err := s.collection(path).UpdateOne(ctx, scope(path, id), mergeUpdate(fields))
	if err != nil {
		return errors.Wrap(err, "update document")
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, path docstore.Path, id string) error {
	if _, err := s.collection(path).DeleteOne(ctx, scope(path, id)); err != nil {
		return errors.Wrap(err, "delete document")
	}
	return nil
}

// queryFilter builds the Mongo filter for q, including the parent scope.
func queryFilter(path docstore.Path, q docstore.Query) bson.M {
	filter := bson.M{}
	if parent := path.Parent(); parent != "" {
		filter[fieldParent] = parent
	}
	for _, f := range q.Filters {
		switch f.Op {
		case docstore.OpEqual:
			filter[f.Field] = f.Value
		case docstore.OpGreaterOrEqual, docstore.OpLessOrEqual:
			cond, _ := filter[f.Field].(bson.M)
			if cond == nil {
				cond = bson.M{}
			}
			if f.Op == docstore.OpGreaterOrEqual {
				cond["$gte"] = f.Value
			} else {
				cond["$lte"] = f.Value
			}
			filter[f.Field] = cond
		}
	}
	return filter
}

// setUpdate builds the upsert pipeline for Set: replace fields, keep
// created_at from the first write, resolve sentinels.
func setUpdate(path docstore.Path, fields map[string]any) bson.M {
	set := bson.M{fieldUpdatedAt: time.Now().UTC()}
	inc := bson.M{}
	onInsert := bson.M{fieldCreatedAt: time.Now().UTC()}
	for k, v := range fields {
		switch sv := v.(type) {
		case docstore.Increment:
			inc[k] = sv.Delta
		case docstore.SetOnInsert:
			onInsert[k] = resolveSentinel(sv.Value)
		default:
			set[k] = resolveSentinel(v)
		}
	}
	if parent := path.Parent(); parent != "" {
		set[fieldParent] = parent
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": onInsert,
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

// mergeUpdate builds the partial update for Update.
func mergeUpdate(fields map[string]any) bson.M {
	set := bson.M{fieldUpdatedAt: time.Now().UTC()}
	inc := bson.M{}
	for k, v := range fields {
		switch sv := v.(type) {
		case docstore.Increment:
			inc[k] = sv.Delta
		case docstore.SetOnInsert:
			// Update never inserts; the stored value stands.
		default:
			set[k] = resolveSentinel(v)
		}
	}
	update := bson.M{"$set": set}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update
}

func resolveSentinel(v any) any {
	if v == docstore.ServerTimestamp {
		return time.Now().UTC()
	}
	return v
}

// decodeDocument converts a raw Mongo document into a docstore.Document,
// stripping the reserved fields.
func decodeDocument(raw bson.M) docstore.Document {
	doc := docstore.Document{Fields: make(map[string]any, len(raw))}
	for k, v := range raw {
		switch k {
		case fieldID:
			if s, ok := v.(string); ok {
				doc.ID = s
			}
		case fieldParent:
		case fieldCreatedAt:
			doc.CreatedAt = toTime(v)
		case fieldUpdatedAt:
			doc.UpdatedAt = toTime(v)
		default:
			doc.Fields[k] = normalize(v)
		}
	}
	return doc
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case time.Time:
		return t
	}
	return time.Time{}
}

// normalize maps BSON decode types back to the ones callers stored.
func normalize(v any) any {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time()
	case primitive.A:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case bson.M:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case bson.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalize(e.Value)
		}
		return out
	case int32:
		return int64(t)
	default:
		return v
	}
}
