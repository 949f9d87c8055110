package mongostore

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/khanaeats/khana-api/internal/docstore"
)

// subscription watches a collection's change stream and re-runs the query
// after every event, emitting full result-set snapshots. Emissions are
// coalesced through a capacity-one channel.
type subscription struct {
	ch     chan []docstore.Document
	cancel context.CancelFunc
	once   sync.Once
}

func (s *Store) Subscribe(ctx context.Context, path docstore.Path, q docstore.Query) (docstore.Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	pipeline := []bson.M{}
	if parent := path.Parent(); parent != "" {
		pipeline = append(pipeline, bson.M{"$match": bson.M{
			"$or": []bson.M{
				{"fullDocument." + fieldParent: parent},
				{"operationType": "delete"},
			},
		}})
	}

	stream, err := s.collection(path).Watch(streamCtx, pipeline,
		options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, errors.Wrap(err, "open change stream")
	}

	initial, err := s.Query(streamCtx, path, q)
	if err != nil {
		stream.Close(streamCtx)
		cancel()
		return nil, err
	}

	sub := &subscription{
		ch:     make(chan []docstore.Document, 1),
		cancel: cancel,
	}
	sub.ch <- initial

	go func() {
		defer close(sub.ch)
		defer stream.Close(context.Background())

		for stream.Next(streamCtx) {
			snapshot, err := s.Query(streamCtx, path, q)
			if err != nil {
				if streamCtx.Err() == nil {
					zctx.From(streamCtx).Error("live query refresh failed",
						zap.String("collection", path.String()), zap.Error(err))
				}
				return
			}
			// Coalesce: drop an undelivered snapshot before sending.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- snapshot:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return sub, nil
}

func (sub *subscription) Snapshots() <-chan []docstore.Document { return sub.ch }

func (sub *subscription) Cancel() {
	sub.once.Do(sub.cancel)
}
