package mongostore

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/khanaeats/khana-api/internal/docstore"
)

type batchOp struct {
	kind   string // "set", "update", "delete"
	path   docstore.Path
	id     string
	fields map[string]any
}

// batch stages operations and commits them inside a single session
// transaction, so a mid-commit failure leaves no partial state.
type batch struct {
	store *Store
	ops   []batchOp
}

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (b *batch) Set(path docstore.Path, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: "set", path: path, id: id, fields: fields})
}

func (b *batch) Update(path docstore.Path, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: "update", path: path, id: id, fields: fields})
}

func (b *batch) Delete(path docstore.Path, id string) {
	b.ops = append(b.ops, batchOp{kind: "delete", path: path, id: id})
}

func (b *batch) Commit(ctx context.Context) error {
	if len(b.ops) == 0 {
		return nil
	}

	session, err := b.store.client.StartSession()
	if err != nil {
		return errors.Wrap(docstore.ErrBatchFailed, err.Error())
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range b.ops {
			if err := b.store.applyOp(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return errors.Wrap(docstore.ErrBatchFailed, err.Error())
	}
	return nil
}

func (s *Store) applyOp(ctx context.Context, op batchOp) error {
	switch op.kind {
	case "set":
		return s.Set(ctx, op.path, op.id, op.fields)
	case "update":
		return s.Update(ctx, op.path, op.id, op.fields)
	case "delete":
		return s.Delete(ctx, op.path, op.id)
	}
	return errors.Errorf("unknown batch op %q", op.kind)
}
