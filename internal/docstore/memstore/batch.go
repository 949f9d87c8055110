package memstore

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/khanaeats/khana-api/internal/docstore"
)

type batchOpKind int

const (
	opSet batchOpKind = iota
	opUpdate
	opDelete
)

type batchOp struct {
	kind   batchOpKind
	path   docstore.Path
	id     string
	fields map[string]any
}

// batch stages writes and applies them under a single lock acquisition, so
// readers never observe a partially committed batch.
type batch struct {
	store *Store
	ops   []batchOp
}

var _ docstore.Batch = (*batch)(nil)

func (s *Store) Batch() docstore.Batch {
	return &batch{store: s}
}

func (b *batch) Set(path docstore.Path, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opSet, path: path, id: id, fields: fields})
}

func (b *batch) Update(path docstore.Path, id string, fields map[string]any) {
	b.ops = append(b.ops, batchOp{kind: opUpdate, path: path, id: id, fields: fields})
}

func (b *batch) Delete(path docstore.Path, id string) {
	b.ops = append(b.ops, batchOp{kind: opDelete, path: path, id: id})
}

func (b *batch) Commit(_ context.Context) error {
	s := b.store
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate before mutating anything: an update against a missing
	// document fails the whole batch.
	for _, op := range b.ops {
		if op.kind != opUpdate {
			continue
		}
		if _, ok := s.data[op.path.String()][op.id]; !ok {
			return errors.Wrapf(docstore.ErrBatchFailed, "update %s/%s: %v", op.path, op.id, docstore.ErrNotFound)
		}
	}

	touched := make(map[string]docstore.Path)
	for _, op := range b.ops {
		switch op.kind {
		case opSet:
			s.applySet(op.path, op.id, op.fields)
		case opUpdate:
			if err := s.applyUpdate(op.path, op.id, op.fields); err != nil {
				return errors.Wrapf(docstore.ErrBatchFailed, "update %s/%s: %v", op.path, op.id, err)
			}
		case opDelete:
			delete(s.data[op.path.String()], op.id)
		}
		touched[op.path.String()] = op.path
	}

	for _, path := range touched {
		s.notifyLocked(path)
	}
	b.ops = nil
	return nil
}
