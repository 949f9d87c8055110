package memstore

import (
	"context"
	"sync"

	"github.com/khanaeats/khana-api/internal/docstore"
)

// subscription delivers coalesced result-set snapshots for one live query.
//
// The snapshot channel has capacity one; notify drops the stale pending
// snapshot before sending the fresh one, so a slow consumer always receives
// the latest state.
type subscription struct {
	store *Store
	path  docstore.Path
	query docstore.Query
	ch    chan []docstore.Document

	once   sync.Once
	closed chan struct{}
}

func (s *Store) Subscribe(ctx context.Context, path docstore.Path, q docstore.Query) (docstore.Subscription, error) {
	sub := &subscription{
		store:  s,
		path:   path,
		query:  q,
		ch:     make(chan []docstore.Document, 1),
		closed: make(chan struct{}),
	}

	// The initial snapshot is seeded while the lock is still held: no
	// write can notify before it lands, so the buffered send cannot block
	// and a fresher snapshot is never followed by a stale one.
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	sub.ch <- s.queryLocked(path, q)
	s.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				sub.Cancel()
			case <-sub.closed:
			}
		}()
	}

	return sub, nil
}

func (sub *subscription) Snapshots() <-chan []docstore.Document { return sub.ch }

func (sub *subscription) Cancel() {
	sub.once.Do(func() {
		sub.store.mu.Lock()
		delete(sub.store.subs, sub)
		sub.store.mu.Unlock()
		close(sub.closed)
		close(sub.ch)
	})
}

// push coalesces: an undelivered pending snapshot is replaced.
func (sub *subscription) push(snapshot []docstore.Document) {
	select {
	case <-sub.closed:
		return
	default:
	}
	select {
	case <-sub.ch:
	default:
	}
	select {
	case sub.ch <- snapshot:
	case <-sub.closed:
	}
}

// notifyLocked re-evaluates every subscription watching path. Caller holds
// s.mu; snapshots are pushed after computing them all so push never blocks
// under the lock (capacity-one channel with drop).
func (s *Store) notifyLocked(path docstore.Path) {
	key := path.String()
	for sub := range s.subs {
		if sub.path.String() != key {
			continue
		}
		sub.push(s.queryLocked(sub.path, sub.query))
	}
}
