// Package memstore implements docstore.Store entirely in memory. It backs
// the local cart variant and every unit test that needs a store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/khanaeats/khana-api/internal/docstore"
)

// Store is an in-memory docstore.Store. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string]docstore.Document // path -> id -> doc
	subs map[*subscription]struct{}

	// now is swappable in tests for deterministic timestamps.
	now func() time.Time
}

var _ docstore.Store = (*Store)(nil)

// New returns an empty Store.
func New() *Store {
	return &Store{
		data: make(map[string]map[string]docstore.Document),
		subs: make(map[*subscription]struct{}),
		now:  time.Now,
	}
}

func (s *Store) Get(_ context.Context, path docstore.Path, id string) (docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.data[path.String()][id]
	if !ok {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return cloneDoc(doc), nil
}

func (s *Store) Query(_ context.Context, path docstore.Path, q docstore.Query) ([]docstore.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.queryLocked(path, q), nil
}

func (s *Store) Add(_ context.Context, path docstore.Path, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	s.applySet(path, id, fields)
	s.notifyLocked(path)
	return id, nil
}

func (s *Store) Set(_ context.Context, path docstore.Path, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.applySet(path, id, fields)
	s.notifyLocked(path)
	return nil
}

func (s *Store) Update(_ context.Context, path docstore.Path, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyUpdate(path, id, fields); err != nil {
		return err
	}
	s.notifyLocked(path)
	return nil
}

func (s *Store) Delete(_ context.Context, path docstore.Path, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.data[path.String()]
	if !ok {
		return nil
	}
	if _, ok := coll[id]; !ok {
		return nil
	}
	delete(coll, id)
	s.notifyLocked(path)
	return nil
}

// applySet creates or replaces a document, resolving field sentinels.
// Caller holds s.mu.
func (s *Store) applySet(path docstore.Path, id string, fields map[string]any) {
	key := path.String()
	coll := s.data[key]
	if coll == nil {
		coll = make(map[string]docstore.Document)
		s.data[key] = coll
	}

	now := s.now()
	prev, existed := coll[id]

	doc := docstore.Document{
		ID:        id,
		Fields:    make(map[string]any, len(fields)),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existed {
		doc.CreatedAt = prev.CreatedAt
	}
	for k, v := range fields {
		doc.Fields[k] = s.resolveValue(prev, k, v)
	}
	coll[id] = doc
}

// applyUpdate merges fields into an existing document. Caller holds s.mu.
func (s *Store) applyUpdate(path docstore.Path, id string, fields map[string]any) error {
	coll := s.data[path.String()]
	prev, ok := coll[id]
	if !ok {
		return docstore.ErrNotFound
	}

	doc := cloneDoc(prev)
	doc.UpdatedAt = s.now()
	for k, v := range fields {
		doc.Fields[k] = s.resolveValue(prev, k, v)
	}
	coll[id] = doc
	return nil
}

func (s *Store) resolveValue(prev docstore.Document, key string, v any) any {
	switch sv := v.(type) {
	case docstore.Increment:
		var base int64
		if prev.Fields != nil {
			base = prev.Int(key)
		}
		return base + sv.Delta
	case docstore.SetOnInsert:
		if existing, ok := prev.Fields[key]; ok {
			return existing
		}
		return s.resolveValue(prev, key, sv.Value)
	default:
		if v == docstore.ServerTimestamp {
			return s.now()
		}
		return v
	}
}

// queryLocked evaluates q against a collection. Caller holds s.mu.
func (s *Store) queryLocked(path docstore.Path, q docstore.Query) []docstore.Document {
	var out []docstore.Document
	for _, doc := range s.data[path.String()] {
		if matches(doc, q.Filters) {
			out = append(out, cloneDoc(doc))
		}
	}

	orderBy := q.OrderBy
	sort.SliceStable(out, func(i, j int) bool {
		less := lessDocs(out[i], out[j], orderBy)
		if q.Descending {
			return !less && !equalOrder(out[i], out[j], orderBy)
		}
		return less
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(doc docstore.Document, filters []docstore.Filter) bool {
	for _, f := range filters {
		if !matchFilter(doc, f) {
			return false
		}
	}
	return true
}

func matchFilter(doc docstore.Document, f docstore.Filter) bool {
	got, ok := doc.Fields[f.Field]
	if !ok {
		return false
	}

	// Array membership: equality against a string-slice field matches
	// contained elements, mirroring Mongo.
	if f.Op == docstore.OpEqual {
		if want, isStr := f.Value.(string); isStr {
			if members := doc.Strings(f.Field); members != nil {
				for _, m := range members {
					if m == want {
						return true
					}
				}
				// A []string field only matches by membership.
				if _, plain := got.(string); !plain {
					return false
				}
			}
		}
	}

	cmp, comparable := compareValues(got, f.Value)
	if !comparable {
		return false
	}
	switch f.Op {
	case docstore.OpEqual:
		return cmp == 0
	case docstore.OpGreaterOrEqual:
		return cmp >= 0
	case docstore.OpLessOrEqual:
		return cmp <= 0
	}
	return false
}

// compareValues orders two field values of like kind. The second result is
// false when the values cannot be ordered.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		}
		return 0, true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		if av == bv {
			return 0, true
		}
		if !av {
			return -1, true
		}
		return 1, true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		}
		return 0, true
	}

	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if !aok || !bok {
		return 0, false
	}
	switch {
	case af < bf:
		return -1, true
	case af > bf:
		return 1, true
	}
	return 0, true
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func orderValue(d docstore.Document, field string) any {
	if field == "" || field == "created_at" {
		if v, ok := d.Fields["created_at"]; ok {
			return v
		}
		return d.CreatedAt
	}
	return d.Fields[field]
}

func lessDocs(a, b docstore.Document, field string) bool {
	cmp, ok := compareValues(orderValue(a, field), orderValue(b, field))
	return ok && cmp < 0
}

func equalOrder(a, b docstore.Document, field string) bool {
	cmp, ok := compareValues(orderValue(a, field), orderValue(b, field))
	return ok && cmp == 0
}

func cloneDoc(d docstore.Document) docstore.Document {
	out := d
	out.Fields = make(map[string]any, len(d.Fields))
	for k, v := range d.Fields {
		if ss, ok := v.([]string); ok {
			cp := make([]string, len(ss))
			copy(cp, ss)
			out.Fields[k] = cp
			continue
		}
		out.Fields[k] = v
	}
	return out
}
