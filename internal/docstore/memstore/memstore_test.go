package memstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khanaeats/khana-api/internal/docstore"
)

var itemsPath = docstore.Collection("items")

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	err := s.Set(context.Background(), itemsPath, "a", map[string]any{
		"name":  "Chicken Biryani",
		"price": "350",
	})
	require.NoError(t, err)

	doc, err := s.Get(context.Background(), itemsPath, "a")
	require.NoError(t, err)
	assert.Equal(t, "a", doc.ID)
	assert.Equal(t, "Chicken Biryani", doc.Str("name"))
	assert.Equal(t, "350", doc.Str("price"))
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), itemsPath, "nope")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestAddGeneratesID(t *testing.T) {
	s := New()
	id, err := s.Add(context.Background(), itemsPath, map[string]any{"name": "x"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, err := s.Get(context.Background(), itemsPath, id)
	require.NoError(t, err)
	assert.Equal(t, "x", doc.Str("name"))
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{
		"name":  "x",
		"price": "10",
	}))
	require.NoError(t, s.Update(context.Background(), itemsPath, "a", map[string]any{
		"price": "20",
	}))

	doc, _ := s.Get(context.Background(), itemsPath, "a")
	assert.Equal(t, "x", doc.Str("name"), "untouched fields survive")
	assert.Equal(t, "20", doc.Str("price"))
}

func TestUpdateMissingDoc(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), itemsPath, "nope", map[string]any{"x": 1})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestIncrementSentinel(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{
		"quantity": int64(2),
	}))
	require.NoError(t, s.Update(context.Background(), itemsPath, "a", map[string]any{
		"quantity": docstore.Inc(3),
	}))

	doc, _ := s.Get(context.Background(), itemsPath, "a")
	assert.Equal(t, int64(5), doc.Int("quantity"))
}

func TestServerTimestampSentinel(t *testing.T) {
	s := New()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{
		"created_at": docstore.ServerTimestamp,
	}))

	doc, _ := s.Get(context.Background(), itemsPath, "a")
	assert.Equal(t, now, doc.Fields["created_at"])
	assert.Equal(t, now, doc.CreatedAt)
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{"x": 1}))
	require.NoError(t, s.Delete(context.Background(), itemsPath, "a"))
	require.NoError(t, s.Delete(context.Background(), itemsPath, "a"))

	_, err := s.Get(context.Background(), itemsPath, "a")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestSubcollectionsAreDisjoint(t *testing.T) {
	s := New()
	alice := docstore.Collection("users", "alice", "cart")
	bob := docstore.Collection("users", "bob", "cart")

	require.NoError(t, s.Set(context.Background(), alice, "p1", map[string]any{"q": int64(1)}))

	_, err := s.Get(context.Background(), bob, "p1")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

// --- Query ---

func seedMenu(t *testing.T, s *Store) {
	t.Helper()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []struct {
		id     string
		fields map[string]any
	}{
		{"b1", map[string]any{"name": "Beef Biryani", "category": "biryani", "price": int64(420)}},
		{"b2", map[string]any{"name": "Chicken Biryani", "category": "biryani", "price": int64(350)}},
		{"k1", map[string]any{"name": "Seekh Kebab", "category": "bbq", "price": int64(480)}},
		{"z1", map[string]any{"name": "Zinger Burger", "category": "fastfood", "price": int64(380)}},
	}
	for i, row := range rows {
		tick := base.Add(time.Duration(i) * time.Second)
		s.now = func() time.Time { return tick }
		require.NoError(t, s.Set(context.Background(), itemsPath, row.id, row.fields))
	}
}

func ids(docs []docstore.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestQueryEqualityFilter(t *testing.T) {
	s := New()
	seedMenu(t, s)

	docs, err := s.Query(context.Background(), itemsPath, docstore.Query{
		Filters: []docstore.Filter{{Field: "category", Op: docstore.OpEqual, Value: "biryani"}},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"b1", "b2"}, ids(docs))
}

func TestQueryPrefixSearch(t *testing.T) {
	s := New()
	seedMenu(t, s)

	docs, err := s.Query(context.Background(), itemsPath, docstore.Query{
		Filters: docstore.PrefixFilters("name", "S"),
		OrderBy: "name",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, ids(docs))
}

func TestQueryOrderAndLimit(t *testing.T) {
	s := New()
	seedMenu(t, s)

	docs, err := s.Query(context.Background(), itemsPath, docstore.Query{
		OrderBy:    "price",
		Descending: true,
		Limit:      2,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k1", "b1"}, ids(docs))
}

func TestQueryDefaultOrderIsCreatedAt(t *testing.T) {
	s := New()
	seedMenu(t, s)

	docs, err := s.Query(context.Background(), itemsPath, docstore.Query{OrderBy: "created_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "b2", "k1", "z1"}, ids(docs))
}

func TestQueryArrayMembership(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), docstore.Collection("orders"), "o1", map[string]any{
		"restaurant_ids": []string{"rest-a", "rest-b"},
	}))
	require.NoError(t, s.Set(context.Background(), docstore.Collection("orders"), "o2", map[string]any{
		"restaurant_ids": []string{"rest-c"},
	}))

	docs, err := s.Query(context.Background(), docstore.Collection("orders"), docstore.Query{
		Filters: []docstore.Filter{{Field: "restaurant_ids", Op: docstore.OpEqual, Value: "rest-b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, ids(docs))
}

// --- Batch ---

func TestBatchAppliesAllOps(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "keep", map[string]any{"q": int64(1)}))
	require.NoError(t, s.Set(context.Background(), itemsPath, "gone", map[string]any{"q": int64(1)}))

	b := s.Batch()
	b.Set(itemsPath, "new", map[string]any{"q": int64(5)})
	b.Update(itemsPath, "keep", map[string]any{"q": docstore.Inc(1)})
	b.Delete(itemsPath, "gone")
	require.NoError(t, b.Commit(context.Background()))

	doc, err := s.Get(context.Background(), itemsPath, "new")
	require.NoError(t, err)
	assert.Equal(t, int64(5), doc.Int("q"))

	doc, _ = s.Get(context.Background(), itemsPath, "keep")
	assert.Equal(t, int64(2), doc.Int("q"))

	_, err = s.Get(context.Background(), itemsPath, "gone")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestBatchFailsAtomically(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{"q": int64(1)}))

	b := s.Batch()
	b.Delete(itemsPath, "a")
	b.Update(itemsPath, "missing", map[string]any{"q": int64(2)})

	err := b.Commit(context.Background())
	require.ErrorIs(t, err, docstore.ErrBatchFailed)

	// The delete staged before the failing update must not have applied.
	_, err = s.Get(context.Background(), itemsPath, "a")
	assert.NoError(t, err)
}

// --- Subscribe ---

func TestSubscribeEmitsInitialSnapshot(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{"q": int64(1)}))

	sub, err := s.Subscribe(context.Background(), itemsPath, docstore.Query{})
	require.NoError(t, err)
	defer sub.Cancel()

	select {
	case docs := <-sub.Snapshots():
		assert.Equal(t, []string{"a"}, ids(docs))
	case <-time.After(time.Second):
		t.Fatal("no initial snapshot")
	}
}

func TestSubscribeSeesWrites(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), itemsPath, docstore.Query{})
	require.NoError(t, err)
	defer sub.Cancel()

	// Drain the initial empty snapshot.
	<-sub.Snapshots()

	require.NoError(t, s.Set(context.Background(), itemsPath, "a", map[string]any{"q": int64(1)}))

	select {
	case docs := <-sub.Snapshots():
		assert.Equal(t, []string{"a"}, ids(docs))
	case <-time.After(time.Second):
		t.Fatal("no snapshot after write")
	}
}

func TestSubscribeFiltersByQuery(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), itemsPath, docstore.Query{
		Filters: []docstore.Filter{{Field: "category", Op: docstore.OpEqual, Value: "bbq"}},
	})
	require.NoError(t, err)
	defer sub.Cancel()
	<-sub.Snapshots()

	require.NoError(t, s.Set(context.Background(), itemsPath, "k1", map[string]any{"category": "bbq"}))
	require.NoError(t, s.Set(context.Background(), itemsPath, "b1", map[string]any{"category": "biryani"}))

	var last []docstore.Document
	deadline := time.After(time.Second)
	for done := false; !done; {
		select {
		case docs, ok := <-sub.Snapshots():
			if !ok {
				done = true
				break
			}
			last = docs
			if len(last) == 1 {
				done = true
			}
		case <-deadline:
			done = true
		}
	}
	assert.Equal(t, []string{"k1"}, ids(last))
}

func TestCancelClosesChannel(t *testing.T) {
	s := New()
	sub, err := s.Subscribe(context.Background(), itemsPath, docstore.Query{})
	require.NoError(t, err)
	<-sub.Snapshots()

	sub.Cancel()

	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Snapshots():
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestSubscribeSnapshotsNeverRegress(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, itemsPath, "counter", map[string]any{"n": int64(0)}))

	done := make(chan struct{})
	var writers sync.WaitGroup
	for range 4 {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				_ = s.Update(ctx, itemsPath, "counter", map[string]any{"n": docstore.Inc(1)})
			}
		}()
	}

	for range 200 {
		sub, err := s.Subscribe(ctx, itemsPath, docstore.Query{})
		require.NoError(t, err)

		// The initial snapshot lands before Subscribe returns, so the
		// first receive is immediate even with writers racing.
		var last int64 = -1
		select {
		case snap := <-sub.Snapshots():
			require.Len(t, snap, 1)
			last = snap[0].Int("n")
		case <-time.After(time.Second):
			t.Fatal("no initial snapshot delivered")
		}

		deadline := time.After(time.Second)
	recv:
		for range 2 {
			select {
			case snap, ok := <-sub.Snapshots():
				if !ok {
					break recv
				}
				require.Len(t, snap, 1)
				n := snap[0].Int("n")
				require.GreaterOrEqual(t, n, last, "snapshot regressed to older state")
				last = n
			case <-deadline:
				break recv
			}
		}
		sub.Cancel()
	}

	close(done)
	writers.Wait()
}

func TestSetOnInsertSentinel(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, itemsPath, "a", map[string]any{
		"price": docstore.OnInsert("350"),
		"qty":   docstore.Inc(1),
	}))
	require.NoError(t, s.Set(ctx, itemsPath, "a", map[string]any{
		"price": docstore.OnInsert("999"),
		"qty":   docstore.Inc(2),
	}))

	doc, err := s.Get(ctx, itemsPath, "a")
	require.NoError(t, err)
	assert.Equal(t, "350", doc.Str("price"), "insert-only field keeps the first write")
	assert.Equal(t, int64(3), doc.Int("qty"))
}
