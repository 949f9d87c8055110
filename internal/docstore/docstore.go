// Package docstore defines a collection-oriented document store contract:
// CRUD, filtered queries, live subscriptions, atomic batches, and
// server-side numeric increments. Both the in-memory store used for local
// carts and tests and the MongoDB-backed store implement it.
package docstore

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("docstore: document not found")

	// ErrBatchFailed is returned when an atomic batch commit fails as a
	// whole. No operation from the batch has been applied.
	ErrBatchFailed = errors.New("docstore: batch commit failed")
)

// Document is a single stored document: an opaque id plus flat fields.
type Document struct {
	ID        string
	Fields    map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Str returns the string value of a field, or "" if absent or not a string.
func (d Document) Str(key string) string {
	s, _ := d.Fields[key].(string)
	return s
}

// Int returns the integer value of a field, accepting the numeric types a
// backend may decode into.
func (d Document) Int(key string) int64 {
	switch v := d.Fields[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

// Bool returns the boolean value of a field, or false.
func (d Document) Bool(key string) bool {
	b, _ := d.Fields[key].(bool)
	return b
}

// Strings returns the []string value of a field, tolerating []any decoding.
func (d Document) Strings(key string) []string {
	switch v := d.Fields[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Path addresses a collection: either a top-level collection ("orders") or
// a per-document subcollection ("users", uid, "cart").
type Path []string

// Collection builds a Path from path segments. The segment count must be
// odd (collection, or collection/doc/subcollection).
func Collection(segments ...string) Path {
	if len(segments)%2 == 0 {
		panic("docstore: collection path must have an odd number of segments")
	}
	return Path(segments)
}

// Leaf returns the final collection name.
func (p Path) Leaf() string { return p[len(p)-1] }

// Parent returns the owning document reference ("users/u1"), or "" for a
// top-level collection.
func (p Path) Parent() string {
	if len(p) < 3 {
		return ""
	}
	return strings.Join(p[:len(p)-1], "/")
}

func (p Path) String() string { return strings.Join(p, "/") }

// Op is a query filter operator.
type Op string

const (
	OpEqual          Op = "=="
	OpGreaterOrEqual Op = ">="
	OpLessOrEqual    Op = "<="
)

// Filter constrains a query to documents whose field satisfies Op against
// Value. An equality filter on a field holding a string slice matches when
// the slice contains the value (array membership, Mongo semantics).
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered, optionally limited read.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// prefixUpperBound is the highest code point; appending it to a prefix
// turns two range filters into a string prefix match.
const prefixUpperBound = ""

// PrefixFilters returns the filter pair implementing search-by-prefix on a
// string field.
func PrefixFilters(field, prefix string) []Filter {
	return []Filter{
		{Field: field, Op: OpGreaterOrEqual, Value: prefix},
		{Field: field, Op: OpLessOrEqual, Value: prefix + prefixUpperBound},
	}
}

// Increment is a field value sentinel: the backend atomically adds Delta to
// the stored numeric field instead of replacing it.
type Increment struct {
	Delta int64
}

// Inc returns an Increment sentinel for use in Set/Update field maps.
func Inc(delta int64) Increment { return Increment{Delta: delta} }

// SetOnInsert is a field value sentinel for Set: the wrapped value is
// written only when the Set creates the document, while an existing
// document keeps its stored value. Combined with Inc this makes Set a
// race-free upsert: concurrent first writers both land as increments and
// the earlier one's insert-only fields win.
type SetOnInsert struct {
	Value any
}

// OnInsert wraps v in a SetOnInsert sentinel for use in Set field maps.
func OnInsert(v any) SetOnInsert { return SetOnInsert{Value: v} }

// serverTimestamp is the sentinel type behind ServerTimestamp.
type serverTimestamp struct{}

// ServerTimestamp is a field value sentinel resolved to the store's current
// time at write application.
var ServerTimestamp = serverTimestamp{}

// Subscription is a live query handle. Snapshots yields the full current
// result set, once on subscribe and again after every relevant change.
// Emissions are coalesced: a slow consumer observes the latest state, not
// every intermediate one. The channel is closed after Cancel or when the
// subscribe context ends.
type Subscription interface {
	Snapshots() <-chan []Document
	Cancel()
}

// Batch stages writes that Commit applies atomically: either every staged
// operation is applied or none is, and a failed commit reports
// ErrBatchFailed.
type Batch interface {
	Set(path Path, id string, fields map[string]any)
	Update(path Path, id string, fields map[string]any)
	Delete(path Path, id string)
	Commit(ctx context.Context) error
}

// Store is the document store boundary.
type Store interface {
	Get(ctx context.Context, path Path, id string) (Document, error)
	Query(ctx context.Context, path Path, q Query) ([]Document, error)
	Subscribe(ctx context.Context, path Path, q Query) (Subscription, error)
	Add(ctx context.Context, path Path, fields map[string]any) (string, error)
	Set(ctx context.Context, path Path, id string, fields map[string]any) error
	Update(ctx context.Context, path Path, id string, fields map[string]any) error
	Delete(ctx context.Context, path Path, id string) error
	Batch() Batch
}
