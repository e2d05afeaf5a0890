// Package store is the tree-structured key/value backend every feed component
// reads from and writes to.
//
// Paths are slash separated ("posts/abc/numUpvotes"). Values are JSON-shaped:
// maps, strings, float64 numbers, booleans. A nil value means "absent"; writing
// nil deletes. Multi-path updates are atomic per call.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrInvalidPath      = errors.New("store: invalid path")
	ErrOverlappingPaths = errors.New("store: update paths overlap")
	ErrClosed           = errors.New("store: closed")
)

// Store is implemented by every backend.
type Store interface {
	// Get reads the value at path.
	Get(ctx context.Context, path string) (Snapshot, error)

	// Query reads the children of path ordered and limited by q.
	Query(ctx context.Context, path string, q Query) (Snapshot, error)

	// Update applies every path → value pair atomically. A nil value deletes.
	Update(ctx context.Context, updates map[string]any) error

	// Watch delivers the value at path now and after every change. q may be nil.
	// The subscription ends on Close or when ctx is done.
	Watch(ctx context.Context, path string, q *Query) (*Subscription, error)

	Close() error
}

// Query orders and limits the children of a path. The zero Query orders by
// key and returns everything.
type Query struct {
	OrderByChild string
	LimitToFirst int
	LimitToLast  int
}

func (q Query) isZero() bool {
	return q == Query{}
}

// NewKey returns a new child key. Keys sort in creation order.
func NewKey() string {
	return uuid.Must(uuid.NewV7()).String()
}
