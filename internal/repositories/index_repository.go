package repositories

import (
	"context"

	"github.com/anonto42/nano-feed/backend/internal/store"
)

// IndexRepository reads the per-user post pointer indexes
type IndexRepository interface {
	AuthoredPostIDs(ctx context.Context, uid string) ([]string, error)
	FeedPostIDs(ctx context.Context, uid string, limit int) ([]string, error)
}

// StoreIndexRepository implements IndexRepository on the tree store
type StoreIndexRepository struct {
	store store.Store
}

// NewStoreIndexRepository creates a new StoreIndexRepository
func NewStoreIndexRepository(s store.Store) *StoreIndexRepository {
	return &StoreIndexRepository{store: s}
}

// AuthoredPostIDs lists every post the user created, oldest first
func (r *StoreIndexRepository) AuthoredPostIDs(ctx context.Context, uid string) ([]string, error) {
	snap, err := r.store.Get(ctx, UserPostsPath(uid))
	if err != nil {
		return nil, err
	}
	return snap.Keys(), nil
}

// FeedPostIDs lists the newest limit pointers of the user's feed, oldest first.
// A limit of zero lists all of them.
func (r *StoreIndexRepository) FeedPostIDs(ctx context.Context, uid string, limit int) ([]string, error) {
	snap, err := r.store.Query(ctx, FeedPath(uid), LatestQuery(limit))
	if err != nil {
		return nil, err
	}
	return snap.Keys(), nil
}
