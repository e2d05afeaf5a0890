package repositories

import (
	"context"

	"github.com/anonto42/nano-feed/backend/internal/store"
)

// FollowRepository defines the read side of the follow graph
type FollowRepository interface {
	IsFollowing(ctx context.Context, follower, followee string) (bool, error)
	GetFollowerIDs(ctx context.Context, uid string) ([]string, error)
	GetFollowingIDs(ctx context.Context, uid string) ([]string, error)
}

// StoreFollowRepository implements FollowRepository on the tree store
type StoreFollowRepository struct {
	store store.Store
}

// NewStoreFollowRepository creates a new StoreFollowRepository
func NewStoreFollowRepository(s store.Store) *StoreFollowRepository {
	return &StoreFollowRepository{store: s}
}

func (r *StoreFollowRepository) IsFollowing(ctx context.Context, follower, followee string) (bool, error) {
	snap, err := r.store.Get(ctx, FollowingPath(follower, followee))
	if err != nil {
		return false, err
	}
	return Truthy(snap.Value), nil
}

func (r *StoreFollowRepository) GetFollowerIDs(ctx context.Context, uid string) ([]string, error) {
	snap, err := r.store.Get(ctx, FollowersPath(uid))
	if err != nil {
		return nil, err
	}
	return snap.Keys(), nil
}

func (r *StoreFollowRepository) GetFollowingIDs(ctx context.Context, uid string) ([]string, error) {
	snap, err := r.store.Get(ctx, FollowingPath(uid))
	if err != nil {
		return nil, err
	}
	return snap.Keys(), nil
}

// Truthy converts a stored value to a boolean the way the mobile client did:
// absent, false, zero and the empty string are false.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	default:
		return true
	}
}
