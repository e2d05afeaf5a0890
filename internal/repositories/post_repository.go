package repositories

import (
	"context"
	"fmt"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// PostRepository defines the read side of the posts collection
type PostRepository interface {
	GetPostSnapshot(ctx context.Context, id string) (store.Snapshot, error)
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetPopular(ctx context.Context, limit int) (store.Snapshot, error)
}

// StorePostRepository implements PostRepository on the tree store
type StorePostRepository struct {
	store store.Store
}

// NewStorePostRepository creates a new StorePostRepository
func NewStorePostRepository(s store.Store) *StorePostRepository {
	return &StorePostRepository{store: s}
}

func (r *StorePostRepository) GetPostSnapshot(ctx context.Context, id string) (store.Snapshot, error) {
	return r.store.Get(ctx, PostPath(id))
}

// GetPostByID returns nil without error when the post does not exist
func (r *StorePostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	snap, err := r.GetPostSnapshot(ctx, id)
	if err != nil {
		return nil, err
	}
	if !snap.Exists() {
		return nil, nil
	}
	var post models.Post
	if err := snap.Unmarshal(&post); err != nil {
		return nil, fmt.Errorf("decode post %s: %w", id, err)
	}
	return &post, nil
}

// GetPopular returns the limit most upvoted posts in ascending upvote order
func (r *StorePostRepository) GetPopular(ctx context.Context, limit int) (store.Snapshot, error) {
	return r.store.Query(ctx, PostsRoot, PopularQuery(limit))
}

// PopularQuery selects the top posts by upvote count.
func PopularQuery(limit int) store.Query {
	return store.Query{OrderByChild: NumUpvotesField, LimitToLast: limit}
}

// LatestQuery selects the newest entries of a post index.
func LatestQuery(limit int) store.Query {
	return store.Query{LimitToLast: limit}
}
