package feed

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

const maxParallelReads = 16

// ReadFollowing reads the user's feed once. Newest posts come first.
func (w *Watcher) ReadFollowing(ctx context.Context, uid string, limit int) ([]models.Article, error) {
	return w.readIndexed(ctx, repositories.FeedPath(uid), limit, models.LayoutVertical)
}

// ReadAuthored reads the user's own posts once. Newest posts come first.
func (w *Watcher) ReadAuthored(ctx context.Context, uid string, limit int) ([]models.Article, error) {
	return w.readIndexed(ctx, repositories.UserPostsPath(uid), limit, models.LayoutHorizontal)
}

// ReadPopular reads the limit most upvoted posts once, highest first.
func (w *Watcher) ReadPopular(ctx context.Context, limit int) ([]models.Article, error) {
	snap, err := w.store.Query(ctx, repositories.PostsRoot, repositories.PopularQuery(limit))
	if err != nil {
		return nil, err
	}
	return ApplySnapshot(nil, snap, w.mat, models.LayoutHorizontal, Prepend), nil
}

// ReadPost materializes a single post. ok is false when it does not exist.
func (w *Watcher) ReadPost(ctx context.Context, id string, layout models.Layout) (models.Article, bool, error) {
	snap, err := w.store.Get(ctx, repositories.PostPath(id))
	if err != nil {
		return models.Article{}, false, err
	}
	a, ok := w.mat.Materialize(snap, layout)
	return a, ok, nil
}

func (w *Watcher) readIndexed(ctx context.Context, indexPath string, limit int, layout models.Layout) ([]models.Article, error) {
	index, err := w.store.Query(ctx, indexPath, repositories.LatestQuery(limit))
	if err != nil {
		return nil, err
	}
	ids := index.Keys()
	snaps := make([]store.Snapshot, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, id := range ids {
		g.Go(func() error {
			snap, err := w.store.Get(gctx, repositories.PostPath(id))
			if err != nil {
				return err
			}
			snaps[i] = snap
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var list []models.Article
	for _, snap := range snaps {
		if a, ok := w.mat.Materialize(snap, layout); ok {
			list = Upsert(list, a, Prepend)
		}
	}
	return list, nil
}
