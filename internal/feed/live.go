package feed

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// Live is a continuously maintained article list. Updates always carries the
// newest list; intermediate lists may be skipped.
type Live struct {
	ctx    context.Context
	cancel context.CancelFunc
	out    chan []models.Article
	done   chan struct{}
	once   sync.Once

	mu      sync.Mutex
	current []models.Article
}

func newLive(ctx context.Context) *Live {
	lctx, cancel := context.WithCancel(ctx)
	return &Live{
		ctx:    lctx,
		cancel: cancel,
		out:    make(chan []models.Article, 1),
		done:   make(chan struct{}),
	}
}

// Updates is closed after Close.
func (l *Live) Updates() <-chan []models.Article {
	return l.out
}

// Current returns the last published list.
func (l *Live) Current() []models.Article {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.current)
}

// Close stops every underlying subscription and waits for the feed loop.
func (l *Live) Close() {
	l.once.Do(func() {
		l.cancel()
		<-l.done
	})
}

// publish runs on the feed loop only.
func (l *Live) publish(list []models.Article) {
	l.mu.Lock()
	l.current = slices.Clone(list)
	l.mu.Unlock()
	select {
	case <-l.out:
	default:
	}
	l.out <- slices.Clone(list)
}

// Watcher opens live feeds over a store.
type Watcher struct {
	store store.Store
	mat   *Materializer
	log   zerolog.Logger
}

func NewWatcher(s store.Store, m *Materializer) *Watcher {
	return &Watcher{store: s, mat: m, log: logging.Component("feed")}
}

// Following follows the newest limit pointers of the user's feed index and
// keeps one live post subscription per pointer. Newest posts come first.
func (w *Watcher) Following(ctx context.Context, uid string, limit int) (*Live, error) {
	return w.indexed(ctx, repositories.FeedPath(uid), limit, models.LayoutVertical)
}

// Authored is Following over the user's own post index.
func (w *Watcher) Authored(ctx context.Context, uid string, limit int) (*Live, error) {
	return w.indexed(ctx, repositories.UserPostsPath(uid), limit, models.LayoutHorizontal)
}

// Popular follows the limit most upvoted posts, highest first.
func (w *Watcher) Popular(ctx context.Context, limit int) (*Live, error) {
	q := repositories.PopularQuery(limit)
	live := newLive(ctx)
	sub, err := w.store.Watch(live.ctx, repositories.PostsRoot, &q)
	if err != nil {
		live.cancel()
		return nil, err
	}
	go func() {
		defer close(live.done)
		defer close(live.out)
		defer sub.Close()
		for snap := range sub.Updates() {
			live.publish(ApplySnapshot(nil, snap, w.mat, models.LayoutHorizontal, Prepend))
		}
	}()
	return live, nil
}

type postEvent struct {
	id   string
	sub  *store.Subscription
	snap store.Snapshot
}

type indexedFeed struct {
	w      *Watcher
	live   *Live
	layout models.Layout
	events chan postEvent
	posts  map[string]*store.Subscription
	list   []models.Article
}

func (w *Watcher) indexed(ctx context.Context, indexPath string, limit int, layout models.Layout) (*Live, error) {
	q := repositories.LatestQuery(limit)
	live := newLive(ctx)
	index, err := w.store.Watch(live.ctx, indexPath, &q)
	if err != nil {
		live.cancel()
		return nil, err
	}
	f := &indexedFeed{
		w:      w,
		live:   live,
		layout: layout,
		events: make(chan postEvent),
		posts:  make(map[string]*store.Subscription),
	}
	go f.run(index)
	return live, nil
}

func (f *indexedFeed) run(index *store.Subscription) {
	defer close(f.live.done)
	defer close(f.live.out)
	defer func() {
		f.live.cancel()
		index.Close()
		for _, sub := range f.posts {
			sub.Close()
		}
	}()

	for {
		select {
		case <-f.live.ctx.Done():
			return
		case snap, ok := <-index.Updates():
			if !ok {
				return
			}
			f.syncIndex(snap)
		case ev := <-f.events:
			if f.posts[ev.id] != ev.sub {
				continue
			}
			f.applyPost(ev.id, ev.snap)
		}
		f.live.publish(f.list)
	}
}

// syncIndex opens watches for new pointers and releases the ones that left
// the window. Initial post snapshots are applied in index order so the first
// list is newest first.
func (f *indexedFeed) syncIndex(snap store.Snapshot) {
	keys := snap.Keys()
	want := make(map[string]struct{}, len(keys))
	for _, id := range keys {
		want[id] = struct{}{}
	}
	for id, sub := range f.posts {
		if _, ok := want[id]; !ok {
			sub.Close()
			delete(f.posts, id)
			f.list = Remove(f.list, id)
		}
	}
	for _, id := range keys {
		if _, ok := f.posts[id]; ok {
			continue
		}
		sub, err := f.w.store.Watch(f.live.ctx, repositories.PostPath(id), nil)
		if err != nil {
			f.w.log.Warn().Err(err).Str("post_id", id).Msg("post watch failed")
			continue
		}
		f.posts[id] = sub
		if first, ok := <-sub.Updates(); ok {
			f.applyPost(id, first)
		}
		go f.forward(id, sub)
	}
}

func (f *indexedFeed) applyPost(id string, snap store.Snapshot) {
	if !snap.Exists() {
		f.list = Remove(f.list, id)
		return
	}
	a, ok := f.w.mat.Materialize(snap, f.layout)
	if !ok {
		return
	}
	f.list = Upsert(f.list, a, Prepend)
}

func (f *indexedFeed) forward(id string, sub *store.Subscription) {
	for snap := range sub.Updates() {
		select {
		case f.events <- postEvent{id: id, sub: sub, snap: snap}:
		case <-f.live.ctx.Done():
			return
		}
	}
}
