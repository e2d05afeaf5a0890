// Package profile aggregates the live listeners behind a profile screen into
// one view.
package profile

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

const (
	srcPosts     = "posts"
	srcFollowers = "followers"
	srcFollowing = "following"
	srcUser      = "user"
	srcFeed      = "feed"
)

var sources = []string{srcPosts, srcFollowers, srcFollowing, srcUser, srcFeed}

// Aggregator keeps a ProfileView current from five subscriptions: the
// authored post index, both follow relations, the user record and the
// authored feed.
type Aggregator struct {
	log    zerolog.Logger
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once

	mu       sync.Mutex
	closed   bool
	view     models.ProfileView
	authored []string
	seen     map[string]bool
	ready    chan struct{}
	changes  chan models.ProfileView
}

// Open starts every listener for uid. limit bounds the authored feed.
func Open(ctx context.Context, s store.Store, w *feed.Watcher, uid string, limit int) (*Aggregator, error) {
	actx, cancel := context.WithCancel(ctx)
	a := &Aggregator{
		log:     logging.Component("profile").With().Str("uid", uid).Logger(),
		cancel:  cancel,
		view:    models.ProfileView{UserID: uid, Posts: []models.Article{}},
		seen:    make(map[string]bool, len(sources)),
		ready:   make(chan struct{}),
		changes: make(chan models.ProfileView, 1),
	}

	watch := func(path string, apply func(store.Snapshot)) error {
		sub, err := s.Watch(actx, path, nil)
		if err != nil {
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer sub.Close()
			for snap := range sub.Updates() {
				a.apply(func() { apply(snap) })
			}
		}()
		return nil
	}

	steps := []struct {
		path  string
		apply func(store.Snapshot)
	}{
		{repositories.UserPostsPath(uid), func(snap store.Snapshot) {
			a.authored = snap.Keys()
			a.view.NumPosts = len(a.authored)
			a.seen[srcPosts] = true
		}},
		{repositories.FollowersPath(uid), func(snap store.Snapshot) {
			a.view.NumFollowers = snap.NumChildren()
			a.seen[srcFollowers] = true
		}},
		{repositories.FollowingPath(uid), func(snap store.Snapshot) {
			a.view.NumFollowing = snap.NumChildren()
			a.seen[srcFollowing] = true
		}},
		{repositories.UserPath(uid), func(snap store.Snapshot) {
			a.seen[srcUser] = true
			var u models.User
			if err := snap.Unmarshal(&u); err != nil {
				a.log.Warn().Err(err).Msg("malformed user record, keeping last profile")
				return
			}
			a.view.Name = u.Name
			a.view.AboutMe = u.AboutMe
		}},
	}
	for _, st := range steps {
		if err := watch(st.path, st.apply); err != nil {
			a.Close()
			return nil, err
		}
	}

	live, err := w.Authored(actx, uid, limit)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer live.Close()
		for list := range live.Updates() {
			a.apply(func() {
				a.view.Posts = list
				a.seen[srcFeed] = true
			})
		}
	}()
	return a, nil
}

func (a *Aggregator) apply(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	fn()
	if len(a.seen) == len(sources) {
		select {
		case <-a.ready:
		default:
			close(a.ready)
		}
	}
	select {
	case <-a.changes:
	default:
	}
	a.changes <- a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() models.ProfileView {
	v := a.view
	v.Posts = slices.Clone(a.view.Posts)
	if v.Posts == nil {
		v.Posts = []models.Article{}
	}
	return v
}

// Ready is closed once every listener delivered at least once.
func (a *Aggregator) Ready() <-chan struct{} { return a.ready }

// View returns the current aggregate.
func (a *Aggregator) View() models.ProfileView {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Changes delivers the newest aggregate after each listener update. Closed by
// Close.
func (a *Aggregator) Changes() <-chan models.ProfileView { return a.changes }

// AuthoredPosts returns the ids the user authored, or nil until the post
// index was delivered.
func (a *Aggregator) AuthoredPosts() *models.PostIndex {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.seen[srcPosts] {
		return nil
	}
	return &models.PostIndex{UserID: a.view.UserID, IDs: slices.Clone(a.authored)}
}

// Close releases every listener. Safe to call more than once.
func (a *Aggregator) Close() {
	a.once.Do(func() {
		a.cancel()
		a.wg.Wait()
		a.mu.Lock()
		a.closed = true
		close(a.changes)
		a.mu.Unlock()
	})
}
