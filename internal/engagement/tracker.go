package engagement

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// stream publishes the newest state of a tracker and stops publishing once
// closed, even if a snapshot is still being handled.
type stream[T any] struct {
	mu     sync.Mutex
	closed bool
	out    chan T
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newStream[T any](cancel context.CancelFunc) *stream[T] {
	return &stream[T]{out: make(chan T, 1), cancel: cancel}
}

// publishLocked must be called with mu held.
func (s *stream[T]) publishLocked(v T) {
	if s.closed {
		return
	}
	select {
	case <-s.out:
	default:
	}
	s.out <- v
}

func (s *stream[T]) close() {
	s.once.Do(func() {
		s.cancel()
		s.wg.Wait()
		s.mu.Lock()
		s.closed = true
		close(s.out)
		s.mu.Unlock()
	})
}

// follow applies every snapshot of sub until it ends.
func (s *stream[T]) follow(sub *store.Subscription, apply func(store.Snapshot) T) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer sub.Close()
		for snap := range sub.Updates() {
			s.mu.Lock()
			s.publishLocked(apply(snap))
			s.mu.Unlock()
		}
	}()
}

var (
	ErrToggleInFlight = errors.New("upvote already in progress")
	ErrNotConfirmed   = errors.New("upvote state not confirmed yet")
)

// ConfirmTimeout bounds how long Toggle waits for the flag snapshot that
// confirms a successful write.
var ConfirmTimeout = 5 * time.Second

// ToggleFunc writes an upvote toggle. upvoted is the confirmed state being
// flipped.
type ToggleFunc func(ctx context.Context, upvoted bool) error

// UpvoteTracker follows the caller's upvote flag and the upvote count of one
// post through two independent subscriptions.
type UpvoteTracker struct {
	*stream[models.UpvoteState]
	postID string
	flag   Flag
	count  Count

	toggling bool
	confirm  chan struct{}
}

// TrackUpvotes subscribes to posts/{id}/upvotes/{uid} and posts/{id}/numUpvotes.
func TrackUpvotes(ctx context.Context, s store.Store, postID, uid string) (*UpvoteTracker, error) {
	tctx, cancel := context.WithCancel(ctx)
	t := &UpvoteTracker{stream: newStream[models.UpvoteState](cancel), postID: postID}

	countSub, err := s.Watch(tctx, repositories.PostNumUpvotesPath(postID), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	t.follow(countSub, func(snap store.Snapshot) models.UpvoteState {
		t.count.Observe(snap.Value)
		return t.stateLocked()
	})

	if uid != "" {
		flagSub, err := s.Watch(tctx, repositories.PostUpvotePath(postID, uid), nil)
		if err != nil {
			t.close()
			return nil, err
		}
		t.follow(flagSub, func(snap store.Snapshot) models.UpvoteState {
			t.flag.Observe(snap.Value)
			if t.confirm != nil {
				close(t.confirm)
				t.confirm = nil
			}
			return t.stateLocked()
		})
	}
	return t, nil
}

func (t *UpvoteTracker) stateLocked() models.UpvoteState {
	return models.UpvoteState{
		PostID:     t.postID,
		Upvoted:    t.flag.Display(),
		Known:      t.flag.Known(),
		Pending:    t.flag.Pending(),
		NumUpvotes: t.count.Value(),
		CountKnown: t.count.Known(),
	}
}

// Updates delivers the newest state. Closed by Close.
func (t *UpvoteTracker) Updates() <-chan models.UpvoteState { return t.out }

// State returns the current state.
func (t *UpvoteTracker) State() models.UpvoteState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Confirmed returns the last snapshot-confirmed flag, for deciding the
// direction of the next toggle.
func (t *UpvoteTracker) Confirmed() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.flag.State()
}

// Intend shows on until the next snapshot arrives.
func (t *UpvoteTracker) Intend(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flag.Intend(on)
	t.publishLocked(t.stateLocked())
}

// CancelIntent drops a pending intent and republishes the confirmed state.
func (t *UpvoteTracker) CancelIntent() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flag.CancelIntent()
	t.publishLocked(t.stateLocked())
}

// Toggle flips the confirmed flag through write. The intent is shown at once
// and held until a flag snapshot arrives, so the next Toggle always starts
// from the state the write produced. A failed write drops the intent. Only
// one Toggle runs at a time; others fail with ErrToggleInFlight.
func (t *UpvoteTracker) Toggle(ctx context.Context, write ToggleFunc) error {
	t.mu.Lock()
	switch {
	case t.toggling:
		t.mu.Unlock()
		return ErrToggleInFlight
	case !t.flag.Known():
		t.mu.Unlock()
		return ErrNotConfirmed
	}
	upvoted := t.flag.State() == On
	confirmed := make(chan struct{})
	t.toggling = true
	t.confirm = confirmed
	t.flag.Intend(!upvoted)
	t.publishLocked(t.stateLocked())
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.toggling = false
		t.confirm = nil
		t.mu.Unlock()
	}()

	if err := write(ctx, upvoted); err != nil {
		t.CancelIntent()
		return err
	}

	timer := time.NewTimer(ConfirmTimeout)
	defer timer.Stop()
	select {
	case <-confirmed:
		return nil
	case <-ctx.Done():
		t.CancelIntent()
		return ctx.Err()
	case <-timer.C:
		t.CancelIntent()
		return nil
	}
}

// Close releases both subscriptions. Safe to call more than once.
func (t *UpvoteTracker) Close() { t.close() }

// FollowTracker follows one follow edge of the caller.
type FollowTracker struct {
	*stream[models.FollowState]
	target  string
	visible bool
	flag    Flag
}

// TrackFollow subscribes to following/{uid}/{target}. When the caller looks
// at themselves, or is anonymous, the tracker is hidden and holds no
// subscription.
func TrackFollow(ctx context.Context, s store.Store, uid, target string) (*FollowTracker, error) {
	tctx, cancel := context.WithCancel(ctx)
	t := &FollowTracker{stream: newStream[models.FollowState](cancel), target: target}
	if uid == "" || uid == target {
		t.mu.Lock()
		t.publishLocked(t.stateLocked())
		t.mu.Unlock()
		return t, nil
	}

	sub, err := s.Watch(tctx, repositories.FollowingPath(uid, target), nil)
	if err != nil {
		cancel()
		return nil, err
	}
	t.visible = true
	t.follow(sub, func(snap store.Snapshot) models.FollowState {
		t.flag.Observe(snap.Value)
		return t.stateLocked()
	})
	return t, nil
}

func (t *FollowTracker) stateLocked() models.FollowState {
	return models.FollowState{
		TargetID:  t.target,
		Visible:   t.visible,
		Following: t.flag.Display(),
		Known:     t.flag.Known(),
	}
}

// Visible reports whether the follow affordance applies.
func (t *FollowTracker) Visible() bool { return t.visible }

func (t *FollowTracker) Updates() <-chan models.FollowState { return t.out }

func (t *FollowTracker) State() models.FollowState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stateLocked()
}

// Intend shows the requested follow state until the next snapshot arrives.
func (t *FollowTracker) Intend(on bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.visible {
		return
	}
	t.flag.Intend(on)
	t.publishLocked(t.stateLocked())
}

func (t *FollowTracker) Close() { t.close() }
