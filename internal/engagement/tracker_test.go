package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-feed/backend/internal/identity"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/services"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

func newStore(t *testing.T) store.Store {
	s := store.NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func waitState[T any](t *testing.T, ch <-chan T, cond func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "tracker closed")
			if cond(v) {
				return v
			}
		case <-deadline:
			t.Fatal("state not reached")
			var zero T
			return zero
		}
	}
}

func TestUpvoteTrackerIndependentSubscriptions(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, map[string]any{"posts/p1": map[string]any{"title": "t", "numUpvotes": 0}}))

	tr, err := TrackUpvotes(ctx, s, "p1", "u1")
	require.NoError(t, err)
	defer tr.Close()

	st := waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return s.Known && s.CountKnown })
	assert.False(t, st.Upvoted)
	assert.Zero(t, st.NumUpvotes)

	// Someone else upvotes: only the count moves.
	require.NoError(t, s.Update(ctx, map[string]any{"posts/p1/numUpvotes": store.Increment(1), "posts/p1/upvotes/u2": true}))
	st = waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return s.NumUpvotes == 1 })
	assert.False(t, st.Upvoted)

	tr.Intend(true)
	assert.True(t, tr.State().Upvoted)
	assert.True(t, tr.State().Pending)
	assert.Equal(t, Off, tr.Confirmed())

	require.NoError(t, s.Update(ctx, map[string]any{"posts/p1/numUpvotes": store.Increment(1), "posts/p1/upvotes/u1": true}))
	st = waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return s.NumUpvotes == 2 && s.Upvoted && !s.Pending })
	assert.Equal(t, On, tr.Confirmed())
}

func TestUpvoteTrackerCloseStopsDelivery(t *testing.T) {
	s := newStore(t)
	tr, err := TrackUpvotes(context.Background(), s, "p1", "u1")
	require.NoError(t, err)

	tr.Close()
	tr.Close()
	require.NoError(t, s.Update(context.Background(), map[string]any{"posts/p1/numUpvotes": 3}))
	tr.Intend(true)

	for range tr.Updates() {
	}
}

func trackedPost(t *testing.T, s store.Store, uid string) *UpvoteTracker {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Update(ctx, map[string]any{
		"posts/p1": map[string]any{"title": "t", "numUpvotes": 0, "creator": map[string]any{"id": "a"}},
	}))
	tr, err := TrackUpvotes(ctx, s, "p1", uid)
	require.NoError(t, err)
	t.Cleanup(tr.Close)
	waitState(t, tr.Updates(), func(st models.UpvoteState) bool { return st.CountKnown && (st.Known || uid == "") })
	return tr
}

func upvoteWriter(s store.Store, uid string) ToggleFunc {
	svc := services.NewFanoutService(s)
	return func(ctx context.Context, upvoted bool) error {
		_, err := svc.ToggleUpvote(identity.WithUID(ctx, uid), "p1", upvoted)
		return err
	}
}

func storedUpvotes(t *testing.T, s store.Store) (float64, any) {
	t.Helper()
	post, err := s.Get(context.Background(), "posts/p1")
	require.NoError(t, err)
	n, _ := post.Child("numUpvotes").Value.(float64)
	return n, post.Child("upvotes").Child("u1").Value
}

func TestUpvoteToggleRapidRepeats(t *testing.T) {
	s := newStore(t)
	tr := trackedPost(t, s, "u1")
	write := upvoteWriter(s, "u1")

	for i := range 200 {
		require.NoError(t, tr.Toggle(context.Background(), write), "toggle %d", i)
		want := i%2 == 0
		assert.Equal(t, want, tr.State().Upvoted)
		assert.False(t, tr.State().Pending)
	}

	n, flag := storedUpvotes(t, s)
	assert.Zero(t, n)
	assert.Nil(t, flag)
}

func TestUpvoteToggleConcurrentCallers(t *testing.T) {
	s := newStore(t)
	tr := trackedPost(t, s, "u1")
	write := upvoteWriter(s, "u1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := 0
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := tr.Toggle(context.Background(), write)
			if err == nil {
				mu.Lock()
				applied++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrToggleInFlight)
		}()
	}
	wg.Wait()

	require.Positive(t, applied)
	n, flag := storedUpvotes(t, s)
	if applied%2 == 1 {
		assert.Equal(t, float64(1), n)
		assert.Equal(t, true, flag)
	} else {
		assert.Zero(t, n)
		assert.Nil(t, flag)
	}
}

func TestUpvoteToggleFailedWriteDropsIntent(t *testing.T) {
	s := newStore(t)
	tr := trackedPost(t, s, "u1")

	boom := errors.New("permission denied")
	err := tr.Toggle(context.Background(), func(context.Context, bool) error { return boom })
	assert.ErrorIs(t, err, boom)

	st := tr.State()
	assert.False(t, st.Upvoted)
	assert.False(t, st.Pending)
	waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return !s.Upvoted && !s.Pending })

	// The guard is released for the next attempt.
	require.NoError(t, tr.Toggle(context.Background(), upvoteWriter(s, "u1")))
	assert.True(t, tr.State().Upvoted)
}

func TestUpvoteTrackerCancelIntent(t *testing.T) {
	s := newStore(t)
	tr := trackedPost(t, s, "u1")

	tr.Intend(true)
	waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return s.Upvoted && s.Pending })

	tr.CancelIntent()
	waitState(t, tr.Updates(), func(s models.UpvoteState) bool { return !s.Upvoted && !s.Pending })
	assert.Equal(t, Off, tr.Confirmed())
}

func TestUpvoteToggleNeedsConfirmedState(t *testing.T) {
	s := newStore(t)
	tr := trackedPost(t, s, "")

	called := false
	err := tr.Toggle(context.Background(), func(context.Context, bool) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrNotConfirmed)
	assert.False(t, called)
}

func TestFollowTrackerSelfIsHidden(t *testing.T) {
	s := newStore(t)
	tr, err := TrackFollow(context.Background(), s, "u1", "u1")
	require.NoError(t, err)
	defer tr.Close()

	assert.False(t, tr.Visible())
	st := <-tr.Updates()
	assert.False(t, st.Visible)

	tr.Intend(true)
	assert.False(t, tr.State().Following)
}

func TestFollowTrackerFollowsEdge(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	tr, err := TrackFollow(ctx, s, "a", "b")
	require.NoError(t, err)
	defer tr.Close()

	st := waitState(t, tr.Updates(), func(s models.FollowState) bool { return s.Known })
	assert.True(t, st.Visible)
	assert.False(t, st.Following)

	require.NoError(t, s.Update(ctx, map[string]any{"following/a/b": true, "followers/b/a": true}))
	waitState(t, tr.Updates(), func(s models.FollowState) bool { return s.Following })

	require.NoError(t, s.Update(ctx, map[string]any{"following/a/b": nil, "followers/b/a": nil}))
	waitState(t, tr.Updates(), func(s models.FollowState) bool { return !s.Following })
}
