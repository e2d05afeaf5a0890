package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchSeesWriteDuringFirstRead(t *testing.T) {
	w := newWatchers("test", 0)
	t.Cleanup(w.closeAll)
	segs := []string{"posts", "p1", "numUpvotes"}

	var mu sync.Mutex
	value := float64(0)
	var once sync.Once
	read := func(context.Context) (Snapshot, error) {
		mu.Lock()
		snap := Snapshot{Key: "numUpvotes", Value: value}
		mu.Unlock()
		// A write commits right after the first read took its value.
		once.Do(func() {
			mu.Lock()
			value = 1
			mu.Unlock()
			go w.notify([][]string{segs})
		})
		return snap, nil
	}

	sub, err := w.watch(context.Background(), segs, read)
	require.NoError(t, err)
	defer sub.Close()

	first := nextSnapshot(t, sub)
	if first.Value == float64(1) {
		return
	}
	assert.Equal(t, float64(0), first.Value)
	assert.Equal(t, float64(1), nextSnapshot(t, sub).Value)
}

func TestWatchFailedFirstReadUnregisters(t *testing.T) {
	w := newWatchers("test", 0)
	boom := assert.AnError
	_, err := w.watch(context.Background(), []string{"posts"}, func(context.Context) (Snapshot, error) {
		return Snapshot{}, boom
	})
	assert.ErrorIs(t, err, boom)

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Empty(t, w.subs)
}
