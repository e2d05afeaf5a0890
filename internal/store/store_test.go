package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type storeFactory func(t *testing.T) Store

func newMemory(t *testing.T) Store {
	s := NewMemoryStore()
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newSQLite(t *testing.T) Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	s, err := NewSQLStore(db, SQLOptions{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// newMongo needs MONGO_URI pointing at a replica set; every store gets its
// own database, dropped on cleanup.
func newMongo(t *testing.T) Store {
	uri := os.Getenv("MONGO_URI")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	database := "nanofeed_test_" + strings.ReplaceAll(NewKey(), "-", "")
	s := NewMongoStore(client, database, 0)
	t.Cleanup(func() {
		_ = s.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = client.Database(database).Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	return s
}

func TestMemoryStore(t *testing.T) {
	runStoreSuite(t, newMemory)
}

func TestSQLStore(t *testing.T) {
	runStoreSuite(t, newSQLite)
}

func TestMongoStore(t *testing.T) {
	if os.Getenv("MONGO_URI") == "" {
		t.Skip("MONGO_URI not set")
	}
	runStoreSuite(t, newMongo)
}

func nextSnapshot(t *testing.T, sub *Subscription) Snapshot {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "subscription closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return Snapshot{}
	}
}

func assertNoSnapshot(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case snap := <-sub.Updates():
		t.Fatalf("unexpected snapshot %v", snap.Value)
	default:
	}
}

func runStoreSuite(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("multi-path update and read back", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{
			"posts/p1":        map[string]any{"title": "hello", "numUpvotes": 0},
			"userPosts/u1/p1": true,
		}))

		post, err := s.Get(ctx, "posts/p1")
		require.NoError(t, err)
		assert.Equal(t, "p1", post.Key)
		assert.Equal(t, "hello", post.Child("title").Value)
		assert.Equal(t, float64(0), post.Child("numUpvotes").Value)

		idx, err := s.Get(ctx, "userPosts/u1")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, idx.Keys())
	})

	t.Run("nil deletes and prunes empty parents", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{"followers/b/a": true}))
		require.NoError(t, s.Update(ctx, map[string]any{"followers/b/a": nil}))

		snap, err := s.Get(ctx, "followers")
		require.NoError(t, err)
		assert.False(t, snap.Exists())
	})

	t.Run("empty object is a delete", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{"users/u1/name": "ann"}))
		require.NoError(t, s.Update(ctx, map[string]any{"users/u1": map[string]any{}}))

		snap, err := s.Get(ctx, "users/u1")
		require.NoError(t, err)
		assert.False(t, snap.Exists())
	})

	t.Run("increment and timestamp resolve server side", func(t *testing.T) {
		s := newStore(t)
		before := float64(time.Now().UnixMilli())
		require.NoError(t, s.Update(ctx, map[string]any{
			"posts/p1/createdAt":  ServerTimestamp,
			"posts/p1/numUpvotes": Increment(1),
		}))
		require.NoError(t, s.Update(ctx, map[string]any{"posts/p1/numUpvotes": Increment(1)}))
		require.NoError(t, s.Update(ctx, map[string]any{"posts/p1/numUpvotes": Increment(-1)}))
		after := float64(time.Now().UnixMilli())

		post, err := s.Get(ctx, "posts/p1")
		require.NoError(t, err)
		assert.Equal(t, float64(1), post.Child("numUpvotes").Value)
		ts, ok := post.Child("createdAt").Value.(float64)
		require.True(t, ok)
		assert.GreaterOrEqual(t, ts, before)
		assert.LessOrEqual(t, ts, after)
	})

	t.Run("overlapping paths are rejected without writing", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, map[string]any{
			"posts/p1":       map[string]any{"title": "x"},
			"posts/p1/title": "y",
		})
		require.ErrorIs(t, err, ErrOverlappingPaths)

		snap, err := s.Get(ctx, "posts")
		require.NoError(t, err)
		assert.False(t, snap.Exists())
	})

	t.Run("invalid path", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, map[string]any{"posts/a.b": true})
		require.ErrorIs(t, err, ErrInvalidPath)
		_, err = s.Get(ctx, "posts//x")
		require.ErrorIs(t, err, ErrInvalidPath)
	})

	t.Run("leaf replaced by object and back", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{"a/b": "leaf"}))
		require.NoError(t, s.Update(ctx, map[string]any{"a/b/c": 1}))

		snap, err := s.Get(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"c": float64(1)}, snap.Value)

		require.NoError(t, s.Update(ctx, map[string]any{"a/b": "leaf again"}))
		snap, err = s.Get(ctx, "a")
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"b": "leaf again"}, snap.Value)
	})

	t.Run("query orders by child and limits to last", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{
			"posts/a": map[string]any{"numUpvotes": 5},
			"posts/b": map[string]any{"numUpvotes": 1},
			"posts/c": map[string]any{"numUpvotes": 9},
			"posts/d": map[string]any{"numUpvotes": 5},
		}))

		snap, err := s.Query(ctx, "posts", Query{OrderByChild: "numUpvotes", LimitToLast: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "d", "c"}, snap.Keys())
		assert.Equal(t, 3, snap.NumChildren())
	})

	t.Run("query by key limits to first", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Update(ctx, map[string]any{
			"idx/b": true, "idx/10": true, "idx/2": true, "idx/a": true,
		}))

		snap, err := s.Query(ctx, "idx", Query{LimitToFirst: 3})
		require.NoError(t, err)
		assert.Equal(t, []string{"2", "10", "a"}, snap.Keys())
	})

	t.Run("watch delivers initial and changed snapshots", func(t *testing.T) {
		s := newStore(t)
		sub, err := s.Watch(ctx, "followers/b", nil)
		require.NoError(t, err)
		defer sub.Close()

		first := nextSnapshot(t, sub)
		assert.False(t, first.Exists())

		require.NoError(t, s.Update(ctx, map[string]any{"followers/b/a": true}))
		second := nextSnapshot(t, sub)
		assert.Equal(t, []string{"a"}, second.Keys())

		require.NoError(t, s.Update(ctx, map[string]any{"followers/c/a": true}))
		assertNoSnapshot(t, sub)

		require.NoError(t, s.Update(ctx, map[string]any{"followers": nil}))
		third := nextSnapshot(t, sub)
		assert.False(t, third.Exists())
	})

	t.Run("watch with query", func(t *testing.T) {
		s := newStore(t)
		q := Query{OrderByChild: "n", LimitToLast: 1}
		sub, err := s.Watch(ctx, "posts", &q)
		require.NoError(t, err)
		defer sub.Close()
		assert.False(t, nextSnapshot(t, sub).Exists())

		require.NoError(t, s.Update(ctx, map[string]any{"posts/x/n": 1, "posts/y/n": 2}))
		assert.Equal(t, []string{"y"}, nextSnapshot(t, sub).Keys())
	})

	t.Run("close ends the stream", func(t *testing.T) {
		s := newStore(t)
		sub, err := s.Watch(ctx, "a", nil)
		require.NoError(t, err)
		nextSnapshot(t, sub)

		sub.Close()
		sub.Close()
		_, ok := <-sub.Updates()
		assert.False(t, ok)
	})

	t.Run("context cancel ends the stream", func(t *testing.T) {
		s := newStore(t)
		wctx, cancel := context.WithCancel(ctx)
		sub, err := s.Watch(wctx, "a", nil)
		require.NoError(t, err)
		nextSnapshot(t, sub)

		cancel()
		select {
		case _, ok := <-sub.Updates():
			assert.False(t, ok)
		case <-time.After(2 * time.Second):
			t.Fatal("subscription not closed after cancel")
		}
	})
}
