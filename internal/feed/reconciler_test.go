package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

func ids(list []models.Article) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}

func TestUpsertPolicies(t *testing.T) {
	var list []models.Article
	list = Upsert(list, models.Article{ID: "a"}, Append)
	list = Upsert(list, models.Article{ID: "b"}, Append)
	list = Upsert(list, models.Article{ID: "c"}, Prepend)
	assert.Equal(t, []string{"c", "a", "b"}, ids(list))
}

func TestUpsertMergesInPlace(t *testing.T) {
	list := []models.Article{
		{ID: "a", Title: "first"},
		{ID: "b", Title: "second", Extra: map[string]any{"pinned": true}},
		{ID: "c"},
	}
	out := Upsert(list, models.Article{ID: "b", Title: "edited", NumUpvotes: 4, Extra: map[string]any{"mood": "ok"}}, Prepend)

	assert.Equal(t, []string{"a", "b", "c"}, ids(out))
	assert.Equal(t, "edited", out[1].Title)
	assert.Equal(t, int64(4), out[1].NumUpvotes)
	assert.Equal(t, map[string]any{"pinned": true, "mood": "ok"}, out[1].Extra)
	assert.Equal(t, "second", list[1].Title, "input must not change")
}

func TestUpsertIdempotent(t *testing.T) {
	seq := []struct {
		a models.Article
		p Policy
	}{
		{models.Article{ID: "x", NumUpvotes: 1}, Append},
		{models.Article{ID: "y"}, Prepend},
		{models.Article{ID: "x", NumUpvotes: 2}, Prepend},
		{models.Article{ID: "z"}, Append},
		{models.Article{ID: "y", Title: "t"}, Append},
	}
	apply := func(list []models.Article) []models.Article {
		for _, s := range seq {
			list = Upsert(list, s.a, s.p)
		}
		return list
	}

	once := apply(nil)
	twice := apply(once)
	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"y", "x", "z"}, ids(once))

	seen := map[string]int{}
	for _, a := range twice {
		seen[a.ID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}

func TestRemove(t *testing.T) {
	list := []models.Article{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	assert.Equal(t, []string{"a", "c"}, ids(Remove(list, "b")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(Remove(list, "zz")))
	assert.Equal(t, []string{"a", "b", "c"}, ids(list))
}

func TestApplySnapshotSkipsNullChildren(t *testing.T) {
	m := NewMaterializer("https://cdn.example", Transform{})
	snap := store.Snapshot{Key: "posts", Value: map[string]any{
		"p1": map[string]any{"title": "one"},
		"p2": nil,
		"p3": map[string]any{"title": "three"},
	}}
	list := ApplySnapshot(nil, snap, m, models.LayoutHorizontal, Append)
	require.Len(t, list, 2)
	assert.Equal(t, []string{"p1", "p3"}, ids(list))

	again := ApplySnapshot(list, snap, m, models.LayoutHorizontal, Append)
	assert.Equal(t, list, again)
}
