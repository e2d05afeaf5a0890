package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

func postSnap(id string, rec map[string]any) store.Snapshot {
	return store.Snapshot{Key: id, Value: rec}
}

func TestMaterializeRewritesStorageOrigin(t *testing.T) {
	m := NewMaterializer("https://cdn.example/", Transform{})
	a, ok := m.Materialize(postSnap("p1", map[string]any{
		"title":     "hello",
		"remoteURL": "https://firebasestorage.googleapis.com/X",
		"createdAt": float64(1700000000000),
		"creator":   map[string]any{"id": "u1", "name": "Ann"},
	}), "")
	require.True(t, ok)

	assert.Equal(t, "p1", a.ID)
	assert.Equal(t, "https://cdn.example/X", a.Image)
	assert.Equal(t, "https://firebasestorage.googleapis.com/X", a.RemoteURL)
	assert.Equal(t, int64(1700000000000), a.Timestamp)
	assert.Equal(t, models.LayoutHorizontal, a.Type)
	assert.Equal(t, models.Creator{ID: "u1", Name: "Ann"}, a.Creator)
}

func TestMaterializeTransformSegment(t *testing.T) {
	tests := []struct {
		name string
		tr   Transform
		want string
	}{
		{"width", Transform{Width: 400}, "https://cdn.example/tr:w-400/X"},
		{"aspect ratio", Transform{AspectRatio: "4-3", Height: 300}, "https://cdn.example/tr:ar-4-3,h-300/X"},
		{"width wins", Transform{Width: 200, AspectRatio: "1-1", Height: 50}, "https://cdn.example/tr:w-200/X"},
		{"incomplete aspect ratio", Transform{AspectRatio: "4-3"}, "https://cdn.example/X"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMaterializer("https://cdn.example", tt.tr)
			assert.Equal(t, tt.want, m.RewriteURL("https://firebasestorage.googleapis.com/X"))
		})
	}
}

func TestMaterializeExtraOrigins(t *testing.T) {
	m := NewMaterializer("https://cdn.example", Transform{}, "https://res.cloudinary.com/demo", "")
	assert.Equal(t, "https://cdn.example/image/upload/a.jpg", m.RewriteURL("https://res.cloudinary.com/demo/image/upload/a.jpg"))
	assert.Equal(t, "https://other.example/a.jpg", m.RewriteURL("https://other.example/a.jpg"))
	assert.Equal(t, "https://firebasestorage.googleapis.com.evil/a", m.RewriteURL("https://firebasestorage.googleapis.com.evil/a"))
}

func TestMaterializeWithoutRemoteURL(t *testing.T) {
	m := NewMaterializer("https://cdn.example/", Transform{})
	a, ok := m.Materialize(postSnap("p1", map[string]any{"title": "t"}), models.LayoutVertical)
	require.True(t, ok)
	assert.Empty(t, a.Image)
	assert.Equal(t, models.LayoutVertical, a.Type)
	assert.Zero(t, a.Timestamp)
}

func TestMaterializeAbsent(t *testing.T) {
	rec := map[string]any{"title": "t"}

	_, ok := NewMaterializer("", Transform{}).Materialize(postSnap("p1", rec), "")
	assert.False(t, ok, "missing CDN origin")

	_, ok = NewMaterializer("https://cdn.example", Transform{}).Materialize(postSnap("", rec), "")
	assert.False(t, ok, "missing key")

	_, ok = NewMaterializer("https://cdn.example", Transform{}).Materialize(postSnap("p1", nil), "")
	assert.False(t, ok, "missing record")

	_, ok = NewMaterializer("https://cdn.example", Transform{}).Materialize(store.Snapshot{Key: "p1", Value: true}, "")
	assert.False(t, ok, "index pointer instead of record")
}

func TestMaterializeCoercesFields(t *testing.T) {
	m := NewMaterializer("https://cdn.example", Transform{})
	a, ok := m.Materialize(postSnap("p1", map[string]any{
		"createdAt":  "1700000000000",
		"numUpvotes": float64(3),
		"upvotes":    map[string]any{"u1": true, "u2": false},
		"location":   "Dhaka",
	}), "")
	require.True(t, ok)
	assert.Equal(t, int64(1700000000000), a.Timestamp)
	assert.Equal(t, int64(3), a.NumUpvotes)
	assert.True(t, a.UpvotedBy("u1"))
	assert.False(t, a.UpvotedBy("u2"))
	assert.Equal(t, map[string]any{"location": "Dhaka"}, a.Extra)

	a, _ = m.Materialize(postSnap("p2", map[string]any{"createdAt": "soon"}), "")
	assert.Zero(t, a.Timestamp)
}
