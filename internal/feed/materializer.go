// Package feed turns post records into display-ready articles and keeps
// ordered article lists in step with live store snapshots.
package feed

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// FirebaseStorageOrigin is where uploaded images live before CDN rewriting.
const FirebaseStorageOrigin = "https://firebasestorage.googleapis.com"

// Transform is an optional image transformation inserted as the first path
// segment of the rewritten URL. Width wins over AspectRatio+Height.
type Transform struct {
	Width       int
	AspectRatio string // "4-3"
	Height      int
}

func (t Transform) segment() string {
	switch {
	case t.Width > 0:
		return fmt.Sprintf("tr:w-%d", t.Width)
	case t.AspectRatio != "" && t.Height > 0:
		return fmt.Sprintf("tr:ar-%s,h-%d", t.AspectRatio, t.Height)
	default:
		return ""
	}
}

// Materializer builds articles from post snapshots.
type Materializer struct {
	// CDNOrigin replaces the storage origin of image URLs. Without it no
	// article is produced.
	CDNOrigin string

	// SourceOrigins are the storage origins to rewrite. Defaults to the
	// Firebase Storage origin.
	SourceOrigins []string

	Transform Transform
}

// NewMaterializer returns a Materializer rewriting Firebase Storage URLs and,
// when set, the extra origins.
func NewMaterializer(cdnOrigin string, t Transform, extraOrigins ...string) *Materializer {
	origins := []string{FirebaseStorageOrigin}
	for _, o := range extraOrigins {
		if o != "" {
			origins = append(origins, o)
		}
	}
	return &Materializer{CDNOrigin: cdnOrigin, SourceOrigins: origins, Transform: t}
}

var knownFields = map[string]struct{}{
	"title": {}, "description": {}, "createdAt": {}, "creator": {},
	"numUpvotes": {}, "upvotes": {}, "remoteURL": {},
}

// Materialize converts one post snapshot. It reports false when the snapshot
// has no key, holds no record, or the CDN origin is unset.
func (m *Materializer) Materialize(snap store.Snapshot, layout models.Layout) (models.Article, bool) {
	if snap.Key == "" || m.CDNOrigin == "" {
		return models.Article{}, false
	}
	rec, ok := snap.Value.(map[string]any)
	if !ok || len(rec) == 0 {
		return models.Article{}, false
	}
	if layout == "" {
		layout = models.LayoutHorizontal
	}

	a := models.Article{
		ID:          snap.Key,
		Title:       stringField(rec, "title"),
		Description: stringField(rec, "description"),
		NumUpvotes:  int64(toNumber(rec["numUpvotes"])),
		RemoteURL:   stringField(rec, "remoteURL"),
		Timestamp:   int64(toNumber(rec["createdAt"])),
		Type:        layout,
	}
	if c, ok := rec["creator"].(map[string]any); ok {
		a.Creator = models.Creator{ID: stringField(c, "id"), Name: stringField(c, "name")}
	}
	if u, ok := rec["upvotes"].(map[string]any); ok {
		a.Upvotes = make(map[string]bool, len(u))
		for uid, v := range u {
			if b, _ := v.(bool); b {
				a.Upvotes[uid] = true
			}
		}
	}
	if a.RemoteURL != "" {
		a.Image = m.RewriteURL(a.RemoteURL)
	}
	for k, v := range rec {
		if _, known := knownFields[k]; known {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]any)
		}
		a.Extra[k] = v
	}
	return a, true
}

// RewriteURL swaps the first matching storage origin for the CDN origin.
// URLs from other hosts are returned unchanged.
func (m *Materializer) RewriteURL(raw string) string {
	origins := m.SourceOrigins
	if len(origins) == 0 {
		origins = []string{FirebaseStorageOrigin}
	}
	for _, origin := range origins {
		origin = strings.TrimSuffix(origin, "/")
		rest, ok := strings.CutPrefix(raw, origin)
		if !ok || (rest != "" && rest[0] != '/' && rest[0] != '?') {
			continue
		}
		out := strings.TrimSuffix(m.CDNOrigin, "/")
		if seg := m.Transform.segment(); seg != "" {
			out += "/" + seg
		}
		return out + rest
	}
	return raw
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// toNumber coerces a stored value to a number; anything unparsable is 0.
func toNumber(v any) float64 {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0
		}
		return t
	case int64:
		return float64(t)
	case int:
		return float64(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
