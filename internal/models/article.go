package models

import "maps"

// Layout is a presentation hint carried through to the client.
type Layout string

const (
	LayoutHorizontal Layout = "horizontal"
	LayoutVertical   Layout = "vertical"
)

// Article is the display-ready view of a post. It is derived on every read
// and never persisted.
type Article struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Creator     Creator         `json:"creator"`
	NumUpvotes  int64           `json:"numUpvotes"`
	Upvotes     map[string]bool `json:"upvotes,omitempty"`
	RemoteURL   string          `json:"remoteURL,omitempty"`
	Image       string          `json:"image,omitempty"`
	Timestamp   int64           `json:"timestamp"`
	Type        Layout          `json:"type"`

	// Extra holds record fields the article does not model.
	Extra map[string]any `json:"extra,omitempty"`
}

// Merge overlays newer onto a. Every modelled field comes from newer; Extra
// keys from a survive unless newer sets them.
func (a Article) Merge(newer Article) Article {
	out := newer
	if len(a.Extra) > 0 || len(newer.Extra) > 0 {
		out.Extra = make(map[string]any, len(a.Extra)+len(newer.Extra))
		maps.Copy(out.Extra, a.Extra)
		maps.Copy(out.Extra, newer.Extra)
	}
	return out
}

// UpvotedBy reports whether uid appears in the upvote set.
func (a Article) UpvotedBy(uid string) bool {
	return a.Upvotes[uid]
}
