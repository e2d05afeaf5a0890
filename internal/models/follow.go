package models

// PostIndex is the list of post ids a user authored, as loaded from
// userPosts/{uid}. A nil *PostIndex means "not loaded yet".
type PostIndex struct {
	UserID string
	IDs    []string
}

// FollowResult reports the edge state after a toggle.
type FollowResult struct {
	Following   bool `json:"following"`
	BackfilledN int  `json:"backfilled"`
}
