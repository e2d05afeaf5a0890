package models

// UpvoteState is the caller-scoped view of one post's upvotes.
type UpvoteState struct {
	PostID     string `json:"post_id"`
	Upvoted    bool   `json:"upvoted"`
	Known      bool   `json:"known"`
	Pending    bool   `json:"pending"`
	NumUpvotes int64  `json:"numUpvotes"`
	CountKnown bool   `json:"count_known"`
}

// FollowState is the caller-scoped view of one follow edge. Visible is false
// when the caller looks at their own profile.
type FollowState struct {
	TargetID  string `json:"target_id"`
	Visible   bool   `json:"visible"`
	Following bool   `json:"following"`
	Known     bool   `json:"known"`
}
