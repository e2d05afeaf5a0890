package models

// Creator is the author snapshot embedded in a post.
type Creator struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Post is the record stored at posts/{id}.
type Post struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	CreatedAt   any             `json:"createdAt"` // server timestamp on write, epoch millis on read
	Creator     Creator         `json:"creator"`
	NumUpvotes  int64           `json:"numUpvotes"`
	Upvotes     map[string]bool `json:"upvotes,omitempty"`
	RemoteURL   string          `json:"remoteURL,omitempty"` // set once the image upload completes
}

// CreatePostRequest defines the request body for creating a new post
type CreatePostRequest struct {
	Title       string `json:"title" validate:"required,min=1,max=120"`
	Description string `json:"description" validate:"max=2000"`
}

// CreatePostResponse is returned after the fan-out write succeeded
type CreatePostResponse struct {
	ID          string `json:"id"`
	FannedOutTo int    `json:"fanned_out_to"`
}
