package models

// ProfileView is the aggregated profile screen.
type ProfileView struct {
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	AboutMe      string    `json:"aboutMe,omitempty"`
	NumPosts     int       `json:"numPosts"`
	NumFollowers int       `json:"numFollowers"`
	NumFollowing int       `json:"numFollowing"`
	Posts        []Article `json:"posts"`
}
