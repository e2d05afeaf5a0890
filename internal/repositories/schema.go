package repositories

import "github.com/anonto42/nano-feed/backend/internal/store"

// Store paths of the feed schema.
const (
	PostsRoot        = "posts"
	UserPostsRoot    = "userPosts"
	FeedRoot         = "userFollowingPosts"
	FollowingRoot    = "following"
	FollowersRoot    = "followers"
	UsersRoot        = "users"
	UpvotesField     = "upvotes"
	NumUpvotesField  = "numUpvotes"
	RemoteURLField   = "remoteURL"
	UserNameField    = "name"
	UserAboutMeField = "aboutMe"
)

func PostPath(postID string) string { return store.Join(PostsRoot, postID) }

func PostUpvotePath(postID, uid string) string {
	return store.Join(PostsRoot, postID, UpvotesField, uid)
}

func PostNumUpvotesPath(postID string) string {
	return store.Join(PostsRoot, postID, NumUpvotesField)
}

func PostRemoteURLPath(postID string) string {
	return store.Join(PostsRoot, postID, RemoteURLField)
}

// UserPostsPath is the creator's own post index, or one entry of it.
func UserPostsPath(uid string, postID ...string) string {
	return store.Join(append([]string{UserPostsRoot, uid}, postID...)...)
}

// FeedPath is the follower's feed index, or one entry of it.
func FeedPath(uid string, postID ...string) string {
	return store.Join(append([]string{FeedRoot, uid}, postID...)...)
}

// FollowingPath is owned by the follower.
func FollowingPath(follower string, followee ...string) string {
	return store.Join(append([]string{FollowingRoot, follower}, followee...)...)
}

// FollowersPath mirrors FollowingPath and is keyed by the followee.
func FollowersPath(followee string, follower ...string) string {
	return store.Join(append([]string{FollowersRoot, followee}, follower...)...)
}

func UserPath(uid string) string { return store.Join(UsersRoot, uid) }

func UserNamePath(uid string) string { return store.Join(UsersRoot, uid, UserNameField) }

func UserAboutMePath(uid string) string { return store.Join(UsersRoot, uid, UserAboutMeField) }
