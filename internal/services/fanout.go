// Package services holds the social graph fan-out: every write that touches
// more than one store path goes through FanoutService.
//
// Fan-outs read a relation set once and write against that snapshot. A
// follower who joins or leaves while a post is created or deleted may miss
// or keep a feed pointer; readers tolerate pointers to missing posts.
package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/anonto42/nano-feed/backend/internal/identity"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/metrics"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// FanoutService performs the multi-path writes of the social graph.
type FanoutService struct {
	store   store.Store
	posts   repositories.PostRepository
	follows repositories.FollowRepository
	users   repositories.UserRepository
	index   repositories.IndexRepository
	newID   func() string
	log     zerolog.Logger
}

// NewFanoutService creates a new FanoutService
func NewFanoutService(s store.Store) *FanoutService {
	return &FanoutService{
		store:   s,
		posts:   repositories.NewStorePostRepository(s),
		follows: repositories.NewStoreFollowRepository(s),
		users:   repositories.NewStoreUserRepository(s),
		index:   repositories.NewStoreIndexRepository(s),
		newID:   store.NewKey,
		log:     logging.Component("fanout"),
	}
}

func caller(ctx context.Context) (string, error) {
	uid := identity.UIDFrom(ctx)
	if uid == "" {
		return "", ErrUnauthenticated
	}
	return uid, nil
}

func (s *FanoutService) write(ctx context.Context, op string, updates map[string]any) error {
	err := s.store.Update(ctx, updates)
	metrics.RecordFanout(op, len(updates), err)
	if err != nil {
		s.log.Error().Err(err).Str("op", op).Int("paths", len(updates)).Msg("fan-out write failed")
		return &WriteError{Op: op, Err: err}
	}
	s.log.Debug().Str("op", op).Int("paths", len(updates)).Msg("fan-out write applied")
	return nil
}

// CreatePost writes the post, the creator's index pointer and one feed
// pointer per current follower in a single update.
func (s *FanoutService) CreatePost(ctx context.Context, title, description string) (*models.CreatePostResponse, error) {
	uid, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	name, err := s.users.GetName(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("read creator name: %w", err)
	}
	followers, err := s.follows.GetFollowerIDs(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("read followers: %w", err)
	}

	id := s.newID()
	updates := map[string]any{
		repositories.PostPath(id): models.Post{
			Title:       strings.TrimSpace(title),
			Description: description,
			CreatedAt:   store.ServerTimestamp,
			Creator:     models.Creator{ID: uid, Name: name},
			NumUpvotes:  0,
		},
		repositories.UserPostsPath(uid, id): true,
	}
	for _, f := range followers {
		updates[repositories.FeedPath(f, id)] = true
	}
	if err := s.write(ctx, "create_post", updates); err != nil {
		return nil, err
	}

	s.log.Info().Str("post_id", id).Str("creator", uid).Int("followers", len(followers)).Msg("post created")
	return &models.CreatePostResponse{ID: id, FannedOutTo: len(followers)}, nil
}

// ToggleUpvote flips the caller's upvote. currentlyUpvoted must be the
// server-confirmed state; the direction is its negation. A value that no
// longer matches the stored flag fails with ErrUpvoteStateChanged. Returns
// the new state.
func (s *FanoutService) ToggleUpvote(ctx context.Context, postID string, currentlyUpvoted bool) (bool, error) {
	uid, err := caller(ctx)
	if err != nil {
		return false, err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return false, fmt.Errorf("read post: %w", err)
	}
	if post == nil {
		return false, ErrPostNotFound
	}
	if stored := post.Upvotes[uid]; stored != currentlyUpvoted {
		return stored, ErrUpvoteStateChanged
	}

	delta, mark := int64(1), any(true)
	if currentlyUpvoted {
		delta, mark = -1, nil
	}
	updates := map[string]any{
		repositories.PostNumUpvotesPath(postID):  store.Increment(delta),
		repositories.PostUpvotePath(postID, uid): mark,
	}
	if err := s.write(ctx, "toggle_upvote", updates); err != nil {
		return currentlyUpvoted, err
	}
	return !currentlyUpvoted, nil
}

// AuthoredPosts loads the post index ToggleFollow needs for the followee.
func (s *FanoutService) AuthoredPosts(ctx context.Context, uid string) (*models.PostIndex, error) {
	ids, err := s.index.AuthoredPostIDs(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("read authored posts: %w", err)
	}
	return &models.PostIndex{UserID: uid, IDs: ids}, nil
}

// ToggleFollow follows or unfollows followee. Both edges are written or
// removed together. A new follow also copies every post in authored into the
// caller's feed; authored may be nil only when the caller already follows.
func (s *FanoutService) ToggleFollow(ctx context.Context, followeeID string, authored *models.PostIndex) (models.FollowResult, error) {
	uid, err := caller(ctx)
	if err != nil {
		return models.FollowResult{}, err
	}
	if uid == followeeID {
		return models.FollowResult{}, ErrSelfFollow
	}
	following, err := s.follows.IsFollowing(ctx, uid, followeeID)
	if err != nil {
		return models.FollowResult{}, fmt.Errorf("read follow edge: %w", err)
	}

	if following {
		updates := map[string]any{
			repositories.FollowingPath(uid, followeeID): nil,
			repositories.FollowersPath(followeeID, uid): nil,
		}
		if err := s.write(ctx, "unfollow", updates); err != nil {
			return models.FollowResult{Following: true}, err
		}
		return models.FollowResult{Following: false}, nil
	}

	if authored == nil {
		return models.FollowResult{}, ErrAuthoredPostsNotLoaded
	}
	if authored.UserID != followeeID {
		return models.FollowResult{}, ErrForeignPostIndex
	}
	updates := map[string]any{
		repositories.FollowingPath(uid, followeeID): true,
		repositories.FollowersPath(followeeID, uid): true,
	}
	for _, id := range authored.IDs {
		updates[repositories.FeedPath(uid, id)] = true
	}
	if err := s.write(ctx, "follow", updates); err != nil {
		return models.FollowResult{}, err
	}
	return models.FollowResult{Following: true, BackfilledN: len(authored.IDs)}, nil
}

// ownPost loads the post and checks the caller created it.
func (s *FanoutService) ownPost(ctx context.Context, postID string) (string, error) {
	uid, err := caller(ctx)
	if err != nil {
		return "", err
	}
	post, err := s.posts.GetPostByID(ctx, postID)
	if err != nil {
		return "", fmt.Errorf("read post: %w", err)
	}
	if post == nil {
		return "", ErrPostNotFound
	}
	if post.Creator.ID != uid {
		return "", ErrNotPostOwner
	}
	return uid, nil
}

// DeletePost removes the post, the creator's pointer and the pointer of every
// current follower in a single update.
func (s *FanoutService) DeletePost(ctx context.Context, postID string) error {
	uid, err := s.ownPost(ctx, postID)
	if err != nil {
		return err
	}
	followers, err := s.follows.GetFollowerIDs(ctx, uid)
	if err != nil {
		return fmt.Errorf("read followers: %w", err)
	}

	updates := map[string]any{
		repositories.PostPath(postID):           nil,
		repositories.UserPostsPath(uid, postID): nil,
	}
	for _, f := range followers {
		updates[repositories.FeedPath(f, postID)] = nil
	}
	if err := s.write(ctx, "delete_post", updates); err != nil {
		return err
	}
	s.log.Info().Str("post_id", postID).Int("followers", len(followers)).Msg("post deleted")
	return nil
}

// CheckOwner fails unless the caller created the post.
func (s *FanoutService) CheckOwner(ctx context.Context, postID string) error {
	_, err := s.ownPost(ctx, postID)
	return err
}

// AttachImage records the download URL of a finished upload.
func (s *FanoutService) AttachImage(ctx context.Context, postID, url string) error {
	if _, err := s.ownPost(ctx, postID); err != nil {
		return err
	}
	return s.write(ctx, "attach_image", map[string]any{
		repositories.PostRemoteURLPath(postID): url,
	})
}

// UpdateProfile saves the caller's settings. Nil fields are left alone and an
// empty about text clears it.
func (s *FanoutService) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) error {
	uid, err := caller(ctx)
	if err != nil {
		return err
	}
	updates := map[string]any{}
	if req.Name != nil {
		updates[repositories.UserNamePath(uid)] = strings.TrimSpace(*req.Name)
	}
	if req.AboutMe != nil {
		var about any
		if v := strings.TrimSpace(*req.AboutMe); v != "" {
			about = v
		}
		updates[repositories.UserAboutMePath(uid)] = about
	}
	if len(updates) == 0 {
		return nil
	}
	return s.write(ctx, "update_profile", updates)
}
