package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/profile"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/services"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

const profileReadyTimeout = 5 * time.Second

// UserHandler handles profile requests
type UserHandler struct {
	store            store.Store
	watcher          *feed.Watcher
	fanout           *services.FanoutService
	userRepository   repositories.UserRepository
	followRepository repositories.FollowRepository
	feedLimit        int
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(s store.Store, watcher *feed.Watcher, fanout *services.FanoutService, feedLimit int) *UserHandler {
	return &UserHandler{
		store:            s,
		watcher:          watcher,
		fanout:           fanout,
		userRepository:   repositories.NewStoreUserRepository(s),
		followRepository: repositories.NewStoreFollowRepository(s),
		feedLimit:        feedLimit,
	}
}

// RegisterProfileRoutes registers profile routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/users/:id/profile", h.GetProfile)
	g.PUT("/profile", h.UpdateProfile)
}

// ProfileResponse is a profile with the caller's follow state
type ProfileResponse struct {
	Profile models.ProfileView `json:"profile"`
	Follow  models.FollowState `json:"follow"`
}

// GetProfile returns the first complete profile aggregate
func (h *UserHandler) GetProfile(c echo.Context) error {
	targetID := c.Param("id")
	uid := middleware.UID(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), profileReadyTimeout)
	defer cancel()

	agg, err := profile.Open(ctx, h.store, h.watcher, targetID, h.feedLimit)
	if err != nil {
		return httpError(err)
	}
	defer agg.Close()

	select {
	case <-agg.Ready():
	case <-ctx.Done():
		return echo.NewHTTPError(http.StatusGatewayTimeout, "Profile did not load in time")
	}

	follow := models.FollowState{TargetID: targetID, Visible: uid != targetID, Known: true}
	if follow.Visible {
		if follow.Following, err = h.followRepository.IsFollowing(ctx, uid, targetID); err != nil {
			return httpError(err)
		}
	}
	return c.JSON(http.StatusOK, ProfileResponse{Profile: agg.View(), Follow: follow})
}

// UpdateProfile updates the authenticated user's name and about text
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := h.fanout.UpdateProfile(ctx, req); err != nil {
		return httpError(err)
	}
	user, err := h.userRepository.GetUser(ctx, middleware.UID(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, user)
}
