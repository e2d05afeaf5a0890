package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
)

const maxFeedLimit = 100

// FeedHandler serves the following and popular feeds
type FeedHandler struct {
	watcher      *feed.Watcher
	defaultLimit int
}

// NewFeedHandler creates a new FeedHandler
func NewFeedHandler(watcher *feed.Watcher, defaultLimit int) *FeedHandler {
	return &FeedHandler{watcher: watcher, defaultLimit: min(defaultLimit, maxFeedLimit)}
}

// RegisterFeedRoutes registers feed-related routes
func (h *FeedHandler) RegisterFeedRoutes(g *echo.Group) {
	g.GET("/feed/following", h.GetFollowingFeed)
	g.GET("/feed/popular", h.GetPopularFeed)
}

// GetFollowingFeed returns the newest posts of the users the caller follows
func (h *FeedHandler) GetFollowingFeed(c echo.Context) error {
	limit, err := limitParam(c, h.defaultLimit, maxFeedLimit)
	if err != nil {
		return err
	}
	articles, err := h.watcher.ReadFollowing(c.Request().Context(), middleware.UID(c), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"articles": nonNil(articles)})
}

// GetPopularFeed returns the most upvoted posts
func (h *FeedHandler) GetPopularFeed(c echo.Context) error {
	limit, err := limitParam(c, h.defaultLimit, maxFeedLimit)
	if err != nil {
		return err
	}
	articles, err := h.watcher.ReadPopular(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"articles": nonNil(articles)})
}
