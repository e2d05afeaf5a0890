package handlers

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/services"
)

// UpvoteHandler toggles upvotes. At most one toggle per (post, user) is in
// flight; the direction always comes from the stored state.
type UpvoteHandler struct {
	fanout         *services.FanoutService
	postRepository repositories.PostRepository
	inflight       sync.Map
}

// NewUpvoteHandler creates a new UpvoteHandler
func NewUpvoteHandler(fanout *services.FanoutService, postRepo repositories.PostRepository) *UpvoteHandler {
	return &UpvoteHandler{fanout: fanout, postRepository: postRepo}
}

// RegisterUpvoteRoutes registers upvote-related routes
func (h *UpvoteHandler) RegisterUpvoteRoutes(g *echo.Group) {
	g.POST("/posts/:id/upvote", h.ToggleUpvote)
}

// ToggleUpvote flips the caller's upvote on a post
func (h *UpvoteHandler) ToggleUpvote(c echo.Context) error {
	ctx := c.Request().Context()
	postID := c.Param("id")
	uid := middleware.UID(c)

	key := postID + "/" + uid
	if _, busy := h.inflight.LoadOrStore(key, struct{}{}); busy {
		return echo.NewHTTPError(http.StatusConflict, "Upvote already in progress")
	}
	defer h.inflight.Delete(key)

	post, err := h.postRepository.GetPostByID(ctx, postID)
	if err != nil {
		return httpError(err)
	}
	if post == nil {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	upvoted, err := h.fanout.ToggleUpvote(ctx, postID, post.Upvotes[uid])
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]any{"post_id": postID, "upvoted": upvoted})
}
