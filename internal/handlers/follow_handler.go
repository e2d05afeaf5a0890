package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/services"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	fanout *services.FanoutService
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(fanout *services.FanoutService) *FollowHandler {
	return &FollowHandler{fanout: fanout}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.ToggleFollow)
}

// ToggleFollow follows the user, or unfollows if already following. The
// target's authored posts are loaded first so a new follow can backfill them.
func (h *FollowHandler) ToggleFollow(c echo.Context) error {
	ctx := c.Request().Context()
	targetID := c.Param("id")

	authored, err := h.fanout.AuthoredPosts(ctx, targetID)
	if err != nil {
		return httpError(err)
	}
	res, err := h.fanout.ToggleFollow(ctx, targetID, authored)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}
