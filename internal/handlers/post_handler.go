package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/media"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/models"
	"github.com/anonto42/nano-feed/backend/internal/services"
)

const maxImageBytes = 10 << 20

// PostHandler handles HTTP requests related to posts
type PostHandler struct {
	fanout   *services.FanoutService
	watcher  *feed.Watcher
	uploader media.Uploader
}

// NewPostHandler creates a new PostHandler. uploader may be nil when no
// storage bucket is configured.
func NewPostHandler(fanout *services.FanoutService, watcher *feed.Watcher, uploader media.Uploader) *PostHandler {
	return &PostHandler{fanout: fanout, watcher: watcher, uploader: uploader}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.POST("/posts", h.CreatePost)
	g.GET("/posts/:id", h.GetPost)
	g.DELETE("/posts/:id", h.DeletePost)
	g.POST("/posts/:id/image", h.UploadImage)
}

// PostResponse is an article with the caller's upvote state
type PostResponse struct {
	Article models.Article     `json:"article"`
	Upvote  models.UpvoteState `json:"upvote"`
}

// CreatePost creates a new post and fans it out to the creator's followers
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if err := c.Validate(req); err != nil {
		return err
	}

	res, err := h.fanout.CreatePost(c.Request().Context(), req.Title, req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, res)
}

// GetPost retrieves a post by ID
func (h *PostHandler) GetPost(c echo.Context) error {
	postID := c.Param("id")
	article, ok, err := h.watcher.ReadPost(c.Request().Context(), postID, models.LayoutVertical)
	if err != nil {
		return httpError(err)
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Post not found")
	}

	return c.JSON(http.StatusOK, PostResponse{
		Article: article,
		Upvote: models.UpvoteState{
			PostID:     postID,
			Upvoted:    article.UpvotedBy(middleware.UID(c)),
			Known:      true,
			NumUpvotes: article.NumUpvotes,
			CountKnown: true,
		},
	})
}

// DeletePost deletes a post owned by the caller
func (h *PostHandler) DeletePost(c echo.Context) error {
	if err := h.fanout.DeletePost(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// UploadImage stores the "image" form file and attaches its URL to the post.
// A failed upload leaves the post without an image.
func (h *PostHandler) UploadImage(c echo.Context) error {
	if h.uploader == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Image storage is not configured")
	}
	ctx := c.Request().Context()
	postID := c.Param("id")
	if err := h.fanout.CheckOwner(ctx, postID); err != nil {
		return httpError(err)
	}

	fh, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "image file is required")
	}
	if fh.Size > maxImageBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "image is too large")
	}
	file, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read image")
	}
	defer file.Close()

	url, err := h.uploader.Upload(ctx, postID, file, fh.Header.Get(echo.HeaderContentType))
	if err != nil {
		logging.Warn().Err(err).Str("post_id", postID).Msg("image upload failed")
		return httpError(err)
	}
	if err := h.fanout.AttachImage(ctx, postID, url); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"remoteURL": url})
}

func nonNil(list []models.Article) []models.Article {
	if list == nil {
		return []models.Article{}
	}
	return list
}
