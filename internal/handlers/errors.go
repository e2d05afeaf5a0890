package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/media"
	"github.com/anonto42/nano-feed/backend/internal/services"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// httpError maps service and store failures to HTTP errors.
func httpError(err error) error {
	var we *services.WriteError
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrNotPostOwner):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrInvalidOperation), errors.Is(err, store.ErrInvalidPath):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrPostNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAuthoredPostsNotLoaded), errors.Is(err, services.ErrUpvoteStateChanged):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, media.ErrUnsupportedMedia):
		return echo.NewHTTPError(http.StatusUnsupportedMediaType, err.Error())
	case errors.As(err, &we), errors.Is(err, media.ErrUploadFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		logging.Error().Err(err).Msg("unhandled request error")
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

// limitParam reads ?limit=, falling back to def and capping at max.
func limitParam(c echo.Context, def, max int) (int, error) {
	raw := c.QueryParam("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
	}
	return min(n, max), nil
}
