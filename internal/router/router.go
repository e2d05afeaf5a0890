package router

import (
	"github.com/labstack/echo/v4"
	eMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/handlers"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/media"
	"github.com/anonto42/nano-feed/backend/internal/metrics"
	"github.com/anonto42/nano-feed/backend/internal/middleware"
	"github.com/anonto42/nano-feed/backend/internal/repositories"
	"github.com/anonto42/nano-feed/backend/internal/services"
	"github.com/anonto42/nano-feed/backend/internal/store"
)

// Dependencies is everything the HTTP surface needs. It replaces any
// process-wide application state.
type Dependencies struct {
	Store        store.Store
	Materializer *feed.Materializer
	Verifier     middleware.TokenVerifier
	Uploader     media.Uploader // nil disables image uploads
	FeedLimit    int
}

// SetupMiddleware configures global Echo middleware
func SetupMiddleware(e *echo.Echo) {
	e.Use(eMiddleware.Recover())
	e.Use(eMiddleware.CORS())
	e.Use(middleware.RequestLogger())
	e.Use(metrics.Middleware())
	logging.Debug().Msg("Global middleware configured.")
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, deps Dependencies) {
	e.GET("/health", handlers.HealthCheck)

	fanout := services.NewFanoutService(deps.Store)
	watcher := feed.NewWatcher(deps.Store, deps.Materializer)
	postRepo := repositories.NewStorePostRepository(deps.Store)

	// --- Protected routes (require a Firebase ID token) ---
	api := e.Group("/api/v1")
	api.Use(middleware.FirebaseAuthMiddleware(deps.Verifier))

	handlers.NewFeedHandler(watcher, deps.FeedLimit).RegisterFeedRoutes(api)
	handlers.NewPostHandler(fanout, watcher, deps.Uploader).RegisterPostRoutes(api)
	handlers.NewUpvoteHandler(fanout, postRepo).RegisterUpvoteRoutes(api)
	handlers.NewFollowHandler(fanout).RegisterFollowRoutes(api)
	handlers.NewUserHandler(deps.Store, watcher, fanout, deps.FeedLimit).RegisterProfileRoutes(api)
	handlers.NewStreamHandler(deps.Store, watcher, fanout, deps.FeedLimit).RegisterStreamRoutes(api)

	logging.Info().Int("routes", len(e.Routes())).Msg("All routes configured.")
}
