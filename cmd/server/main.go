package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/anonto42/nano-feed/backend/internal/feed"
	"github.com/anonto42/nano-feed/backend/internal/logging"
	"github.com/anonto42/nano-feed/backend/internal/media"
	"github.com/anonto42/nano-feed/backend/internal/metrics"
	"github.com/anonto42/nano-feed/backend/internal/router"
	"github.com/anonto42/nano-feed/backend/internal/store"
	"github.com/anonto42/nano-feed/backend/pkg/config"
	"github.com/anonto42/nano-feed/backend/pkg/firebase"
	"github.com/anonto42/nano-feed/backend/validators"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Firebase
	fb, err := firebase.InitFirebase(ctx, firebase.Options{
		CredentialsPath: cfg.FirebaseCredentialsPath,
		DatabaseURL:     cfg.FirebaseDatabaseURL,
		StorageBucket:   cfg.FirebaseStorageBucket,
	})
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize Firebase")
	}

	st, err := openStore(ctx, cfg, fb)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.StoreBackend).Msg("Failed to open store")
	}
	defer st.Close()

	var uploader media.Uploader
	if fb.Storage != nil {
		if uploader, err = media.NewStorageUploader(fb.Storage, cfg.FirebaseStorageBucket); err != nil {
			logging.Fatal().Err(err).Msg("Failed to open storage bucket")
		}
	}

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()
	router.SetupMiddleware(e)
	router.SetupRoutes(e, router.Dependencies{
		Store: st,
		Materializer: feed.NewMaterializer(cfg.ImageKitEndpoint, feed.Transform{
			Width:       cfg.ImageWidth,
			AspectRatio: cfg.ImageAspectRatio,
			Height:      cfg.ImageHeight,
		}, cfg.CloudinaryResultEndpoint),
		Verifier:  fb.AuthClient,
		Uploader:  uploader,
		FeedLimit: cfg.FeedLimit,
	})

	if cfg.MetricsPort != "" {
		go serveMetrics(cfg.MetricsPort)
	}

	go func() {
		logging.Info().Str("port", cfg.Port).Str("backend", cfg.StoreBackend).Msg("Starting server")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("Server stopped")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

func openStore(ctx context.Context, cfg *config.Config, fb *firebase.App) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirebase:
		if fb.Database == nil {
			return nil, errors.New("FIREBASE_DATABASE_URL is not set")
		}
		return store.NewFirebaseStore(fb.Database, cfg.WatchPollInterval), nil
	case config.BackendPostgres:
		db, err := config.InitPostgres(cfg.PostgresUrl)
		if err != nil {
			return nil, err
		}
		return store.NewSQLStore(db, store.SQLOptions{PollInterval: cfg.WatchPollInterval, Serializable: true})
	case config.BackendMongo:
		client, err := config.InitMongo(cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		return store.NewMongoStore(client, cfg.MongoDatabase, cfg.WatchPollInterval), nil
	case config.BackendMemory:
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func serveMetrics(port string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: ":" + port, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logging.Info().Str("port", port).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error().Err(err).Msg("Metrics server stopped")
	}
}
