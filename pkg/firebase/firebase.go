package firebase

import (
	"context"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/db"
	"firebase.google.com/go/v4/storage"
	"google.golang.org/api/option"

	"github.com/anonto42/nano-feed/backend/internal/logging"
)

// Options selects the Firebase project resources to open.
type Options struct {
	CredentialsPath string
	DatabaseURL     string
	StorageBucket   string
}

// App holds the initialized Firebase app and its clients. Database and Storage
// are nil when not configured.
type App struct {
	FirebaseApp *firebase.App
	AuthClient  *auth.Client
	Database    *db.Client
	Storage     *storage.Client
}

// InitFirebase initializes the Firebase application and its clients
func InitFirebase(ctx context.Context, opts Options) (*App, error) {
	if opts.CredentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path not provided")
	}
	if _, err := os.Stat(opts.CredentialsPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("firebase credentials file not found at %s", opts.CredentialsPath)
	}

	conf := &firebase.Config{
		DatabaseURL:   opts.DatabaseURL,
		StorageBucket: opts.StorageBucket,
	}
	firebaseApp, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(opts.CredentialsPath))
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	app := &App{FirebaseApp: firebaseApp}
	if app.AuthClient, err = firebaseApp.Auth(ctx); err != nil {
		return nil, fmt.Errorf("error getting firebase auth client: %w", err)
	}
	if opts.DatabaseURL != "" {
		if app.Database, err = firebaseApp.Database(ctx); err != nil {
			return nil, fmt.Errorf("error getting firebase database client: %w", err)
		}
	}
	if opts.StorageBucket != "" {
		if app.Storage, err = firebaseApp.Storage(ctx); err != nil {
			return nil, fmt.Errorf("error getting firebase storage client: %w", err)
		}
	}

	logging.Info().
		Bool("database", app.Database != nil).
		Bool("storage", app.Storage != nil).
		Msg("Firebase app initialized")
	return app, nil
}
