package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Store backends selectable with STORE_BACKEND.
const (
	BackendFirebase = "firebase"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	Port        string `validate:"required,numeric"`
	Env         string `validate:"required"`
	MetricsPort string `validate:"omitempty,numeric"`

	StoreBackend      string        `validate:"oneof=firebase postgres mongo memory"`
	WatchPollInterval time.Duration `validate:"gte=0"`
	FeedLimit         int           `validate:"min=1,max=500"`

	FirebaseCredentialsPath string `validate:"required_if=StoreBackend firebase"`
	FirebaseDatabaseURL     string `validate:"required_if=StoreBackend firebase"`
	FirebaseStorageBucket   string
	PostgresUrl             string `validate:"required_if=StoreBackend postgres"`
	MongoURI                string `validate:"required_if=StoreBackend mongo"`
	MongoDatabase           string `validate:"required_if=StoreBackend mongo"`

	ImageKitEndpoint         string `validate:"required,url"`
	CloudinaryResultEndpoint string `validate:"omitempty,url"`
	ImageWidth               int    `validate:"min=0"`
	ImageAspectRatio         string `validate:"omitempty,excludesall=/"`
	ImageHeight              int    `validate:"min=0"`

	LogLevel  string `validate:"oneof=trace debug info warn error"`
	LogFormat string `validate:"oneof=json console"`
}

// Load reads .env (if present) and the environment, then validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", "9090"),

		StoreBackend: getEnv("STORE_BACKEND", BackendFirebase),

		FirebaseCredentialsPath: getEnv("FIREBASE_CREDENTIALS_PATH", "./firebase_credentials.json"),
		FirebaseDatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
		FirebaseStorageBucket:   getEnv("FIREBASE_STORAGE_BUCKET", ""),
		PostgresUrl:             getEnv("POSTGRES_URL", ""),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDatabase:           getEnv("MONGO_DATABASE", "socialmedia"),

		ImageKitEndpoint:         getEnv("IMAGEKIT_ENDPOINT", ""),
		CloudinaryResultEndpoint: getEnv("CLOUDINARY_RESULT_ENDPOINT", ""),
		ImageAspectRatio:         getEnv("IMAGE_ASPECT_RATIO", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	var err error
	if cfg.WatchPollInterval, err = getDuration("WATCH_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, err
	}
	if cfg.FeedLimit, err = getInt("FEED_LIMIT", 20); err != nil {
		return nil, err
	}
	if cfg.ImageWidth, err = getInt("IMAGE_WIDTH", 0); err != nil {
		return nil, err
	}
	if cfg.ImageHeight, err = getInt("IMAGE_HEIGHT", 0); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
