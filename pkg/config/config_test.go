package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendMemory)
	t.Setenv("IMAGEKIT_ENDPOINT", "https://ik.imagekit.io/demo")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20, cfg.FeedLimit)
	assert.Equal(t, 2*time.Second, cfg.WatchPollInterval)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", BackendPostgres)
	t.Setenv("POSTGRES_URL", "postgres://feed@localhost/feed")
	t.Setenv("IMAGEKIT_ENDPOINT", "https://ik.imagekit.io/demo")
	t.Setenv("IMAGE_WIDTH", "400")
	t.Setenv("WATCH_POLL_INTERVAL", "500ms")
	t.Setenv("FEED_LIMIT", "50")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 400, cfg.ImageWidth)
	assert.Equal(t, 500*time.Millisecond, cfg.WatchPollInterval)
	assert.Equal(t, 50, cfg.FeedLimit)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing cdn endpoint", map[string]string{"STORE_BACKEND": BackendMemory}},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis", "IMAGEKIT_ENDPOINT": "https://cdn.example"}},
		{"postgres without url", map[string]string{"STORE_BACKEND": BackendPostgres, "IMAGEKIT_ENDPOINT": "https://cdn.example"}},
		{"bad feed limit", map[string]string{"STORE_BACKEND": BackendMemory, "IMAGEKIT_ENDPOINT": "https://cdn.example", "FEED_LIMIT": "ten"}},
		{"firebase without database url", map[string]string{"STORE_BACKEND": BackendFirebase, "IMAGEKIT_ENDPOINT": "https://cdn.example"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("IMAGEKIT_ENDPOINT", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
