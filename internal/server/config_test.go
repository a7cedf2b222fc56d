package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := NewConfig()
	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, int64(65536), cfg.MaxMessageSize)
	require.Equal(t, "KEEP_ALIVE_SESSION", cfg.BypassToken)
	require.Positive(t, cfg.RateLimit.Burst)
	require.Positive(t, cfg.RateLimit.RefillInterval)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://example.com,https://other.example")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "7")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("SESSION_BYPASS_TOKEN", "LET_ME_IN")

	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Port)
	require.Equal(t, []string{"https://example.com", "https://other.example"}, cfg.AllowedOrigins)
	require.Equal(t, int64(1024), cfg.MaxMessageSize)
	require.Equal(t, 7, cfg.RateLimit.Burst)
	require.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	require.Equal(t, "LET_ME_IN", cfg.BypassToken)
}

func TestSetConfigSanitizesInvalidValues(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	SetConfig(&Config{Port: "", MaxMessageSize: -1, BypassToken: ""})

	cfg := currentConfig()
	require.Equal(t, ":8080", cfg.Port)
	require.Equal(t, int64(65536), cfg.MaxMessageSize)
	require.Equal(t, "KEEP_ALIVE_SESSION", cfg.BypassToken)
	require.Positive(t, cfg.RateLimit.Burst)
}

func TestOriginAllowList(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"HTTPS://Share.Example.COM", "not a url"}
	SetConfig(cfg)

	req, err := http.NewRequest(http.MethodGet, "/ws", http.NoBody)
	require.NoError(t, err)

	req.Header.Set("Origin", "https://share.example.com")
	require.True(t, isOriginAllowed(req))

	req.Header.Set("Origin", "https://evil.example.com")
	require.False(t, isOriginAllowed(req))

	req.Header.Del("Origin")
	require.False(t, isOriginAllowed(req))
}

func TestOriginWildcardAllowsEverything(t *testing.T) {
	t.Cleanup(func() { SetConfig(nil) })

	cfg := NewConfig()
	cfg.AllowedOrigins = []string{"*"}
	SetConfig(cfg)

	req, err := http.NewRequest(http.MethodGet, "/ws", http.NoBody)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://anything.example")
	require.True(t, isOriginAllowed(req))
}

func TestRateLimiterRefills(t *testing.T) {
	rl := newRateLimiter(2, 40*time.Millisecond)

	require.True(t, rl.allow())
	require.True(t, rl.allow())
	require.False(t, rl.allow())

	time.Sleep(60 * time.Millisecond)
	require.True(t, rl.allow())
}
