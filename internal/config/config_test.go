package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Empty(t, cfg.TrustedProxies)
	assert.Equal(t, 150*time.Millisecond, cfg.Timing.MinDelay.Duration())
	assert.Equal(t, int64(1), cfg.RequestCost)
}

func TestParse(t *testing.T) {
	t.Parallel()

	data := []byte(`
server:
  address: ":9090"
  shutdownTimeout: "5s"
log:
  level: debug
  format: console
trustedProxies: "10.0.0.0/8, fd00::/8"
timing:
  minDelay: "200ms"
  maxJitter: "80ms"
store:
  backend: redis
  redis:
    address: "localhost:6379"
    db: 2
requestCost: 3
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Address)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout.Duration())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "10.0.0.0/8, fd00::/8", cfg.TrustedProxies)
	assert.Equal(t, 200*time.Millisecond, cfg.Timing.MinDelay.Duration())
	assert.Equal(t, 80*time.Millisecond, cfg.Timing.MaxJitter.Duration())
	assert.Equal(t, StoreBackendRedis, cfg.Store.Backend)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Address)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, int64(3), cfg.RequestCost)

	// Defaults fill in what the file omits.
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout.Duration())
	assert.Equal(t, uint32(5), cfg.Store.Breaker.Threshold)
}

func TestParseSubstitutesEnvVars(t *testing.T) {
	t.Setenv("AUTHGATE_TEST_REDIS_PASSWORD", "s3cret")

	data := []byte(`
store:
  backend: redis
  redis:
    address: "${AUTHGATE_TEST_REDIS_ADDR:-localhost:6379}"
    password: "${AUTHGATE_TEST_REDIS_PASSWORD}"
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Address)
	assert.Equal(t, "s3cret", cfg.Store.Redis.Password)
}

func TestParseInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"malformed yaml", "server: ["},
		{"bad duration", "timing:\n  minDelay: \"not-a-duration\""},
		{"empty address", "server:\n  address: \"\""},
		{"unknown backend", "store:\n  backend: dynamo"},
		{"redis backend without address", "store:\n  backend: redis"},
		{"negative cost", "requestCost: -1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Parse([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":7777\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.Address)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestWatcherReloads(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":7777\"\n"), 0o600))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":8888\"\n"), 0o600))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, ":8888", cfg.Server.Address)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}

func TestWatcherKeepsOldConfigOnBadReload(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "authgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  address: \":7777\"\n"), 0o600))

	reloaded := make(chan *Config, 4)
	w, err := NewWatcher(path, func(cfg *Config) {
		reloaded <- cfg
	}, WithDebounceDelay(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start())
	defer func() { _ = w.Stop() }()

	// Invalid content must not reach the callback.
	require.NoError(t, os.WriteFile(path, []byte("server: ["), 0o600))

	select {
	case cfg := <-reloaded:
		t.Fatalf("unexpected reload with invalid config: %+v", cfg)
	case <-time.After(300 * time.Millisecond):
	}
}
