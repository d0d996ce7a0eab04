package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DEEPMINE_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 1000, cfg.Mining.TerminalLevel)
	assert.Equal(t, 20, cfg.Mining.Lookahead)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deepmine.yaml")
	data := `
mining:
  terminal_level: 500
  lookahead: 30
  progress_timeout: 3s
server:
  rest_port: 9090
storage:
  backend: redis
  redis_url: redis://localhost:6379/0
  cache:
    enabled: true
    nats_url: nats://127.0.0.1:4222
eventbus:
  url: nats://127.0.0.1:4222
logging:
  level: warn
  components:
    mining: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Mining.TerminalLevel)
	assert.Equal(t, 30, cfg.Mining.Lookahead)
	assert.Equal(t, 3*time.Second, cfg.Mining.ProgressTimeout)
	assert.Equal(t, 4, cfg.Mining.ShaftWidth, "незаданные поля берутся из дефолтов")
	assert.Equal(t, 9090, cfg.Server.GetRESTPort())
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.True(t, cfg.Storage.Cache.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Storage.Cache.TTL, "вложенные дефолты сохраняются")
	assert.Equal(t, "MINING", cfg.EventBus.Stream)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, map[string]string{"mining": "debug"}, cfg.Logging.Components)

	t.Run("Путь из окружения", func(t *testing.T) {
		t.Setenv("DEEPMINE_CONFIG", path)
		fromEnv, err := Load("")
		require.NoError(t, err)
		assert.Equal(t, 500, fromEnv.Mining.TerminalLevel)
	})
}

func TestLoadRejectsInvalidMining(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mining:\n  allocator_spacing: 10\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPortFallback(t *testing.T) {
	s := ServerConfig{}

	t.Setenv("DEEPMINE_REST_PORT", "")
	assert.Equal(t, 8088, s.GetRESTPort())

	t.Setenv("DEEPMINE_REST_PORT", "7000")
	assert.Equal(t, 7000, s.GetRESTPort())

	t.Setenv("DEEPMINE_REST_PORT", "abc")
	assert.Equal(t, 8088, s.GetRESTPort())

	s.RESTPort = 1234
	assert.Equal(t, 1234, s.GetRESTPort())
}

func TestJWTSecretFallback(t *testing.T) {
	a := AuthConfig{}
	t.Setenv("DEEPMINE_JWT_SECRET", "from-env")
	assert.Equal(t, "from-env", a.GetJWTSecret())

	a.JWTSecret = "from-file"
	assert.Equal(t, "from-file", a.GetJWTSecret())
}
