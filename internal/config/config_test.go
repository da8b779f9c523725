package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_ParsesDurations(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
relay:
  poll_interval: 250ms
  open_cooldown: 45s
consumer:
  base_backoff: 2s
policy:
  duplicate_pan_window: 48h
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Relay.PollInterval.Std())
	assert.Equal(t, 45*time.Second, cfg.Relay.OpenCooldown.Std())
	assert.Equal(t, 2*time.Second, cfg.Consumer.BaseBackoff.Std())
	assert.Equal(t, 48*time.Hour, cfg.Policy.DuplicatePANWindow.Std())
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 8080\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, cfg.Relay.PollInterval.Std())
	assert.Equal(t, 10, cfg.Relay.BatchSize)
	assert.Equal(t, 10, cfg.Relay.MaxRetries)
	assert.Equal(t, 5, cfg.Relay.FailureThreshold)
	assert.Equal(t, 2, cfg.Relay.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cfg.Relay.OpenCooldown.Std())
	assert.Equal(t, 3, cfg.Consumer.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Consumer.BaseBackoff.Std())
	assert.Equal(t, ".dlq", cfg.Kafka.DLQSuffix)
	assert.Equal(t, 24*time.Hour, cfg.Policy.DuplicatePANWindow.Std())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, "postgres:\n  dsn: \"host=localhost\"\ncrypto:\n  key: \"from-file\"\n")
	t.Setenv("POSTGRES_PASSWORD", "s3cret")
	t.Setenv("ENCRYPTION_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "host=localhost password=s3cret", cfg.Postgres.DSN)
	assert.Equal(t, "from-env", cfg.Crypto.Key)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
