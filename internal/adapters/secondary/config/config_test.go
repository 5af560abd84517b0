package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"HERMES_CONFIG", "HERMES_HTTP_PORT", "PORT", "HERMES_GRPC_PORT",
	"HERMES_BROKER_HOST", "HERMES_BROKER_PORT", "HERMES_CLIENT_ID", "HERMES_TOPICS",
	"HERMES_QOS", "HERMES_KEEPALIVE", "HERMES_CONNECT_TIMEOUT", "HERMES_BACKOFF_BASE",
	"HERMES_BACKOFF_MAX", "HERMES_HISTORY_SIZE", "HERMES_EVENT_BUFFER",
	"HERMES_MONITOR_INTERVAL", "HERMES_LOG_LEVEL",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.HTTPPort)
	assert.Equal(t, ":50051", cfg.GRPCPort)
	assert.Equal(t, "test.mosquitto.org", cfg.Broker.Host)
	assert.Equal(t, 1883, cfg.Broker.Port)
	assert.Equal(t, []string{"data/Raspy", "data/ESP32"}, cfg.Broker.Topics)
	assert.Equal(t, 60*time.Second, cfg.Broker.KeepAlive)
	assert.Equal(t, 50, cfg.HistorySize)
	assert.True(t, strings.HasPrefix(cfg.Broker.ClientID, "hermes-bridge-"))
	assert.Equal(t, "tcp://test.mosquitto.org:1883", cfg.Broker.BrokerURL())
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HERMES_BROKER_HOST", "localhost")
	t.Setenv("HERMES_BROKER_PORT", "1884")
	t.Setenv("HERMES_TOPICS", " a/b , c/d ,")
	t.Setenv("HERMES_HISTORY_SIZE", "3")
	t.Setenv("HERMES_BACKOFF_MAX", "5s")
	t.Setenv("HERMES_CLIENT_ID", "bridge-1")
	t.Setenv("HERMES_QOS", "1")
	t.Setenv("HERMES_LOG_LEVEL", "debug")
	t.Setenv("PORT", "8081")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.HTTPPort)
	assert.Equal(t, "tcp://localhost:1884", cfg.Broker.BrokerURL())
	assert.Equal(t, []string{"a/b", "c/d"}, cfg.Broker.Topics)
	assert.Equal(t, 3, cfg.HistorySize)
	assert.Equal(t, 5*time.Second, cfg.Broker.BackoffMax)
	assert.Equal(t, "bridge-1", cfg.Broker.ClientID)
	assert.Equal(t, byte(1), cfg.Broker.QoS)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
}

func TestLoadYAMLFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "bridge.yaml")
	content := `
http_port: ":9000"
history_size: 10
broker:
  host: broker.local
  port: 8883
  topics: [sensors/one, sensors/two, sensors/three]
  keepalive: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("HERMES_CONFIG", path)
	t.Setenv("HERMES_HISTORY_SIZE", "20")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.HTTPPort)
	assert.Equal(t, 20, cfg.HistorySize, "env wins over file")
	assert.Equal(t, "broker.local", cfg.Broker.Host)
	assert.Equal(t, 8883, cfg.Broker.Port)
	assert.Len(t, cfg.Broker.Topics, 3)
	assert.Equal(t, 30*time.Second, cfg.Broker.KeepAlive)
	assert.Equal(t, 10*time.Second, cfg.Broker.ConnectTimeout, "defaults survive a partial file")
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HERMES_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad number", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HERMES_HISTORY_SIZE", "lots")
		_, err := Load()
		assert.ErrorContains(t, err, "HERMES_HISTORY_SIZE")
	})

	t.Run("bad duration", func(t *testing.T) {
		clearEnv(t)
		t.Setenv("HERMES_KEEPALIVE", "forever")
		_, err := Load()
		assert.ErrorContains(t, err, "HERMES_KEEPALIVE")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty host", func(c *Config) { c.Broker.Host = "" }, "broker host"},
		{"port range", func(c *Config) { c.Broker.Port = 70000 }, "out of range"},
		{"no topics", func(c *Config) { c.Broker.Topics = nil }, "at least one topic"},
		{"wildcard", func(c *Config) { c.Broker.Topics = []string{"data/#"} }, "wildcards"},
		{"duplicate", func(c *Config) { c.Broker.Topics = []string{"a", "a"} }, "twice"},
		{"qos", func(c *Config) { c.Broker.QoS = 3 }, "qos"},
		{"backoff", func(c *Config) { c.Broker.BackoffMax = time.Millisecond }, "backoff"},
		{"history", func(c *Config) { c.HistorySize = 0 }, "history size"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}

	assert.NoError(t, Default().Validate())
}
