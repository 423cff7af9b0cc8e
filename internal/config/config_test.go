package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.Equal(t, 3*time.Second, cfg.Watcher.Debounce)
	require.Equal(t, "sqlite", cfg.DB.Driver)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9090
db:
  path: /var/lib/simcatalog/catalog.db
watcher:
  input_dir: /data/raw
  debounce: 5s
  workers: 4
notify:
  kafka_brokers: ["kafka-1:9092"]
`), 0o644))

	t.Setenv("SIMCATALOG_CONFIG_PATH", path)
	t.Setenv("SIMCATALOG_WATCHER_WORKERS", "8")
	t.Setenv("SIMCATALOG_QUERY_TIMEOUT", "2s")
	t.Setenv("SIMCATALOG_KAFKA_BROKERS", "a:9092, b:9092")
	t.Setenv("SIMCATALOG_WATCHER_MIN_SIZE_BYTES", "512")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "/var/lib/simcatalog/catalog.db", cfg.DB.Path)
	require.Equal(t, "/data/raw", cfg.Watcher.InputDir)
	require.Equal(t, 5*time.Second, cfg.Watcher.Debounce)
	require.Equal(t, 8, cfg.Watcher.Workers, "env overrides file")
	require.Equal(t, 2*time.Second, cfg.Query.Timeout)
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.Notify.KafkaBrokers)
	require.Equal(t, int64(512), cfg.Watcher.MinSizeBytes)
	require.Equal(t, "data/quarantine", cfg.Watcher.QuarantineDir, "unset keys keep defaults")
}

func TestLoadInvalidEnv(t *testing.T) {
	t.Setenv("SIMCATALOG_SERVER_PORT", "eighty")
	_, err := Load()
	require.ErrorContains(t, err, "SIMCATALOG_SERVER_PORT")
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("SIMCATALOG_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.ErrorContains(t, err, "read config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.DB.Driver = "mysql" }, "unknown db.driver"},
		{"postgres without url", func(c *Config) { c.DB.Driver = "postgres" }, "db.url"},
		{"no workers", func(c *Config) { c.Watcher.Workers = 0 }, "watcher.workers"},
		{"zero debounce", func(c *Config) { c.Watcher.Debounce = 0 }, "watcher.debounce"},
		{"inverted backoff", func(c *Config) { c.Watcher.BackoffMax = time.Millisecond }, "backoff"},
		{"missing quarantine dir", func(c *Config) { c.Watcher.QuarantineDir = "" }, "watcher.quarantine_dir"},
		{"kafka without topic", func(c *Config) {
			c.Notify.KafkaBrokers = []string{"k:9092"}
			c.Notify.KafkaTopic = ""
		}, "kafka_topic"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
	require.NoError(t, Default().Validate())
}
