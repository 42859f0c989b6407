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
	t.Setenv("NETLOG_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddress)
	assert.Equal(t, 500, cfg.Server.ScatterLimit)
	assert.Equal(t, "csv", cfg.Dataset.Source)
	assert.Equal(t, "random", cfg.Classifier.Kind)
	assert.Equal(t, "overwrite", cfg.Explain.Merge)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Alerts.Enabled)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "netlog.yaml")
	content := `
server:
  httpAddress: ":9000"
  corsOrigins: ["http://localhost:3000"]
dataset:
  source: postgres
  dsn: postgres://netlog@db/netlog
  table: public.connections
classifier:
  kind: static
  label: abnormal
explain:
  merge: concat
cache:
  ttl: 30s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("NETLOG_HTTP_ADDRESS", ":9100")
	t.Setenv("NETLOG_LOG_FORMAT", "json")
	t.Setenv("NETLOG_ALERTS_ENABLED", "1")
	t.Setenv("NETLOG_CORS_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9100", cfg.Server.HTTPAddress, "env wins over file")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "postgres", cfg.Dataset.Source)
	assert.Equal(t, "public.connections", cfg.Dataset.Table)
	assert.Equal(t, "static", cfg.Classifier.Kind)
	assert.Equal(t, "abnormal", cfg.Classifier.Label)
	assert.Equal(t, "concat", cfg.Explain.Merge)
	assert.Equal(t, 30*time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.Logging.JSON)
	assert.True(t, cfg.Alerts.Enabled)
	assert.Equal(t, ":2112", cfg.Server.MetricsAddress, "unset values keep defaults")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
