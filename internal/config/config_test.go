package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
app:
  name: keiba-engine
  environment: development
  log_level: debug
database:
  host: localhost
  port: 5432
  name: keiba
  user: keiba
  password: secret
  ssl_mode: disable
  max_connections: 10
  max_idle_connections: 5
data:
  raw_dir: /tmp/raw
  artifact_path: /tmp/artifacts.json
datasource:
  base_url: https://data.example.jp
  timeout_seconds: 15
  rate_limit: 1.5
model_service:
  http_address: http://localhost:8000
  request_timeout_seconds: 60
history:
  lookup_ttl_seconds: 300
  lookup_max_size: 5000
metrics:
  enabled: true
  port: 9100
predict:
  power_exponent: 4
`

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "keiba-engine", cfg.App.Name)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "/tmp/raw", cfg.Data.RawDir)
	assert.Equal(t, 1.5, cfg.Datasource.RateLimit)
	assert.Equal(t, 60, cfg.ModelService.RequestTimeoutSeconds)
	assert.Equal(t, 9100, cfg.Metrics.Port)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	// Fields absent from the file fall back to defaults.
	assert.Equal(t, 5, cfg.Datasource.MaxRetries)
	assert.Equal(t, "0 7 * * SAT,SUN", cfg.Scheduler.CronExpression)
	assert.Equal(t, 4, cfg.Predict.PowerExponent)
}

func TestLoadConfigExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "hunter2")

	content := strings.Replace(minimalConfig, "password: secret", "password: ${TEST_DB_PASSWORD}", 1)

	cfg, err := Load(writeConfig(t, content))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", cfg.Database.Password)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadEnvironment(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	cfg.App.Environment = "outer-space"
	assert.Error(t, Validate(cfg))
}

func TestValidateProductionRequiresSSL(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	cfg.App.Environment = "production"
	assert.Error(t, Validate(cfg))

	cfg.Database.SSLMode = "require"
	assert.NoError(t, Validate(cfg))
}

func TestValidateSchedulerNeedsCron(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	cfg.Scheduler.Enabled = true
	cfg.Scheduler.CronExpression = ""
	assert.Error(t, Validate(cfg))
}
