package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  port: 9090
  host: "0.0.0.0"

database:
  url: "postgres://localhost/eventcrm_test"

sparkpost:
  api_key: "test-api-key"
  timeout_seconds: 45

send:
  per_second: 10
  inter_send_delay_ms: 100
  fallback_order: ["sparkpost", "ses"]

scoring:
  checkin_weight: 15
  open_weight: 3
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "postgres://localhost/eventcrm_test", cfg.Database.URL)
	assert.Equal(t, "test-api-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 45, cfg.SparkPost.TimeoutSeconds)
	assert.Equal(t, 10, cfg.Send.PerSecond)
	assert.Equal(t, 100, cfg.Send.InterSendDelayMS)
	assert.Equal(t, []string{"sparkpost", "ses"}, cfg.Send.FallbackOrder)
	assert.Equal(t, 15.0, cfg.Scoring.CheckinWeight)
	assert.Equal(t, 3.0, cfg.Scoring.OpenWeight)

	// Defaults fill in everything not in the file
	assert.Equal(t, "https://api.sparkpost.com/api/v1", cfg.SparkPost.BaseURL)
	assert.Equal(t, "us-east-1", cfg.SES.Region)
	assert.Equal(t, 20.0, cfg.Scoring.RecencyBonus7d)
	assert.Equal(t, "tracking:events", cfg.Tracking.QueueKey)
}

func TestLoadDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 0\n"), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 50, cfg.Send.PerSecond)
	assert.Equal(t, []string{"ses", "sparkpost"}, cfg.Send.FallbackOrder)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/crm")
	t.Setenv("SPARKPOST_API_KEY", "env-key")
	t.Setenv("SPARKPOST_TIMEOUT_SECONDS", "5")
	t.Setenv("TRACKING_QUEUE_KEY", "env:tracking")
	t.Setenv("PORT", "7070")

	cfg, err := LoadFromEnv("")
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/crm", cfg.Database.URL)
	assert.Equal(t, "env-key", cfg.SparkPost.APIKey)
	assert.Equal(t, 5, cfg.SparkPost.TimeoutSeconds)
	assert.Equal(t, "env:tracking", cfg.Tracking.QueueKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}
