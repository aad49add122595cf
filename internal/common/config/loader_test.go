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
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("PRIVATE_KEY", "")

	path := writeConfig(t, `
app:
  name: mosaic-functions
camunda:
  broker_address: localhost:26500
workers:
  work-verification:
    enabled: true
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Sources.OpenAI.APIKey)
	assert.Equal(t, "gpt-4o", cfg.Sources.OpenAI.Model)
	assert.Equal(t, 40000, cfg.Sources.OpenAI.Timeout)
	assert.Equal(t, "fun-base-sepolia-1", cfg.Functions.DonID)
	assert.Len(t, cfg.Functions.GatewayURLs, 2)
	assert.Equal(t, 2880, cfg.Secrets.ExpirationMinutes)
	assert.Equal(t, 24*time.Hour, cfg.Redis.TTL())

	w := cfg.Workers["work-verification"]
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
	assert.Equal(t, 120000, w.Timeout)
}

func TestLoadFromFile_ExpandsPlaceholders(t *testing.T) {
	t.Setenv("PRICEDB_URL", "http://pricedb.local/graphql")

	path := writeConfig(t, `
sources:
  pricedb:
    url: ${PRICEDB_URL}
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://pricedb.local/graphql", cfg.Sources.PriceDB.URL)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		errMsg string
	}{
		{
			name:   "redis enabled without address",
			body:   "redis:\n  enabled: true\n",
			errMsg: "redis.address is required",
		},
		{
			name:   "tracing enabled without endpoint",
			body:   "tracing:\n  enabled: true\n",
			errMsg: "tracing.jaeger_endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("REDIS_ADDRESS", "")
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestRequireWorkerRuntime(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.RequireWorkerRuntime())

	cfg.Camunda.BrokerAddress = "localhost:26500"
	assert.NoError(t, cfg.RequireWorkerRuntime())
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{}}
	w := GetWorkerConfig(cfg, "unknown")
	assert.True(t, w.Enabled)
	assert.Equal(t, 5, w.MaxJobsActive)
}
