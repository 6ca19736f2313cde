package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finresearch/agentflow/config"
)

func TestLoadAppliesDefaultsWhenEnvUnset(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.BackendMemory, cfg.CheckpointBackend)
	assert.Equal(t, config.BackendMemory, cfg.ArtifactBackend)
	assert.Equal(t, 256, cfg.EventBufferHighWater)
	assert.Equal(t, 30*time.Second, cfg.NodeDefaultTimeout)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.False(t, cfg.LogLLMPayloads)
	assert.Contains(t, cfg.LogRedactKeys, "authorization")
	assert.Contains(t, cfg.LogRedactKeys, "api_key")
}

func TestLoadReadsOverridesFromEnv(t *testing.T) {
	t.Setenv("CHECKPOINT_BACKEND", "sqlite")
	t.Setenv("EVENT_BUFFER_HIGH_WATER", "1024")
	t.Setenv("NODE_DEFAULT_TIMEOUT", "45s")
	t.Setenv("LOG_LLM_PAYLOADS", "true")
	t.Setenv("LOG_REDACT_KEYS", "foo, Bar ,")
	t.Setenv("LISTEN_ADDR", ":9090")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.BackendSQLite, cfg.CheckpointBackend)
	assert.Equal(t, 1024, cfg.EventBufferHighWater)
	assert.Equal(t, 45*time.Second, cfg.NodeDefaultTimeout)
	assert.True(t, cfg.LogLLMPayloads)
	assert.Equal(t, []string{"foo", "bar"}, cfg.LogRedactKeys)
	assert.Equal(t, ":9090", cfg.ListenAddr)
}

func TestLoadRejectsInvalidBackendAndLogFormat(t *testing.T) {
	t.Setenv("CHECKPOINT_BACKEND", "dynamo")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CheckpointBackend")

	t.Setenv("CHECKPOINT_BACKEND", "memory")
	t.Setenv("LOG_FORMAT", "xml")

	_, err = config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogFormat")
}

func TestLoadFallsBackOnUnparsableOverrides(t *testing.T) {
	t.Setenv("EVENT_BUFFER_HIGH_WATER", "not-a-number")
	t.Setenv("NODE_DEFAULT_TIMEOUT", "not-a-duration")
	t.Setenv("LOG_LLM_PAYLOADS", "not-a-bool")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 256, cfg.EventBufferHighWater)
	assert.Equal(t, 30*time.Second, cfg.NodeDefaultTimeout)
	assert.False(t, cfg.LogLLMPayloads)
}
