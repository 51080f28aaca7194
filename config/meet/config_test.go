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
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "mock", cfg.STT.Provider)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.Equal(t, 60*time.Second, cfg.STT.Timeout)
	assert.Equal(t, 4, cfg.Ingest.Workers)
	assert.Equal(t, 25<<20, cfg.Ingest.MaxChunkBytes)
	assert.Equal(t, 20, cfg.Meeting.SentimentBatchSize)
	assert.Equal(t, time.Duration(0), cfg.Meeting.IdleTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Equal(t, "events", cfg.Redis.ChannelPrefix)
}

func TestLoadPrefixedEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "9090")
	t.Setenv("STT_PROVIDER", "grpc")
	t.Setenv("STT_ASR_ADDRESS", "asr:50051")
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_MODEL", "llama3.1")
	t.Setenv("MEETING_IDLE_TIMEOUT", "15m")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/meetings")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CORS_ORIGINS", "http://a.test,http://b.test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "grpc", cfg.STT.Provider)
	assert.Equal(t, "asr:50051", cfg.STT.ASRAddress)
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, "llama3.1", cfg.LLM.Model)
	assert.Equal(t, 15*time.Minute, cfg.Meeting.IdleTimeout)
	assert.Equal(t, "postgres://localhost/meetings", cfg.Postgres.DSN)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "meet.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 7070
llm:
  provider: openai
  model: gpt-4o
webhook:
  url: http://hooks.test/meetings
`), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("LLM_MODEL", "gpt-4o-mini")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, "http://hooks.test/meetings", cfg.Webhook.URL)
	assert.Equal(t, 5*time.Second, cfg.Webhook.Timeout)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
