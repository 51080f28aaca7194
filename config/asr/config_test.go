package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("ASR_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50051, cfg.Port)
	assert.Equal(t, 25<<20, cfg.MaxAudioSize)
	assert.Equal(t, "openai", cfg.Backend.Provider)
	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey)
	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
}
