package meet

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/xilidan/meetings/config/meet"
	"github.com/xilidan/meetings/pkg/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:            0,
		ShutdownTimeout: time.Second,
		RequestTimeout:  5 * time.Second,
		CORSOrigins:     []string{"*"},
		STT:             config.STTConfig{Provider: "mock", Timeout: time.Second},
		LLM:             config.LLMConfig{Provider: "mock", Timeout: time.Second},
		Ingest:          config.IngestConfig{Workers: 1, QueueSize: 4},
		Events:          config.EventsConfig{Buffer: 16, Timeout: time.Second},
	}
}

func TestServerWiring(t *testing.T) {
	srv, err := New(context.Background(), testConfig(), logger.Nop())
	require.NoError(t, err)
	defer srv.Close(context.Background())

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/api/v1/health")
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = http.Post(ts.URL+"/api/v1/meetings", "application/json", strings.NewReader(`{"name":"Wiring"}`))
	require.NoError(t, err)
	res.Body.Close()
	assert.Equal(t, http.StatusCreated, res.StatusCode)

	res, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)

	buf := new(strings.Builder)
	_, err = io.Copy(buf, res.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "meetings_active 1")
}

func TestUnknownProviders(t *testing.T) {
	cfg := testConfig()
	cfg.STT.Provider = "carrier-pigeon"
	_, err := New(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "unknown stt provider")

	cfg = testConfig()
	cfg.LLM.Provider = "oracle"
	_, err = New(context.Background(), cfg, logger.Nop())
	assert.ErrorContains(t, err, "unknown llm provider")
}
