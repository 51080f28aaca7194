package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribe(t *testing.T) {
	var (
		gotPath  string
		gotFile  string
		gotModel string
		gotBytes []byte
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotModel = r.FormValue("model")

		f, hdr, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		gotFile = hdr.Filename
		gotBytes, _ = io.ReadAll(f)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "  hello there ", "duration": 2.5})
	}))
	defer srv.Close()

	c := New(Config{APIKey: "test", BaseURL: srv.URL + "/v1"})
	res, err := c.Transcribe(context.Background(), []byte("RIFFdata"), "audio/wav")
	require.NoError(t, err)

	assert.Equal(t, "/v1/audio/transcriptions", gotPath)
	assert.Equal(t, "whisper-1", gotModel)
	assert.Equal(t, "chunk.wav", gotFile)
	assert.Equal(t, []byte("RIFFdata"), gotBytes)
	assert.Equal(t, "hello there", res.Text)
	assert.InDelta(t, 2.5, res.Duration, 0.001)
}

func TestComplete(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":" {\"answer\":\"yes\"} "},"finish_reason":"stop"}]}`)
	}))
	defer srv.Close()

	c := New(Config{Ollama: true, BaseURL: srv.URL, ChatModel: "llama3.1", JSONMode: true})
	out, err := c.Complete(context.Background(), "question")
	require.NoError(t, err)

	assert.Equal(t, `{"answer":"yes"}`, out)
	assert.Equal(t, "llama3.1", body["model"])
	assert.Equal(t, map[string]any{"type": "json_object"}, body["response_format"])
}

func TestCompleteErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":{"message":"overloaded","type":"server_error"}}`)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL + "/v1"})
	_, err := c.Complete(context.Background(), "question")
	assert.Error(t, err)
}

func TestCompleteNoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"1","choices":[]}`)
	}))
	defer srv.Close()

	_, err := New(Config{BaseURL: srv.URL + "/v1"}).Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "no choices")
}

func TestExtension(t *testing.T) {
	tests := map[string]string{
		"audio/webm;codecs=opus": ".webm",
		"audio/ogg":              ".ogg",
		"audio/mpeg":             ".mp3",
		"audio/WAV":              ".wav",
		"":                       ".webm",
		"application/unknown":    ".webm",
	}
	for in, want := range tests {
		assert.Equal(t, want, Extension(in), in)
	}
}
