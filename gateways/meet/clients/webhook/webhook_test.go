package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/services/meeting/events"
)

func TestPublish(t *testing.T) {
	received := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get(TokenHeader))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		received <- body
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := New(srv.URL, "secret", time.Second, logger.Nop())
	defer c.Close()

	e := events.New(events.TypeMeetingEnded, "m1")
	e.UtteranceCount = 3
	require.NoError(t, c.Publish(context.Background(), e))

	body := <-received
	assert.Equal(t, events.TypeMeetingEnded, body["event_type"])
	assert.Equal(t, "m1", body["meeting_id"])
	assert.EqualValues(t, 3, body["utterance_count"])
}

func TestPublishNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := New(srv.URL, "", time.Second, logger.Nop()).Publish(context.Background(), events.New(events.TypeMeetingStarted, "m1"))
	assert.ErrorContains(t, err, "502")
}
