package client

import (
	"context"
	"encoding/binary"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	config "github.com/xilidan/meetings/config/meet"
	"github.com/xilidan/meetings/gateways/meet"
	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/services/meeting/entity"
)

func newClient(t *testing.T) *Client {
	t.Helper()

	srv, err := meet.New(context.Background(), &config.Config{
		ShutdownTimeout: time.Second,
		RequestTimeout:  5 * time.Second,
		CORSOrigins:     []string{"*"},
		STT:             config.STTConfig{Provider: "mock", Timeout: time.Second},
		LLM:             config.LLMConfig{Provider: "mock", Timeout: time.Second},
		Ingest:          config.IngestConfig{Workers: 1, QueueSize: 4},
		Events:          config.EventsConfig{Buffer: 16, Timeout: time.Second},
	}, logger.Nop())
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close(context.Background())
	})
	return New(ts.URL+"/", "", 5*time.Second)
}

// tone is one second of a 440 Hz sine as big-endian 16-bit PCM.
func tone(rate int) []byte {
	out := make([]byte, 2*rate)
	for i := 0; i < rate; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
		binary.BigEndian.PutUint16(out[2*i:], uint16(v))
	}
	return out
}

func TestClientLifecycle(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	m, err := c.StartMeeting(ctx, "Board Sync", []string{"Ana"})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusActive, m.Status)

	u, err := c.SubmitText(ctx, m.ID, "Ana", "Budget is approved")
	require.NoError(t, err)
	assert.Equal(t, 0, u.Seq)

	res, err := c.SubmitAudio(ctx, m.ID, AudioChunk{Data: tone(16000), MimeType: "audio/l16;rate=16000", Speaker: "Ben"})
	require.NoError(t, err)
	assert.Equal(t, entity.IngestStored, res.Status)
	require.NotNil(t, res.Utterance)
	assert.Equal(t, "Ben", res.Utterance.Speaker)

	list, err := c.ListMeetings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UtteranceCount)

	topics, err := c.Topics(ctx, m.ID, "budget")
	require.NoError(t, err)
	require.Len(t, topics, 1)

	speakers, err := c.Speakers(ctx, m.ID)
	require.NoError(t, err)
	assert.Len(t, speakers, 2)

	answer, err := c.Ask(ctx, m.ID, "Was the budget approved?")
	require.NoError(t, err)
	assert.NotEmpty(t, answer.Answer)

	full, err := c.AskFull(ctx, m.ID, "Was the budget approved?")
	require.NoError(t, err)
	assert.NotEmpty(t, full.Answer)
	require.NotEmpty(t, full.RelevantChunks)
	assert.Equal(t, "Ana", full.RelevantChunks[0].Speaker)

	ended, err := c.EndMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusEnded, ended.Status)

	got, err := c.GetMeeting(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, ended.EndedAt, got.EndedAt)

	analysis, err := c.Analyze(ctx, m.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.Summary)
}

func TestNoAudioMeetingAnswers(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	m, err := c.StartMeeting(ctx, "Silent", nil)
	require.NoError(t, err)
	ended, err := c.EndMeeting(ctx, m.ID)
	require.NoError(t, err)
	require.True(t, ended.NoAudio)

	answer, err := c.AskFull(ctx, m.ID, "What happened?")
	require.NoError(t, err)
	assert.Contains(t, answer.Answer, "didn't receive any audio input")

	analysis, err := c.Analyze(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, "No audio was detected in this meeting.", analysis.Summary)
}

func TestTranscriptETag(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	m, err := c.StartMeeting(ctx, "Polling", nil)
	require.NoError(t, err)
	_, err = c.SubmitText(ctx, m.ID, "Ana", "one")
	require.NoError(t, err)

	view, etag, modified, err := c.Transcript(ctx, m.ID, 0, "")
	require.NoError(t, err)
	require.True(t, modified)
	require.NotEmpty(t, etag)
	assert.Equal(t, 1, view.UtteranceCount)
	assert.Len(t, view.Utterances, 1)

	view, same, modified, err := c.Transcript(ctx, m.ID, 0, etag)
	require.NoError(t, err)
	assert.False(t, modified)
	assert.Nil(t, view)
	assert.Equal(t, etag, same)

	_, err = c.SubmitText(ctx, m.ID, "Ana", "two")
	require.NoError(t, err)

	view, _, modified, err = c.Transcript(ctx, m.ID, 1, etag)
	require.NoError(t, err)
	require.True(t, modified)
	require.Len(t, view.Utterances, 1)
	assert.Equal(t, "two", view.Utterances[0].Text)
}

func TestAPIErrors(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	_, err := c.GetMeeting(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, errors.KindNotFound, apiErr.Kind)
	assert.Contains(t, apiErr.Error(), "missing")

	_, err = c.StartMeeting(ctx, "  ", nil)
	assert.True(t, errors.IsValidation(err))

	_, err = c.SubmitAudio(ctx, "missing", AudioChunk{})
	assert.Error(t, err)

	m, err := c.StartMeeting(ctx, "Closed", nil)
	require.NoError(t, err)
	_, err = c.EndMeeting(ctx, m.ID)
	require.NoError(t, err)
	_, err = c.SubmitText(ctx, m.ID, "Ana", "late")
	assert.True(t, errors.IsInvalidState(err))
}

func TestAPIErrorWithoutEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	err := New(ts.URL, "", time.Second).Health(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Nil(t, apiErr.Unwrap())
}
