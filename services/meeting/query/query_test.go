package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerr "github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/session"
	"github.com/xilidan/meetings/services/meeting/storage"
)

type stubLLM struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubLLM) Generate(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func newEngine(t *testing.T, llm *stubLLM, lines ...[2]string) (*Engine, *session.Manager, string) {
	t.Helper()
	ctx := context.Background()

	sessions := session.New(storage.New(), logger.Nop())
	meeting, err := sessions.Start(ctx, "Board Sync", nil)
	require.NoError(t, err)

	for _, l := range lines {
		_, err := sessions.AppendText(ctx, meeting.ID, entity.Utterance{Speaker: l[0], Text: l[1], Source: entity.SourceText})
		require.NoError(t, err)
	}
	return New(Config{}, sessions, llm, logger.Nop()), sessions, meeting.ID
}

var boardSync = [][2]string{
	{"Ana", "We should cut the marketing budget"},
	{"Ben", "I disagree, we need it for Q4"},
	{"Ana", "Then let's trim travel instead"},
	{"Cy", "The marketing budget pays for the Q4 launch"},
}

func TestSemanticEmptyTranscript(t *testing.T) {
	llm := &stubLLM{reply: `{"answer":"x"}`}
	e, _, id := newEngine(t, llm)

	a, err := e.Semantic(context.Background(), id, "What was decided?")
	require.NoError(t, err)
	assert.Equal(t, InsufficientAnswer, a.Answer)
	assert.NotNil(t, a.RelevantChunks)
	assert.Empty(t, a.RelevantChunks)
	assert.Zero(t, llm.calls())

	again, err := e.Semantic(context.Background(), id, "What was decided?")
	require.NoError(t, err)
	assert.Equal(t, a, again)
}

func TestSemanticValidation(t *testing.T) {
	e, _, id := newEngine(t, &stubLLM{})

	_, err := e.Semantic(context.Background(), id, "   ")
	assert.True(t, domainerr.IsValidation(err))

	_, err = e.Semantic(context.Background(), "missing", "anything")
	assert.True(t, domainerr.IsNotFound(err))
}

func TestSemanticRanksAndAnswers(t *testing.T) {
	llm := &stubLLM{reply: "```json\n{\"answer\": \"Ana proposed cutting the marketing budget.\"}\n```"}
	e, _, id := newEngine(t, llm, boardSync...)

	a, err := e.Semantic(context.Background(), id, "marketing budget")
	require.NoError(t, err)

	assert.Equal(t, "Ana proposed cutting the marketing budget.", a.Answer)
	assert.False(t, a.Degraded)
	require.Len(t, a.RelevantChunks, 2)
	assert.Equal(t, 0, a.RelevantChunks[0].Seq)
	assert.Equal(t, 3, a.RelevantChunks[1].Seq)

	require.Equal(t, 1, llm.calls())
	assert.Contains(t, llm.prompts[0], "Question: marketing budget")
	assert.Contains(t, llm.prompts[0], "Ana: We should cut the marketing budget")
	assert.NotContains(t, llm.prompts[0], "trim travel")
}

func TestSemanticFallsBackToRecentContext(t *testing.T) {
	llm := &stubLLM{reply: "Nobody mentioned that."}
	e, _, id := newEngine(t, llm, boardSync...)

	a, err := e.Semantic(context.Background(), id, "weather forecast")
	require.NoError(t, err)
	assert.Equal(t, "Nobody mentioned that.", a.Answer)
	assert.Len(t, a.RelevantChunks, len(boardSync))
}

func TestSemanticDegradesOnModelFailure(t *testing.T) {
	e, _, id := newEngine(t, &stubLLM{err: errors.New("timeout")}, boardSync...)

	a, err := e.Semantic(context.Background(), id, "budget")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, a.Answer)
	assert.True(t, a.Degraded)
	assert.NotEmpty(t, a.RelevantChunks)

	e2, _, id2 := newEngine(t, &stubLLM{reply: `{"summary": "wrong shape"}`}, boardSync...)
	a, err = e2.Semantic(context.Background(), id2, "budget")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, a.Answer)
	assert.True(t, a.Degraded)
}

func TestSemanticCachesPerTranscriptState(t *testing.T) {
	llm := &stubLLM{reply: `{"answer": "Cut travel."}`}
	e, sessions, id := newEngine(t, llm, boardSync...)
	ctx := context.Background()

	_, err := e.Semantic(ctx, id, "What about travel?")
	require.NoError(t, err)
	a, err := e.Semantic(ctx, id, "  what ABOUT   travel? ")
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls())
	assert.Equal(t, "what ABOUT   travel?", a.Question)

	_, err = sessions.AppendText(ctx, id, entity.Utterance{Speaker: "Ben", Text: "Travel is fine", Source: entity.SourceText})
	require.NoError(t, err)
	_, err = e.Semantic(ctx, id, "What about travel?")
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls())
}

func TestTopic(t *testing.T) {
	e, _, id := newEngine(t, &stubLLM{}, boardSync...)
	ctx := context.Background()

	got, err := e.Topic(ctx, id, "Marketing Budget")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Seq)
	assert.Equal(t, 3, got[1].Seq)

	got, err = e.Topic(ctx, id, "Q4")
	require.NoError(t, err)
	seqs := make([]int, 0, len(got))
	for _, u := range got {
		seqs = append(seqs, u.Seq)
	}
	assert.Equal(t, []int{1, 3}, seqs)

	again, err := e.Topic(ctx, id, "Q4")
	require.NoError(t, err)
	assert.Equal(t, got, again)

	none, err := e.Topic(ctx, id, "weather")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	_, err = e.Topic(ctx, id, "")
	assert.True(t, domainerr.IsValidation(err))
	_, err = e.Topic(ctx, "missing", "budget")
	assert.True(t, domainerr.IsNotFound(err))
}

func TestSpeakers(t *testing.T) {
	e, sessions, id := newEngine(t, &stubLLM{}, boardSync...)
	ctx := context.Background()

	require.NoError(t, sessions.SetSentiments(ctx, id, map[int]entity.Sentiment{
		0: entity.SentimentNeutral,
		1: entity.SentimentNegative,
		2: entity.SentimentPositive,
	}))

	got, err := e.Speakers(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []entity.SpeakerSummary{
		{Speaker: "Ana", Utterances: 2, Positive: 1, Neutral: 1},
		{Speaker: "Ben", Utterances: 1, Negative: 1},
		{Speaker: "Cy", Utterances: 1, Pending: 1},
	}, got)

	_, err = e.Speakers(ctx, "missing")
	assert.True(t, domainerr.IsNotFound(err))
}

func TestRankPhraseBonus(t *testing.T) {
	content := []entity.Utterance{
		{Seq: 0, Text: "budget for marketing"},
		{Seq: 1, Text: "the marketing budget"},
	}
	ranked := rank(content, "marketing budget")
	require.Len(t, ranked, 2)
	assert.Equal(t, 1, ranked[0].u.Seq)
	assert.True(t, strings.Contains(ranked[0].u.Text, "marketing budget"))
	assert.Greater(t, ranked[0].score, ranked[1].score)
}

func TestAskUsesWholeTranscript(t *testing.T) {
	llm := &stubLLM{reply: `{"answer": "They agreed to trim travel."}`}
	e, _, id := newEngine(t, llm, boardSync...)
	ctx := context.Background()

	a, err := e.Ask(ctx, id, "marketing budget")
	require.NoError(t, err)
	assert.Equal(t, "They agreed to trim travel.", a.Answer)
	assert.False(t, a.Degraded)
	require.Len(t, a.RelevantChunks, 2)

	require.Equal(t, 1, llm.calls())
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "Meeting: Board Sync")
	assert.Contains(t, prompt, "Speakers: Ana, Ben, Cy")
	assert.Contains(t, prompt, "trim travel")
	assert.Contains(t, prompt, "Question: marketing budget")

	_, err = e.Ask(ctx, id, "Marketing budget")
	require.NoError(t, err)
	assert.Equal(t, 1, llm.calls())

	_, err = e.Semantic(ctx, id, "marketing budget")
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls(), "ask and semantic answers are cached separately")

	_, err = e.Ask(ctx, id, "")
	assert.True(t, domainerr.IsValidation(err))
	_, err = e.Ask(ctx, "missing", "anything")
	assert.True(t, domainerr.IsNotFound(err))
}

func TestAskDegradesOnModelFailure(t *testing.T) {
	llm := &stubLLM{err: errors.New("timeout")}
	e, _, id := newEngine(t, llm, boardSync...)

	a, err := e.Ask(context.Background(), id, "budget")
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, a.Answer)
	assert.True(t, a.Degraded)

	_, err = e.Ask(context.Background(), id, "budget")
	require.NoError(t, err)
	assert.Equal(t, 2, llm.calls())
}

func TestNoAudioMeetingAnswers(t *testing.T) {
	llm := &stubLLM{reply: `{"answer":"x"}`}
	e, sessions, id := newEngine(t, llm)
	ctx := context.Background()

	ended, err := sessions.End(ctx, id)
	require.NoError(t, err)
	require.True(t, ended.NoAudio)

	a, err := e.Semantic(ctx, id, "What was decided?")
	require.NoError(t, err)
	assert.Equal(t, NoAudioAnswer, a.Answer)
	assert.Empty(t, a.RelevantChunks)

	a, err = e.Ask(ctx, id, "What was decided?")
	require.NoError(t, err)
	assert.Equal(t, NoAudioAskAnswer, a.Answer)
	assert.Zero(t, llm.calls())
}
