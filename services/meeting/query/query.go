package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/textutil"
	"github.com/xilidan/meetings/services/meeting/analysis"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/observability"
	"github.com/xilidan/meetings/services/meeting/provider"
	"github.com/xilidan/meetings/services/meeting/session"
)

const (
	InsufficientAnswer = "Insufficient information: the transcript is empty, so this question cannot be answered yet."
	FallbackAnswer     = "I could not find enough detail in the transcript to answer that."

	// NoAudioAnswer and NoAudioAskAnswer replace InsufficientAnswer once a
	// meeting has ended flagged no-audio.
	NoAudioAnswer    = "I didn't receive any audio input for this meeting, so I can't answer questions about the discussion."
	NoAudioAskAnswer = "I didn't receive any audio input for this meeting, so I can't provide any details."

	DefaultTopK = 5

	// phraseBonus is added when the whole normalized query occurs in the text.
	phraseBonus = 2.0
)

const answerPrompt = `You answer questions about a meeting using only the transcript excerpts below.
If the excerpts do not contain the answer, say so.

Excerpts:
%s
Question: %s

Respond with STRICT JSON only, no markdown, no explanations:
{"answer": "your answer"}`

const askPrompt = `You are a board meeting assistant. Answer only from the meeting transcript below.
If the transcript does not contain the answer, say so.

Meeting: %s
Participants: %s
Status: %s
Speakers: %s

Transcript:
%s
Question: %s

Respond with STRICT JSON only, no markdown, no explanations:
{"answer": "your answer"}`

const (
	modeSemantic = "semantic"
	modeAsk      = "ask"
)

type Config struct {
	TopK int
}

type qaKey struct {
	mode      string
	meetingID string
	count     int
	question  string
}

// Engine answers ad hoc questions over a transcript snapshot.
type Engine struct {
	sessions *session.Manager
	llm      provider.Generator
	metrics  *observability.Metrics
	topK     int
	log      *slog.Logger

	mu    sync.RWMutex
	cache map[qaKey]entity.QueryAnswer
}

type Option func(*Engine)

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(cfg Config, sessions *session.Manager, llm provider.Generator, log *slog.Logger, opts ...Option) *Engine {
	topK := cfg.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	e := &Engine{
		sessions: sessions,
		llm:      llm,
		topK:     topK,
		log:      log.With(slog.String("component", "query_engine")),
		cache:    make(map[qaKey]entity.QueryAnswer),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scored struct {
	u     entity.Utterance
	score float64
}

// Semantic answers question from the top-K lexically relevant utterances.
// When nothing overlaps, the most recent utterances are used as context.
func (e *Engine) Semantic(ctx context.Context, meetingID, question string) (*entity.QueryAnswer, error) {
	return e.answer(ctx, modeSemantic, meetingID, question, func(_ *entity.Meeting, content, relevant []entity.Utterance, q string) string {
		return fmt.Sprintf(answerPrompt, analysis.FormatTranscript(relevant), q)
	})
}

// Ask answers question with the whole transcript and the meeting metadata as
// context. RelevantChunks carries the top-K utterances as supporting evidence.
func (e *Engine) Ask(ctx context.Context, meetingID, question string) (*entity.QueryAnswer, error) {
	return e.answer(ctx, modeAsk, meetingID, question, func(m *entity.Meeting, content, _ []entity.Utterance, q string) string {
		return fmt.Sprintf(askPrompt,
			m.Name,
			joinOrNone(m.Participants),
			m.Status,
			joinOrNone(speakersOf(content)),
			analysis.FormatTranscript(content),
			q,
		)
	})
}

type promptFunc func(m *entity.Meeting, content, relevant []entity.Utterance, question string) string

func (e *Engine) answer(ctx context.Context, mode, meetingID, question string, build promptFunc) (*entity.QueryAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("question is required: %w", errors.ErrValidation)
	}

	meeting, err := e.sessions.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	transcript, err := e.sessions.Transcript(ctx, meetingID, 0)
	if err != nil {
		return nil, err
	}
	content := entity.ContentOnly(transcript)
	if len(content) == 0 {
		return &entity.QueryAnswer{
			Question:       question,
			Answer:         emptyAnswer(mode, meeting),
			RelevantChunks: []entity.Utterance{},
		}, nil
	}

	key := qaKey{mode: mode, meetingID: meetingID, count: len(transcript), question: textutil.Normalize(question)}
	if cachedAnswer, ok := e.lookup(key); ok {
		e.metrics.Cache(observability.CacheQA, true)
		cachedAnswer.Question = question
		return &cachedAnswer, nil
	}
	e.metrics.Cache(observability.CacheQA, false)

	relevant := e.retrieve(content, question)
	answer := &entity.QueryAnswer{Question: question, RelevantChunks: relevant}

	reply, err := e.llm.Generate(ctx, build(meeting, content, relevant, question))
	switch {
	case err != nil:
		e.log.Error("answer generation failed",
			slog.String("meeting_id", meetingID),
			slog.String("mode", mode),
			slog.String("error", err.Error()),
		)
		answer.Answer = FallbackAnswer
		answer.Degraded = true
	default:
		answer.Answer = parseAnswer(reply)
		if answer.Answer == "" {
			answer.Answer = FallbackAnswer
			answer.Degraded = true
		}
	}

	if !answer.Degraded {
		e.store(key, *answer)
	}
	return answer, nil
}

func emptyAnswer(mode string, m *entity.Meeting) string {
	switch {
	case !m.NoAudio:
		return InsufficientAnswer
	case mode == modeAsk:
		return NoAudioAskAnswer
	default:
		return NoAudioAnswer
	}
}

func speakersOf(content []entity.Utterance) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range content {
		if _, ok := seen[u.Speaker]; !ok {
			seen[u.Speaker] = struct{}{}
			out = append(out, u.Speaker)
		}
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func parseAnswer(reply string) string {
	if doc, ok := analysis.ExtractJSON(reply); ok {
		if a := doc.Get("answer"); a.Exists() {
			return strings.TrimSpace(a.String())
		}
		return ""
	}
	return strings.TrimSpace(reply)
}

func (e *Engine) retrieve(content []entity.Utterance, question string) []entity.Utterance {
	ranked := rank(content, question)

	var out []entity.Utterance
	for _, s := range ranked {
		if len(out) == e.topK {
			break
		}
		out = append(out, s.u)
	}
	if len(out) > 0 {
		return out
	}

	start := max(0, len(content)-e.topK)
	return append([]entity.Utterance{}, content[start:]...)
}

// Topic returns the utterances that contain topic or share at least one term
// with it, by relevance and then transcript order.
func (e *Engine) Topic(ctx context.Context, meetingID, topic string) ([]entity.Utterance, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, fmt.Errorf("topic is required: %w", errors.ErrValidation)
	}

	transcript, err := e.sessions.Transcript(ctx, meetingID, 0)
	if err != nil {
		return nil, err
	}

	ranked := rank(entity.ContentOnly(transcript), topic)
	out := make([]entity.Utterance, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.u)
	}
	return out, nil
}

// Speakers aggregates utterance counts and sentiment tags per speaker, in
// order of first appearance.
func (e *Engine) Speakers(ctx context.Context, meetingID string) ([]entity.SpeakerSummary, error) {
	transcript, err := e.sessions.Transcript(ctx, meetingID, 0)
	if err != nil {
		return nil, err
	}

	var (
		order []string
		by    = make(map[string]*entity.SpeakerSummary)
	)
	for _, u := range entity.ContentOnly(transcript) {
		s, ok := by[u.Speaker]
		if !ok {
			s = &entity.SpeakerSummary{Speaker: u.Speaker}
			by[u.Speaker] = s
			order = append(order, u.Speaker)
		}

		s.Utterances++
		switch u.Sentiment {
		case entity.SentimentPositive:
			s.Positive++
		case entity.SentimentNeutral:
			s.Neutral++
		case entity.SentimentNegative:
			s.Negative++
		default:
			s.Pending++
		}
	}

	out := make([]entity.SpeakerSummary, 0, len(order))
	for _, speaker := range order {
		out = append(out, *by[speaker])
	}
	return out, nil
}

// rank scores utterances by distinct shared terms plus a bonus when the
// normalized query occurs verbatim. Zero scores are dropped.
func rank(content []entity.Utterance, q string) []scored {
	terms := textutil.TokenSet(q)
	phrase := textutil.Normalize(q)

	var out []scored
	for _, u := range content {
		score := 0.0
		for t := range textutil.TokenSet(u.Text) {
			if _, ok := terms[t]; ok {
				score++
			}
		}
		if phrase != "" && strings.Contains(textutil.Normalize(u.Text), phrase) {
			score += phraseBonus
		}
		if score > 0 {
			out = append(out, scored{u: u, score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].u.Seq < out[j].u.Seq
	})
	return out
}

func (e *Engine) lookup(k qaKey) (entity.QueryAnswer, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	a, ok := e.cache[k]
	if !ok {
		return entity.QueryAnswer{}, false
	}
	a.RelevantChunks = append([]entity.Utterance{}, a.RelevantChunks...)
	return a, true
}

func (e *Engine) store(k qaKey, a entity.QueryAnswer) {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Entries for older transcript states are unreachable.
	for old := range e.cache {
		if old.meetingID == k.meetingID && old.count < k.count {
			delete(e.cache, old)
		}
	}
	a.RelevantChunks = append([]entity.Utterance{}, a.RelevantChunks...)
	e.cache[k] = a
}
