package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/events"
	"github.com/xilidan/meetings/services/meeting/observability"
	"github.com/xilidan/meetings/services/meeting/provider"
	"github.com/xilidan/meetings/services/meeting/session"
)

const (
	EmptySummary       = "Not enough information to summarize this meeting yet."
	UnavailableSummary = "Summary unavailable: the language model did not return a usable result."
	NoAudioSummary     = "No audio was detected in this meeting."

	DefaultBatchSize   = 20
	defaultConcurrency = 4
)

type Config struct {
	SentimentBatchSize int
}

type cached struct {
	count  int
	result *entity.AnalysisResult
}

// Engine derives meeting knowledge from the transcript. Results are cached
// per meeting and keyed by utterance count, so a new utterance invalidates
// them.
type Engine struct {
	sessions  *session.Manager
	llm       provider.Generator
	publisher events.Publisher
	metrics   *observability.Metrics
	batchSize int
	clock     func() time.Time
	log       *slog.Logger

	group singleflight.Group
	mu    sync.RWMutex
	cache map[string]cached
}

type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func New(cfg Config, sessions *session.Manager, llm provider.Generator, log *slog.Logger, opts ...Option) *Engine {
	batch := cfg.SentimentBatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	e := &Engine{
		sessions:  sessions,
		llm:       llm,
		publisher: events.Nop(),
		batchSize: batch,
		clock:     time.Now,
		log:       log.With(slog.String("component", "analysis_engine")),
		cache:     make(map[string]cached),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Analyze returns the meeting's analysis, computing it at most once per
// transcript state. Backend failures degrade fields rather than fail.
func (e *Engine) Analyze(ctx context.Context, meetingID string) (*entity.AnalysisResult, error) {
	meeting, err := e.sessions.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}

	transcript, err := e.sessions.Transcript(ctx, meetingID, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	count := len(transcript)

	// Not cached: the no-audio flag changes on End without a new utterance.
	if len(entity.ContentOnly(transcript)) == 0 {
		res := e.newResult(meetingID, count)
		res.Summary = EmptySummary
		if meeting.NoAudio {
			res.Summary = NoAudioSummary
		}
		return res, nil
	}

	if res, ok := e.lookup(meetingID, count); ok {
		e.metrics.Cache(observability.CacheAnalysis, true)
		e.log.Debug("analysis cache hit", slog.String("meeting_id", meetingID), slog.Int("utterances", count))
		return res, nil
	}
	e.metrics.Cache(observability.CacheAnalysis, false)

	key := fmt.Sprintf("%s:%d", meetingID, count)
	v, err, shared := e.group.Do(key, func() (any, error) {
		if res, ok := e.lookup(meetingID, count); ok {
			return res, nil
		}
		return e.compute(context.WithoutCancel(ctx), meetingID, transcript)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.log.Debug("analysis shared with concurrent caller", slog.String("meeting_id", meetingID))
	}

	return cloneResult(v.(*entity.AnalysisResult)), nil
}

func (e *Engine) lookup(meetingID string, count int) (*entity.AnalysisResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.cache[meetingID]
	if !ok || c.count != count {
		return nil, false
	}
	return cloneResult(c.result), true
}

func (e *Engine) store(meetingID string, res *entity.AnalysisResult) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.cache[meetingID]; ok && c.count > res.UtteranceCount {
		return
	}
	e.cache[meetingID] = cached{count: res.UtteranceCount, result: res}
}

func (e *Engine) newResult(meetingID string, count int) *entity.AnalysisResult {
	return &entity.AnalysisResult{
		MeetingID:      meetingID,
		UtteranceCount: count,
		KeyPoints:      []string{},
		Decisions:      []entity.Decision{},
		ActionItems:    []entity.ActionItem{},
		Speakers:       []entity.SpeakerSentiment{},
		GeneratedAt:    e.clock().UTC(),
	}
}

func (e *Engine) compute(ctx context.Context, meetingID string, transcript []entity.Utterance) (*entity.AnalysisResult, error) {
	count := len(transcript)
	content := entity.ContentOnly(transcript)
	res := e.newResult(meetingID, count)

	e.log.Info("analyzing meeting", slog.String("meeting_id", meetingID), slog.Int("utterances", count))

	var (
		fields   structured
		degraded bool
		tagged   []entity.Utterance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		fields, degraded = e.extract(gctx, meetingID, content)
		return nil
	})
	g.Go(func() error {
		tagged = e.tagSentiments(gctx, meetingID, content, count)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if degraded {
		fields = extractive(content)
	}

	res.Summary = fields.Summary
	if !fields.SummaryOK {
		res.Summary = UnavailableSummary
	}
	res.KeyPoints = fields.KeyPoints
	res.Decisions = fields.Decisions
	res.ActionItems = fields.ActionItems
	res.Speakers = Breakdown(tagged)
	res.Degraded = degraded

	e.store(meetingID, res)

	ev := events.New(events.TypeAnalysisCompleted, meetingID)
	ev.UtteranceCount = count
	ev.SpeakerCount = len(res.Speakers)
	if m, err := e.sessions.Get(ctx, meetingID); err == nil {
		ev.ChunkCount = m.ChunkCount
	}
	events.Notify(ctx, e.publisher, e.log, ev)

	e.log.Info("analysis completed",
		slog.String("meeting_id", meetingID),
		slog.Int("decisions", len(res.Decisions)),
		slog.Int("action_items", len(res.ActionItems)),
		slog.Bool("degraded", res.Degraded),
	)
	return res, nil
}

// extract runs the structured summary call. The bool reports whether the
// model failed to return a JSON document.
func (e *Engine) extract(ctx context.Context, meetingID string, content []entity.Utterance) (structured, bool) {
	empty := structured{KeyPoints: []string{}, Decisions: []entity.Decision{}, ActionItems: []entity.ActionItem{}}

	reply, err := e.llm.Generate(ctx, buildAnalysisPrompt(content))
	if err != nil {
		e.log.Error("analysis generation failed",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		return empty, true
	}

	doc, ok := ExtractJSON(reply)
	if !ok {
		e.log.Warn("analysis reply is not JSON",
			slog.String("meeting_id", meetingID),
			slog.Int("reply_length", len(reply)),
		)
		return empty, true
	}
	return parseStructured(doc), false
}

// tagSentiments tags every untagged content utterance, persists the tags and
// returns the content utterances as stored.
func (e *Engine) tagSentiments(ctx context.Context, meetingID string, content []entity.Utterance, count int) []entity.Utterance {
	var untagged []entity.Utterance
	for _, u := range content {
		if u.Sentiment == "" {
			untagged = append(untagged, u)
		}
	}
	if len(untagged) == 0 {
		return content
	}

	var (
		mu   sync.Mutex
		tags = make(map[int]entity.Sentiment, len(untagged))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(defaultConcurrency)
	for start := 0; start < len(untagged); start += e.batchSize {
		end := min(start+e.batchSize, len(untagged))
		batch := untagged[start:end]

		g.Go(func() error {
			labels := e.classifyBatch(gctx, meetingID, batch)
			mu.Lock()
			for seq, s := range labels {
				tags[seq] = s
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := e.sessions.SetSentiments(ctx, meetingID, tags); err != nil {
		e.log.Error("failed to persist sentiments", slog.String("meeting_id", meetingID), slog.String("error", err.Error()))
		return applyTags(content, tags)
	}

	stored, err := e.sessions.Transcript(ctx, meetingID, 0)
	if err != nil || len(stored) < count {
		return applyTags(content, tags)
	}
	return entity.ContentOnly(stored[:count])
}

// classifyBatch asks the model for labels and falls back to the lexicon for
// every statement the model did not label.
func (e *Engine) classifyBatch(ctx context.Context, meetingID string, batch []entity.Utterance) map[int]entity.Sentiment {
	labels := make(map[int]entity.Sentiment, len(batch))

	reply, err := e.llm.Generate(ctx, buildSentimentPrompt(batch))
	if err != nil {
		e.log.Warn("sentiment generation failed, using lexicon",
			slog.String("meeting_id", meetingID),
			slog.Int("batch", len(batch)),
			slog.String("error", err.Error()),
		)
	} else if doc, ok := ExtractJSON(reply); ok {
		wanted := make(map[int]struct{}, len(batch))
		for _, u := range batch {
			wanted[u.Seq] = struct{}{}
		}
		for _, item := range doc.Get("sentiments").Array() {
			seq := int(item.Get("seq").Int())
			if _, ok := wanted[seq]; !ok || !item.Get("seq").Exists() {
				continue
			}
			if s, ok := entity.ParseSentiment(strings.ToLower(strings.TrimSpace(item.Get("sentiment").String()))); ok {
				labels[seq] = s
			}
		}
	}

	for _, u := range batch {
		if _, ok := labels[u.Seq]; !ok {
			labels[u.Seq] = ClassifyLexicon(u.Text)
		}
	}
	return labels
}

func applyTags(content []entity.Utterance, tags map[int]entity.Sentiment) []entity.Utterance {
	out := make([]entity.Utterance, len(content))
	copy(out, content)
	for i := range out {
		if out[i].Sentiment == "" {
			out[i].Sentiment = tags[out[i].Seq]
		}
	}
	return out
}

func cloneResult(r *entity.AnalysisResult) *entity.AnalysisResult {
	c := *r
	c.KeyPoints = append([]string{}, r.KeyPoints...)
	c.Decisions = append([]entity.Decision{}, r.Decisions...)
	c.ActionItems = append([]entity.ActionItem{}, r.ActionItems...)
	c.Speakers = append([]entity.SpeakerSentiment{}, r.Speakers...)
	return &c
}
