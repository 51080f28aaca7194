package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/events"
	"github.com/xilidan/meetings/services/meeting/observability"
	"github.com/xilidan/meetings/services/meeting/provider"
	"github.com/xilidan/meetings/services/meeting/session"
)

const (
	DefaultMimeType      = "audio/webm"
	DefaultMaxChunkBytes = 25 << 20
)

type AudioChunk struct {
	Data        []byte
	MimeType    string
	SpeakerHint string
}

type Config struct {
	SilenceThreshold float64
	SampleRate       int
	MaxChunkBytes    int
}

type Pipeline struct {
	sessions  *session.Manager
	stt       provider.Transcriber
	resolver  provider.SpeakerResolver
	detector  Detector
	pool      *Pool
	publisher events.Publisher
	metrics   *observability.Metrics
	maxBytes  int
	log       *slog.Logger
}

type Option func(*Pipeline)

func WithSpeakerResolver(r provider.SpeakerResolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

func WithPublisher(pub events.Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

func WithPool(pool *Pool) Option {
	return func(p *Pipeline) { p.pool = pool }
}

func WithMetrics(m *observability.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(cfg Config, sessions *session.Manager, stt provider.Transcriber, log *slog.Logger, opts ...Option) *Pipeline {
	maxBytes := cfg.MaxChunkBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxChunkBytes
	}

	p := &Pipeline{
		sessions:  sessions,
		stt:       stt,
		detector:  NewDetector(cfg.SilenceThreshold, cfg.SampleRate),
		publisher: events.Nop(),
		maxBytes:  maxBytes,
		log:       log.With(slog.String("component", "ingest_pipeline")),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SubmitAudio runs voice-activity detection and, for speech, transcribes the
// chunk and appends it before returning.
func (p *Pipeline) SubmitAudio(ctx context.Context, meetingID string, chunk AudioChunk) (*entity.IngestResult, error) {
	analysis, err := p.admit(ctx, meetingID, &chunk)
	if err != nil {
		return nil, err
	}
	if analysis.Verdict == VerdictSilence {
		return p.ignore(ctx, meetingID, analysis)
	}

	u, err := p.transcribe(ctx, meetingID, chunk, analysis)
	if err != nil {
		return nil, err
	}
	return &entity.IngestResult{MeetingID: meetingID, Status: entity.IngestStored, Utterance: u}, nil
}

// SubmitAudioAsync acknowledges a speech chunk as soon as it is queued.
// Transcription failures are then only visible through counters, logs and
// chunk.failed events. When the queue is full the chunk is processed
// synchronously instead.
func (p *Pipeline) SubmitAudioAsync(ctx context.Context, meetingID string, chunk AudioChunk) (*entity.IngestResult, error) {
	if p.pool == nil {
		return p.SubmitAudio(ctx, meetingID, chunk)
	}

	analysis, err := p.admit(ctx, meetingID, &chunk)
	if err != nil {
		return nil, err
	}
	if analysis.Verdict == VerdictSilence {
		return p.ignore(ctx, meetingID, analysis)
	}

	queued := p.pool.Submit(func(jobCtx context.Context) {
		if _, err := p.transcribe(jobCtx, meetingID, chunk, analysis); err != nil {
			p.log.Warn("async chunk not stored",
				slog.String("meeting_id", meetingID),
				slog.String("error", err.Error()),
			)
		}
	})
	if !queued {
		p.log.Warn("ingest queue full, transcribing synchronously", slog.String("meeting_id", meetingID))
		u, err := p.transcribe(ctx, meetingID, chunk, analysis)
		if err != nil {
			return nil, err
		}
		return &entity.IngestResult{MeetingID: meetingID, Status: entity.IngestStored, Utterance: u}, nil
	}

	return &entity.IngestResult{MeetingID: meetingID, Status: entity.IngestAccepted}, nil
}

// SubmitText appends an already transcribed chunk. The text is stored as
// sent; the speaker label is trimmed so per-speaker views group it.
func (p *Pipeline) SubmitText(ctx context.Context, meetingID, speaker, text string) (*entity.Utterance, error) {
	speaker = strings.TrimSpace(speaker)
	if speaker == "" {
		return nil, fmt.Errorf("speaker is required: %w", errors.ErrValidation)
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", errors.ErrValidation)
	}

	return p.sessions.AppendText(ctx, meetingID, entity.Utterance{
		Speaker: speaker,
		Text:    text,
		Source:  entity.SourceText,
	})
}

func (p *Pipeline) admit(ctx context.Context, meetingID string, chunk *AudioChunk) (Analysis, error) {
	if len(chunk.Data) == 0 {
		return Analysis{}, fmt.Errorf("audio chunk is empty: %w", errors.ErrValidation)
	}
	if len(chunk.Data) > p.maxBytes {
		return Analysis{}, fmt.Errorf("audio chunk exceeds %d bytes: %w", p.maxBytes, errors.ErrValidation)
	}
	if strings.TrimSpace(chunk.MimeType) == "" {
		chunk.MimeType = DefaultMimeType
	}

	if _, err := p.sessions.AdmitChunk(ctx, meetingID); err != nil {
		return Analysis{}, err
	}

	analysis := p.detector.Analyze(chunk.Data, chunk.MimeType)
	p.log.Debug("chunk analyzed",
		slog.String("meeting_id", meetingID),
		slog.String("mime_type", chunk.MimeType),
		slog.Int("bytes", len(chunk.Data)),
		slog.String("verdict", analysis.Verdict.String()),
		slog.Float64("rms", analysis.RMS),
	)
	if analysis.Verdict == VerdictUnknown {
		p.metrics.Undecidable(mediaTypeOf(chunk.MimeType))
		p.log.Info("voice activity undecidable, sending chunk to speech-to-text",
			slog.String("meeting_id", meetingID),
			slog.String("mime_type", chunk.MimeType),
		)
	}
	return analysis, nil
}

// mediaTypeOf drops MIME parameters so metric labels stay bounded.
func mediaTypeOf(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return "invalid"
	}
	return mediaType
}

func (p *Pipeline) ignore(ctx context.Context, meetingID string, analysis Analysis) (*entity.IngestResult, error) {
	if err := p.sessions.Record(ctx, meetingID, session.OutcomeIgnored); err != nil {
		return nil, err
	}
	p.log.Debug("silent chunk ignored",
		slog.String("meeting_id", meetingID),
		slog.Float64("duration", analysis.Duration),
	)
	return &entity.IngestResult{MeetingID: meetingID, Status: entity.IngestIgnored}, nil
}

func (p *Pipeline) transcribe(ctx context.Context, meetingID string, chunk AudioChunk, analysis Analysis) (*entity.Utterance, error) {
	data, mimeType, err := wrapPCM(chunk.Data, chunk.MimeType, p.detector.DefaultRate)
	if err != nil {
		p.log.Warn("failed to wrap raw pcm, sending as is",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		data, mimeType = chunk.Data, chunk.MimeType
	}

	res, err := p.stt.Transcribe(ctx, data, mimeType)

	// Bookkeeping survives a client that disconnects mid-transcription.
	bookCtx := context.WithoutCancel(ctx)
	if err != nil {
		if !errors.IsTranscription(err) {
			err = fmt.Errorf("%v: %w", err, errors.ErrTranscription)
		}
		p.log.Error("transcription failed",
			slog.String("meeting_id", meetingID),
			slog.String("error", err.Error()),
		)
		if recErr := p.sessions.Record(bookCtx, meetingID, session.OutcomeFailed); recErr != nil {
			p.log.Error("failed to record chunk failure", slog.String("meeting_id", meetingID), slog.String("error", recErr.Error()))
		}

		e := events.New(events.TypeChunkFailed, meetingID)
		e.Reason = err.Error()
		events.Notify(bookCtx, p.publisher, p.log, e)
		return nil, err
	}

	u := entity.Utterance{
		Speaker: p.speakerFor(ctx, chunk),
		Text:    strings.TrimSpace(res.Text),
		Source:  entity.SourceAudio,
	}
	if u.Text == "" {
		u.NoSpeech = true
	} else {
		u.Duration = analysis.Duration
		if u.Duration == 0 {
			u.Duration = res.DurationSeconds
		}
	}

	return p.sessions.Append(bookCtx, meetingID, u)
}

// speakerFor prefers an enrolled voice match, then the client's hint.
func (p *Pipeline) speakerFor(ctx context.Context, chunk AudioChunk) string {
	if p.resolver != nil {
		if name, ok := p.resolver.Identify(ctx, chunk.Data); ok && strings.TrimSpace(name) != "" {
			return strings.TrimSpace(name)
		}
	}
	if hint := strings.TrimSpace(chunk.SpeakerHint); hint != "" {
		return hint
	}
	return entity.DefaultSpeaker
}
