package session

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/gen"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/events"
	"github.com/xilidan/meetings/services/meeting/observability"
	"github.com/xilidan/meetings/services/meeting/storage"
)

const (
	idTimeLayout = "20060102_150405"

	// MinAudioDuration is the shortest meeting that is not flagged no-audio.
	MinAudioDuration = 10 * time.Second

	maxIDAttempts = 100
)

// Outcome is a chunk result recorded in a meeting's ingest counters.
type Outcome int

const (
	OutcomeIgnored Outcome = iota
	OutcomeFailed
	OutcomeLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeFailed:
		return "failed"
	case OutcomeLost:
		return "lost"
	}
	return "unknown"
}

// Manager owns meeting lifecycle and is the only writer of a meeting's
// transcript. Every mutation of one meeting runs under that meeting's mutex,
// so appends are totally ordered and never interleave with the end
// transition.
type Manager struct {
	store     storage.Storage
	clock     gen.Clock
	ids       gen.UUIDGenerator
	publisher events.Publisher
	metrics   *observability.Metrics
	log       *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Option func(*Manager)

func WithClock(c gen.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithUUIDs(g gen.UUIDGenerator) Option {
	return func(m *Manager) { m.ids = g }
}

func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

func New(store storage.Storage, log *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		clock:     gen.SystemClock(),
		ids:       gen.UUID(),
		publisher: events.Nop(),
		log:       log.With(slog.String("component", "session_manager")),
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// lockFor returns the mutex of a known meeting. Locks are only created for
// meetings the store has, so lookups of unknown IDs leave no entry behind.
func (m *Manager) lockFor(ctx context.Context, id string) (*sync.Mutex, error) {
	m.mu.Lock()
	l, ok := m.locks[id]
	m.mu.Unlock()
	if ok {
		return l, nil
	}

	if _, err := m.store.GetMeeting(ctx, id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok = m.locks[id]; !ok {
		l = &sync.Mutex{}
		m.locks[id] = l
	}
	return l, nil
}

// Start registers a new active meeting with an empty transcript.
func (m *Manager) Start(ctx context.Context, name string, participants []string) (*entity.Meeting, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("meeting name is required: %w", errors.ErrValidation)
	}

	now := m.clock.Now().UTC()
	meeting := &entity.Meeting{
		Name:         name,
		Participants: cleanParticipants(participants),
		Status:       entity.StatusActive,
		StartedAt:    now,
		UpdatedAt:    now,
	}

	base := now.Format(idTimeLayout) + "_" + sanitizeName(name)
	for attempt := 1; ; attempt++ {
		meeting.ID = base
		if attempt > 1 {
			meeting.ID = fmt.Sprintf("%s-%d", base, attempt)
		}

		err := m.store.CreateMeeting(ctx, meeting)
		if err == nil {
			break
		}
		if !errors.IsAlreadyExists(err) || attempt >= maxIDAttempts {
			return nil, fmt.Errorf("failed to register meeting: %w", err)
		}
		m.log.Debug("meeting id taken, retrying", slog.String("meeting_id", meeting.ID))
	}

	m.log.Info("meeting started",
		slog.String("meeting_id", meeting.ID),
		slog.String("name", meeting.Name),
		slog.Int("participants", len(meeting.Participants)),
	)
	m.metrics.MeetingStarted()
	events.Notify(ctx, m.publisher, m.log, events.New(events.TypeMeetingStarted, meeting.ID))

	return meeting.Clone(), nil
}

// End transitions a meeting to ended. Ending an ended meeting returns the
// existing record unchanged.
func (m *Manager) End(ctx context.Context, id string) (*entity.Meeting, error) {
	lock, err := m.lockFor(ctx, id)
	if err != nil {
		return nil, err
	}
	lock.Lock()

	meeting, err := m.store.GetMeeting(ctx, id)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	if !meeting.Active() {
		lock.Unlock()
		m.log.Debug("meeting already ended", slog.String("meeting_id", id))
		return meeting, nil
	}

	now := m.clock.Now().UTC()
	meeting.Status = entity.StatusEnded
	meeting.EndedAt = &now
	meeting.UpdatedAt = now
	meeting.NoAudio = meeting.ChunkCount == 0 || now.Sub(meeting.StartedAt) < MinAudioDuration

	if err := m.store.UpdateMeeting(ctx, meeting); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to end meeting: %w", err)
	}
	lock.Unlock()

	m.log.Info("meeting ended",
		slog.String("meeting_id", id),
		slog.Int("utterances", meeting.UtteranceCount),
		slog.Bool("no_audio", meeting.NoAudio),
	)
	m.metrics.MeetingEnded()

	e := events.New(events.TypeMeetingEnded, id)
	e.UtteranceCount = meeting.UtteranceCount
	e.ChunkCount = meeting.ChunkCount
	events.Notify(ctx, m.publisher, m.log, e)

	return meeting, nil
}

func (m *Manager) Get(ctx context.Context, id string) (*entity.Meeting, error) {
	return m.store.GetMeeting(ctx, id)
}

// List returns every meeting, most recent first.
func (m *Manager) List(ctx context.Context) ([]entity.MeetingSummary, error) {
	meetings, err := m.store.ListMeetings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list meetings: %w", err)
	}

	out := make([]entity.MeetingSummary, 0, len(meetings))
	for _, meeting := range meetings {
		out = append(out, meeting.Summary())
	}
	return out, nil
}

// RestoreMetrics seeds the active-meetings gauge from storage, so meetings
// that outlived a restart are counted when they end.
func (m *Manager) RestoreMetrics(ctx context.Context) error {
	meetings, err := m.List(ctx)
	if err != nil {
		return err
	}

	active := 0
	for _, meeting := range meetings {
		if meeting.Status == entity.StatusActive {
			active++
		}
	}
	m.metrics.SetActiveMeetings(active)
	return nil
}

// Transcript returns a consistent snapshot of the utterances with Seq >= since.
func (m *Manager) Transcript(ctx context.Context, id string, since int) ([]entity.Utterance, error) {
	return m.store.Utterances(ctx, id, since)
}

// AdmitChunk counts an incoming chunk. It fails for unknown or ended meetings.
func (m *Manager) AdmitChunk(ctx context.Context, id string) (*entity.Meeting, error) {
	lock, err := m.lockFor(ctx, id)
	if err != nil {
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	meeting, err := m.store.GetMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	if !meeting.Active() {
		return nil, fmt.Errorf("meeting %s has ended: %w", id, errors.ErrInvalidState)
	}

	meeting.ChunkCount++
	meeting.Stats.Received++
	meeting.UpdatedAt = m.clock.Now().UTC()
	if err := m.store.UpdateMeeting(ctx, meeting); err != nil {
		return nil, fmt.Errorf("failed to admit chunk: %w", err)
	}
	return meeting, nil
}

// Record increments the counter for a chunk that produced no utterance.
func (m *Manager) Record(ctx context.Context, id string, outcome Outcome) error {
	lock, err := m.lockFor(ctx, id)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	meeting, err := m.store.GetMeeting(ctx, id)
	if err != nil {
		return err
	}

	switch outcome {
	case OutcomeIgnored:
		meeting.Stats.Ignored++
	case OutcomeFailed:
		meeting.Stats.Failed++
	case OutcomeLost:
		meeting.Stats.Lost++
	}
	m.metrics.Chunk(outcome.String())

	return m.store.UpdateMeeting(ctx, meeting)
}

// Append stores a transcribed chunk. The meeting is re-checked under its
// lock: a chunk that finished after the meeting ended is counted as lost and
// rejected.
func (m *Manager) Append(ctx context.Context, id string, u entity.Utterance) (*entity.Utterance, error) {
	return m.append(ctx, id, u, false)
}

// AppendText admits and stores a text chunk in one critical section.
func (m *Manager) AppendText(ctx context.Context, id string, u entity.Utterance) (*entity.Utterance, error) {
	return m.append(ctx, id, u, true)
}

func (m *Manager) append(ctx context.Context, id string, u entity.Utterance, admit bool) (*entity.Utterance, error) {
	lock, err := m.lockFor(ctx, id)
	if err != nil {
		return nil, err
	}
	lock.Lock()

	meeting, err := m.store.GetMeeting(ctx, id)
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	if !meeting.Active() {
		if !admit {
			meeting.Stats.Lost++
			m.metrics.Chunk(OutcomeLost.String())
			if err := m.store.UpdateMeeting(ctx, meeting); err != nil {
				m.log.Error("failed to record lost chunk", slog.String("meeting_id", id), slog.String("error", err.Error()))
			}
		}
		lock.Unlock()
		m.log.Warn("chunk rejected, meeting has ended", slog.String("meeting_id", id))
		return nil, fmt.Errorf("meeting %s has ended: %w", id, errors.ErrInvalidState)
	}

	now := m.clock.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = m.ids.Next()
	}
	if u.Speaker == "" {
		u.Speaker = entity.DefaultSpeaker
	}
	// A wall clock stepped backwards must not reorder the transcript.
	u.Timestamp = math.Max(elapsedSeconds(meeting.StartedAt, now), meeting.LastTimestamp)

	if admit {
		meeting.ChunkCount++
		meeting.Stats.Received++
	}
	meeting.UtteranceCount++
	meeting.Stats.Stored++
	meeting.UpdatedAt = now
	meeting.LastTimestamp = u.Timestamp

	if err := m.store.AppendUtterance(ctx, meeting, &u); err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("failed to append utterance: %w", err)
	}
	count := meeting.UtteranceCount
	lock.Unlock()

	m.metrics.Chunk("stored")
	m.log.Debug("utterance appended",
		slog.String("meeting_id", id),
		slog.Int("seq", u.Seq),
		slog.String("speaker", u.Speaker),
		slog.Float64("timestamp", u.Timestamp),
	)

	e := events.New(events.TypeTranscriptAppended, id)
	e.UtteranceCount = count
	seq := u.Seq
	e.Seq = &seq
	events.Notify(ctx, m.publisher, m.log, e)

	return &u, nil
}

// SetSentiments attaches sentiment labels under the meeting's lock.
func (m *Manager) SetSentiments(ctx context.Context, id string, tags map[int]entity.Sentiment) error {
	if len(tags) == 0 {
		return nil
	}

	lock, err := m.lockFor(ctx, id)
	if err != nil {
		return err
	}
	lock.Lock()
	defer lock.Unlock()

	return m.store.SetSentiments(ctx, id, tags)
}

func elapsedSeconds(start, now time.Time) float64 {
	d := now.Sub(start).Seconds()
	if d < 0 {
		return 0
	}
	return math.Round(d*1000) / 1000
}

func cleanParticipants(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// sanitizeName joins the words of name with underscores, keeping only
// characters that are safe in a URL path segment.
func sanitizeName(name string) string {
	words := make([]string, 0, 4)
	for _, word := range strings.Fields(name) {
		var b strings.Builder
		for _, r := range word {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
				b.WriteRune(r)
			}
		}
		if b.Len() > 0 {
			words = append(words, b.String())
		}
	}

	if len(words) == 0 {
		return "meeting"
	}
	return strings.Join(words, "_")
}
