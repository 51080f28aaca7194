// Package events publishes meeting lifecycle and transcript notifications.
// Consumers use transcript.appended (which carries the utterance count) as
// the signal that cached analyses for the meeting are stale.
package events

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	TypeMeetingStarted     = "meeting.started"
	TypeMeetingEnded       = "meeting.ended"
	TypeTranscriptAppended = "transcript.appended"
	TypeChunkFailed        = "chunk.failed"
	TypeAnalysisCompleted  = "analysis.completed"
)

type BaseEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Version   string    `json:"version"`
}

func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		Source:    "meetings",
		Version:   "1.0",
	}
}

type Event struct {
	BaseEvent

	MeetingID      string `json:"meeting_id"`
	UtteranceCount int    `json:"utterance_count"`
	ChunkCount     int    `json:"chunk_count,omitempty"`
	SpeakerCount   int    `json:"speaker_count,omitempty"`
	Seq            *int   `json:"seq,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

func New(eventType, meetingID string) Event {
	return Event{BaseEvent: NewBaseEvent(eventType), MeetingID: meetingID}
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Notify publishes e and logs a failure instead of returning it.
func Notify(ctx context.Context, p Publisher, log *slog.Logger, e Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		log.Warn("failed to publish event",
			slog.String("event_type", e.EventType),
			slog.String("meeting_id", e.MeetingID),
			slog.String("error", err.Error()),
		)
	}
}

type nop struct{}

func Nop() Publisher { return nop{} }

func (nop) Publish(context.Context, Event) error { return nil }
func (nop) Close() error                         { return nil }

type multi struct {
	publishers []Publisher
	log        *slog.Logger
}

// Multi fans an event out to every publisher. A failing publisher does not
// stop delivery to the rest.
func Multi(log *slog.Logger, publishers ...Publisher) Publisher {
	return &multi{publishers: publishers, log: log}
}

func (m *multi) Publish(ctx context.Context, e Event) error {
	for _, p := range m.publishers {
		Notify(ctx, p, m.log, e)
	}
	return nil
}

func (m *multi) Close() error {
	var first error
	for _, p := range m.publishers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

type async struct {
	next    Publisher
	log     *slog.Logger
	queue   chan Event
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// Async delivers events on a background goroutine so slow sinks never block
// ingestion. Events are dropped when the buffer is full.
func Async(next Publisher, buffer int, timeout time.Duration, log *slog.Logger) Publisher {
	a := &async{
		next:    next,
		log:     log,
		queue:   make(chan Event, buffer),
		timeout: timeout,
	}

	a.wg.Add(1)
	go a.loop()
	return a
}

func (a *async) loop() {
	defer a.wg.Done()
	for e := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		Notify(ctx, a.next, a.log, e)
		cancel()
	}
}

func (a *async) Publish(ctx context.Context, e Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return nil
	}

	select {
	case a.queue <- e:
	default:
		a.log.Warn("event queue full, dropping event",
			slog.String("event_type", e.EventType),
			slog.String("meeting_id", e.MeetingID),
		)
	}
	return nil
}

// Close stops accepting events, drains the queue and closes the sink.
func (a *async) Close() error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	a.wg.Wait()
	return a.next.Close()
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Close() error { return nil }

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}
