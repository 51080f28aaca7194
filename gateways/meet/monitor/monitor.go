package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/events"
)

// Sessions is the part of the session manager the monitor drives.
type Sessions interface {
	Get(ctx context.Context, id string) (*entity.Meeting, error)
	List(ctx context.Context) ([]entity.MeetingSummary, error)
	End(ctx context.Context, id string) (*entity.Meeting, error)
}

// MeetingMonitor ends meetings that received no chunk for the idle timeout.
// It learns about meetings from the event stream, so it is registered as an
// events.Publisher.
type MeetingMonitor struct {
	sessions Sessions
	timeout  time.Duration
	now      func() time.Time
	meetings map[string]*MeetingSession
	mu       sync.RWMutex
	closed   bool
	log      *slog.Logger
}

type MeetingSession struct {
	MeetingID string
	ArmedAt   time.Time
	Timer     *time.Timer
}

func New(timeout time.Duration, log *slog.Logger) *MeetingMonitor {
	log.Debug("creating new meeting monitor", slog.Duration("idle_timeout", timeout))
	return &MeetingMonitor{
		timeout:  timeout,
		now:      time.Now,
		meetings: make(map[string]*MeetingSession),
		log:      log.With(slog.String("component", "meeting_monitor")),
	}
}

// Bind attaches the session manager. Timers armed before Bind fire as no-ops.
func (m *MeetingMonitor) Bind(sessions Sessions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = sessions
}

// Restore arms timers for meetings left active by a previous process.
func (m *MeetingMonitor) Restore(ctx context.Context) error {
	if m.timeout <= 0 {
		return nil
	}

	m.mu.RLock()
	sessions := m.sessions
	m.mu.RUnlock()
	if sessions == nil {
		return fmt.Errorf("monitor has no session manager")
	}

	list, err := sessions.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list meetings: %w", err)
	}

	restored := 0
	for _, s := range list {
		if s.Status == entity.StatusActive {
			m.watch(s.ID)
			restored++
		}
	}
	m.log.Info("restored idle timers", slog.Int("meetings", restored))
	return nil
}

func (m *MeetingMonitor) Publish(_ context.Context, e events.Event) error {
	if m.timeout <= 0 {
		return nil
	}

	switch e.EventType {
	case events.TypeMeetingStarted:
		m.watch(e.MeetingID)
	case events.TypeMeetingEnded:
		m.forget(e.MeetingID)
	}
	return nil
}

// Close stops every timer.
func (m *MeetingMonitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.meetings {
		s.Timer.Stop()
		delete(m.meetings, id)
	}
	m.closed = true
	m.log.Info("meeting monitor stopped")
	return nil
}

// Watched reports the meetings with an armed timer.
func (m *MeetingMonitor) Watched() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.meetings)
}

func (m *MeetingMonitor) watch(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}
	if _, ok := m.meetings[id]; ok {
		return
	}
	m.meetings[id] = &MeetingSession{
		MeetingID: id,
		ArmedAt:   m.now(),
		Timer:     time.AfterFunc(m.timeout, func() { m.check(id) }),
	}
	m.log.Debug("idle timer armed", slog.String("meeting_id", id), slog.Int("total_meetings", len(m.meetings)))
}

func (m *MeetingMonitor) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.meetings[id]; ok {
		s.Timer.Stop()
		delete(m.meetings, id)
		m.log.Debug("idle timer removed", slog.String("meeting_id", id), slog.Int("remaining_meetings", len(m.meetings)))
	}
}

// check ends the meeting if it has been idle for the full timeout, and
// otherwise re-arms the timer for the remainder.
func (m *MeetingMonitor) check(id string) {
	m.mu.RLock()
	sessions := m.sessions
	_, watched := m.meetings[id]
	m.mu.RUnlock()
	if sessions == nil || !watched {
		return
	}

	ctx := context.Background()
	meeting, err := sessions.Get(ctx, id)
	if err != nil {
		m.log.Warn("idle check failed", slog.String("meeting_id", id), slog.String("error", err.Error()))
		m.forget(id)
		return
	}
	if !meeting.Active() {
		m.forget(id)
		return
	}

	idle := m.now().Sub(meeting.UpdatedAt)
	if idle < m.timeout {
		m.rearm(id, m.timeout-idle)
		return
	}

	m.log.Info("ending idle meeting",
		slog.String("meeting_id", id),
		slog.Duration("idle", idle.Round(time.Second)),
	)
	if _, err := sessions.End(ctx, id); err != nil {
		m.log.Error("failed to end idle meeting", slog.String("meeting_id", id), slog.String("error", err.Error()))
	}
	m.forget(id)
}

func (m *MeetingMonitor) rearm(id string, after time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.meetings[id]
	if !ok {
		return
	}
	s.ArmedAt = m.now()
	s.Timer.Reset(after)
	m.log.Debug("idle timer re-armed", slog.String("meeting_id", id), slog.Duration("after", after))
}
