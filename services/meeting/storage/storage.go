package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/entity"
)

// Storage is the meeting registry and per-meeting append-only transcript.
// Implementations must be safe for concurrent use; ordering of appends to one
// meeting is the caller's responsibility.
type Storage interface {
	CreateMeeting(ctx context.Context, m *entity.Meeting) error
	GetMeeting(ctx context.Context, id string) (*entity.Meeting, error)
	UpdateMeeting(ctx context.Context, m *entity.Meeting) error
	ListMeetings(ctx context.Context) ([]*entity.Meeting, error)

	// AppendUtterance assigns u.Seq, stores u at the end of m's transcript and
	// saves m in the same step. On error neither is written.
	AppendUtterance(ctx context.Context, m *entity.Meeting, u *entity.Utterance) error
	// Utterances returns the transcript entries with Seq >= since, in order.
	Utterances(ctx context.Context, meetingID string, since int) ([]entity.Utterance, error)
	// SetSentiments tags utterances by Seq. Already tagged entries are kept.
	SetSentiments(ctx context.Context, meetingID string, tags map[int]entity.Sentiment) error

	Close() error
}

type storage struct {
	mu          sync.RWMutex
	meetings    map[string]*entity.Meeting
	transcripts map[string][]entity.Utterance
}

func New() Storage {
	return &storage{
		meetings:    make(map[string]*entity.Meeting),
		transcripts: make(map[string][]entity.Utterance),
	}
}

func (s *storage) CreateMeeting(ctx context.Context, m *entity.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.meetings[m.ID]; exists {
		return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrAlreadyExists)
	}

	s.meetings[m.ID] = m.Clone()
	s.transcripts[m.ID] = []entity.Utterance{}
	return nil
}

func (s *storage) GetMeeting(ctx context.Context, id string) (*entity.Meeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, exists := s.meetings[id]
	if !exists {
		return nil, fmt.Errorf("meeting %s: %w", id, errors.ErrNotFound)
	}
	return m.Clone(), nil
}

func (s *storage) UpdateMeeting(ctx context.Context, m *entity.Meeting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.meetings[m.ID]; !exists {
		return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrNotFound)
	}
	s.meetings[m.ID] = m.Clone()
	return nil
}

func (s *storage) ListMeetings(ctx context.Context) ([]*entity.Meeting, error) {
	s.mu.RLock()
	out := make([]*entity.Meeting, 0, len(s.meetings))
	for _, m := range s.meetings {
		out = append(out, m.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *storage) AppendUtterance(ctx context.Context, m *entity.Meeting, u *entity.Utterance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, exists := s.transcripts[m.ID]
	if _, ok := s.meetings[m.ID]; !ok || !exists {
		return fmt.Errorf("meeting %s: %w", m.ID, errors.ErrNotFound)
	}

	u.Seq = len(transcript)
	s.transcripts[m.ID] = append(transcript, *u)
	s.meetings[m.ID] = m.Clone()
	return nil
}

func (s *storage) Utterances(ctx context.Context, meetingID string, since int) ([]entity.Utterance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transcript, exists := s.transcripts[meetingID]
	if !exists {
		return nil, fmt.Errorf("meeting %s: %w", meetingID, errors.ErrNotFound)
	}

	if since < 0 {
		since = 0
	}
	if since >= len(transcript) {
		return []entity.Utterance{}, nil
	}

	out := make([]entity.Utterance, len(transcript)-since)
	copy(out, transcript[since:])
	return out, nil
}

func (s *storage) SetSentiments(ctx context.Context, meetingID string, tags map[int]entity.Sentiment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	transcript, exists := s.transcripts[meetingID]
	if !exists {
		return fmt.Errorf("meeting %s: %w", meetingID, errors.ErrNotFound)
	}

	for seq, sentiment := range tags {
		if seq < 0 || seq >= len(transcript) {
			continue
		}
		if transcript[seq].Sentiment == "" {
			transcript[seq].Sentiment = sentiment
		}
	}
	return nil
}

func (s *storage) Close() error {
	return nil
}
