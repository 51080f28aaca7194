package entity

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// DefaultSpeaker labels utterances whose speaker could not be resolved.
const DefaultSpeaker = "Speaker"

type Meeting struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Participants   []string    `json:"participants"`
	Status         Status      `json:"status"`
	StartedAt      time.Time   `json:"started_at"`
	EndedAt        *time.Time  `json:"ended_at,omitempty"`
	UpdatedAt      time.Time   `json:"updated_at"`
	ChunkCount     int         `json:"chunk_count"`
	UtteranceCount int         `json:"utterance_count"`
	NoAudio        bool        `json:"no_audio"`
	LastTimestamp  float64     `json:"last_timestamp"`
	Stats          IngestStats `json:"stats"`
}

func (m *Meeting) Active() bool {
	return m.Status == StatusActive
}

// Clone returns a deep copy safe to hand to callers.
func (m *Meeting) Clone() *Meeting {
	if m == nil {
		return nil
	}
	c := *m
	if m.Participants != nil {
		c.Participants = make([]string, len(m.Participants))
		copy(c.Participants, m.Participants)
	}
	if m.EndedAt != nil {
		t := *m.EndedAt
		c.EndedAt = &t
	}
	return &c
}

// Summary projects the meeting for list views.
func (m *Meeting) Summary() MeetingSummary {
	return MeetingSummary{
		ID:             m.ID,
		Name:           m.Name,
		Status:         m.Status,
		StartedAt:      m.StartedAt,
		EndedAt:        m.EndedAt,
		ChunkCount:     m.ChunkCount,
		UtteranceCount: m.UtteranceCount,
	}
}

type MeetingSummary struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Status         Status     `json:"status"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ChunkCount     int        `json:"chunk_count"`
	UtteranceCount int        `json:"utterance_count"`
}

// IngestStats counts chunk outcomes for one meeting.
type IngestStats struct {
	Received int `json:"received"`
	Stored   int `json:"stored"`
	Ignored  int `json:"ignored"`
	Failed   int `json:"failed"`
	Lost     int `json:"lost"`
}

type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

func ParseSentiment(s string) (Sentiment, bool) {
	switch Sentiment(s) {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		return Sentiment(s), true
	}
	return "", false
}

type Source string

const (
	SourceAudio Source = "audio"
	SourceText  Source = "text"
)

type Utterance struct {
	ID        uuid.UUID `json:"id"`
	Seq       int       `json:"seq"`
	Speaker   string    `json:"speaker"`
	Text      string    `json:"text"`
	Timestamp float64   `json:"timestamp"`
	Duration  float64   `json:"duration"`
	NoSpeech  bool      `json:"no_speech,omitempty"`
	Sentiment Sentiment `json:"sentiment,omitempty"`
	Source    Source    `json:"source"`
}

// HasContent reports whether the utterance carries spoken text.
func (u *Utterance) HasContent() bool {
	return !u.NoSpeech && u.Text != ""
}

// ContentOnly filters out no-speech entries.
func ContentOnly(utterances []Utterance) []Utterance {
	out := make([]Utterance, 0, len(utterances))
	for _, u := range utterances {
		if u.HasContent() {
			out = append(out, u)
		}
	}
	return out
}

type IngestStatus string

const (
	IngestIgnored  IngestStatus = "ignored"
	IngestStored   IngestStatus = "chunk stored"
	IngestAccepted IngestStatus = "audio detected"
)

type IngestResult struct {
	MeetingID string       `json:"meeting_id"`
	Status    IngestStatus `json:"status"`
	Utterance *Utterance   `json:"utterance,omitempty"`
}

// Transcription is the speech-to-text result for one chunk.
type Transcription struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
	Confidence      float64 `json:"confidence"`
}
