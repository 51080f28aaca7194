package entity

import "time"

type DecisionStatus string

const (
	DecisionDecided  DecisionStatus = "decided"
	DecisionPending  DecisionStatus = "pending"
	DecisionRejected DecisionStatus = "rejected"
)

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

type Decision struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Owner       string         `json:"owner"`
	Status      DecisionStatus `json:"status"`
}

type ActionItem struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Owner       string   `json:"owner"`
	DueDate     string   `json:"due_date"`
	Priority    Priority `json:"priority"`
}

type SpeakerSentiment struct {
	Speaker         string    `json:"speaker"`
	OverallScore    float64   `json:"overall_score"`
	Positive        int       `json:"positive"`
	Neutral         int       `json:"neutral"`
	Negative        int       `json:"negative"`
	DominantEmotion Sentiment `json:"dominant_emotion,omitempty"`
}

type AnalysisResult struct {
	MeetingID      string             `json:"meeting_id"`
	UtteranceCount int                `json:"utterance_count"`
	Summary        string             `json:"summary"`
	KeyPoints      []string           `json:"key_points"`
	Decisions      []Decision         `json:"decisions"`
	ActionItems    []ActionItem       `json:"action_items"`
	Speakers       []SpeakerSentiment `json:"speakers"`
	Degraded       bool               `json:"degraded,omitempty"`
	GeneratedAt    time.Time          `json:"generated_at"`
}

type QueryAnswer struct {
	Question       string      `json:"question"`
	Answer         string      `json:"answer"`
	RelevantChunks []Utterance `json:"relevant_chunks"`
	Degraded       bool        `json:"degraded,omitempty"`
}

type SpeakerSummary struct {
	Speaker    string `json:"speaker"`
	Utterances int    `json:"utterances"`
	Positive   int    `json:"positive"`
	Neutral    int    `json:"neutral"`
	Negative   int    `json:"negative"`
	Pending    int    `json:"pending"`
}
