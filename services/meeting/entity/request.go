package entity

type StartMeetingRequest struct {
	Name         string   `json:"name"`
	Participants []string `json:"participants"`
}

type AudioChunkRequest struct {
	MeetingID string
	Data      []byte
	MimeType  string
	Speaker   string
	Async     bool
}

type TextChunkRequest struct {
	MeetingID string `json:"-"`
	Speaker   string `json:"speaker"`
	Text      string `json:"text"`
}

type QueryRequest struct {
	Question string `json:"question"`
}

// TranscriptView is an incremental transcript read. UtteranceCount is the
// size of the whole transcript at read time.
type TranscriptView struct {
	MeetingID      string      `json:"meeting_id"`
	Since          int         `json:"since"`
	UtteranceCount int         `json:"utterance_count"`
	Utterances     []Utterance `json:"utterances"`
}
