package entity

type TranscribeAudioRequest struct {
	AudioData []byte
	MeetingID string
	MimeType  string
}

type TranscribeAudioResponse struct {
	Text            string
	MeetingID       string
	DurationSeconds float64
	Confidence      float64
}
