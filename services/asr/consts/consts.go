package consts

const (
	DefaultMimeType   = "audio/webm"
	DefaultSampleRate = 16000
	MaxAudioSize      = 25 * 1024 * 1024 // 25MB, the Whisper upload limit
)

// SupportedMimeTypes are the media types the backend accepts, without
// parameters.
var SupportedMimeTypes = map[string]struct{}{
	"audio/webm":   {},
	"video/webm":   {},
	"audio/ogg":    {},
	"audio/mpeg":   {},
	"audio/mp3":    {},
	"audio/mp4":    {},
	"audio/x-m4a":  {},
	"audio/wav":    {},
	"audio/x-wav":  {},
	"audio/wave":   {},
	"audio/flac":   {},
	"audio/x-flac": {},
}
