package ingest

import (
	"bytes"
	"encoding/binary"
	"math"
	"mime"
	"strconv"
	"strings"

	"github.com/go-audio/wav"
)

const (
	DefaultSilenceThreshold = 0.0001
	DefaultSampleRate       = 16000
)

type Verdict int

const (
	// VerdictUnknown means the format cannot be decoded locally; the chunk
	// goes to speech-to-text.
	VerdictUnknown Verdict = iota
	VerdictSilence
	VerdictSpeech
)

func (v Verdict) String() string {
	switch v {
	case VerdictSilence:
		return "silence"
	case VerdictSpeech:
		return "speech"
	}
	return "unknown"
}

type Analysis struct {
	Verdict  Verdict
	RMS      float64
	Duration float64
}

// Detector is an RMS energy voice-activity detector over decodable PCM.
type Detector struct {
	Threshold   float64
	DefaultRate int
}

func NewDetector(threshold float64, defaultRate int) Detector {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	if defaultRate <= 0 {
		defaultRate = DefaultSampleRate
	}
	return Detector{Threshold: threshold, DefaultRate: defaultRate}
}

func (d Detector) Analyze(audio []byte, mimeType string) Analysis {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return Analysis{Verdict: VerdictUnknown}
	}

	var (
		samples []float64
		rate    int
		ok      bool
	)
	switch mediaType {
	case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
		samples, rate, ok = decodeWAV(audio)
	case "audio/l16":
		samples, rate, ok = decodePCM16(audio, params, d.DefaultRate, binary.BigEndian)
	case "audio/pcm", "audio/x-pcm", "audio/raw":
		samples, rate, ok = decodePCM16(audio, params, d.DefaultRate, binary.LittleEndian)
	}
	if !ok {
		return Analysis{Verdict: VerdictUnknown}
	}

	a := Analysis{RMS: rms(samples)}
	if rate > 0 {
		a.Duration = float64(len(samples)) / float64(rate)
	}
	if len(samples) == 0 || a.RMS < d.Threshold {
		a.Verdict = VerdictSilence
	} else {
		a.Verdict = VerdictSpeech
	}
	return a
}

// decodeWAV returns mono-mixed samples in [-1, 1] and the sample rate.
func decodeWAV(audio []byte) ([]float64, int, bool) {
	dec := wav.NewDecoder(bytes.NewReader(audio))
	if !dec.IsValidFile() {
		return nil, 0, false
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil || buf == nil || buf.Format == nil {
		return nil, 0, false
	}

	depth := buf.SourceBitDepth
	if depth == 0 {
		depth = int(dec.BitDepth)
	}
	if depth < 8 || depth > 32 {
		return nil, 0, false
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	scale := float64(int64(1) << (depth - 1))
	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			v := float64(buf.Data[i*channels+c])
			if depth == 8 {
				v -= 128
			}
			sum += v / scale
		}
		samples[i] = sum / float64(channels)
	}
	return samples, buf.Format.SampleRate, true
}

func decodePCM16(audio []byte, params map[string]string, defaultRate int, order binary.ByteOrder) ([]float64, int, bool) {
	rate := defaultRate
	if r, err := strconv.Atoi(strings.TrimSpace(params["rate"])); err == nil && r > 0 {
		rate = r
	}
	channels := 1
	if c, err := strconv.Atoi(strings.TrimSpace(params["channels"])); err == nil && c > 0 {
		channels = c
	}

	frameBytes := 2 * channels
	frames := len(audio) / frameBytes
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			off := i*frameBytes + 2*c
			sum += float64(int16(order.Uint16(audio[off:off+2]))) / 32768
		}
		samples[i] = sum / float64(channels)
	}
	return samples, rate, true
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}
