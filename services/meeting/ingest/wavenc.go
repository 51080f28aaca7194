package ingest

import (
	"encoding/binary"
	"errors"
	"io"
	"mime"
	"strconv"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wrapPCM packs raw 16-bit PCM into a WAV container, since speech backends
// reject headerless audio. Other formats are returned unchanged.
func wrapPCM(data []byte, mimeType string, defaultRate int) ([]byte, string, error) {
	mediaType, params, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return data, mimeType, nil
	}

	var order binary.ByteOrder
	switch mediaType {
	case "audio/l16":
		order = binary.BigEndian
	case "audio/pcm", "audio/x-pcm", "audio/raw":
		order = binary.LittleEndian
	default:
		return data, mimeType, nil
	}

	rate := defaultRate
	if r, err := strconv.Atoi(strings.TrimSpace(params["rate"])); err == nil && r > 0 {
		rate = r
	}
	channels := 1
	if c, err := strconv.Atoi(strings.TrimSpace(params["channels"])); err == nil && c > 0 {
		channels = c
	}

	n := (len(data) / (2 * channels)) * channels
	samples := make([]int, n)
	for i := range samples {
		samples[i] = int(int16(order.Uint16(data[2*i : 2*i+2])))
	}

	out := &writeSeeker{}
	enc := wav.NewEncoder(out, rate, 16, channels, 1)
	if err := enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}); err != nil {
		return nil, "", err
	}
	if err := enc.Close(); err != nil {
		return nil, "", err
	}
	return out.buf, "audio/wav", nil
}

// writeSeeker is an in-memory io.WriteSeeker for the WAV encoder, which
// seeks back to patch chunk sizes.
type writeSeeker struct {
	buf []byte
	pos int
}

func (w *writeSeeker) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return len(p), nil
}

func (w *writeSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(w.pos)
	case io.SeekEnd:
		base = int64(len(w.buf))
	default:
		return 0, errors.New("invalid whence")
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(next)
	return next, nil
}
