package ingest

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPCM(t *testing.T) {
	pcm := pcmBytes(sine(8000, 0.5), binary.LittleEndian)

	data, mimeType, err := wrapPCM(pcm, "audio/pcm;rate=8000", DefaultSampleRate)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", mimeType)
	assert.Equal(t, "RIFF", string(data[:4]))

	a := NewDetector(0, 0).Analyze(data, mimeType)
	assert.Equal(t, VerdictSpeech, a.Verdict)
	assert.InDelta(t, 1.0, a.Duration, 0.001)

	original := NewDetector(0, 0).Analyze(pcm, "audio/pcm;rate=8000")
	assert.InDelta(t, original.RMS, a.RMS, 1e-6)
}

func TestWrapPCMBigEndian(t *testing.T) {
	pcm := pcmBytes(sine(1600, 0.5), binary.BigEndian)

	data, mimeType, err := wrapPCM(pcm, "audio/L16; rate=16000", DefaultSampleRate)
	require.NoError(t, err)
	assert.Equal(t, "audio/wav", mimeType)

	a := NewDetector(0, 0).Analyze(data, mimeType)
	assert.InDelta(t, 0.1, a.Duration, 0.001)
	assert.InDelta(t, NewDetector(0, 0).Analyze(pcm, "audio/l16").RMS, a.RMS, 1e-6)
}

func TestWrapPCMLeavesOtherFormats(t *testing.T) {
	in := []byte("webm bytes")
	data, mimeType, err := wrapPCM(in, "audio/webm;codecs=opus", DefaultSampleRate)
	require.NoError(t, err)
	assert.Equal(t, in, data)
	assert.Equal(t, "audio/webm;codecs=opus", mimeType)
}

func TestWriteSeeker(t *testing.T) {
	w := &writeSeeker{}
	_, _ = w.Write([]byte("hello world"))
	_, err := w.Seek(0, 0)
	require.NoError(t, err)
	_, _ = w.Write([]byte("J"))
	assert.Equal(t, "Jello world", string(w.buf))

	_, err = w.Seek(-1, 0)
	assert.Error(t, err)
}
