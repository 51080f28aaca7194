package ingest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/require"
)

// sine returns n 16-bit samples of a tone at the given amplitude in [0, 1].
func sine(n int, amplitude float64) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = int(amplitude * 32767 * math.Sin(2*math.Pi*440*float64(i)/16000))
	}
	return out
}

func wavBytes(t *testing.T, samples []int, rate int) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chunk.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: rate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	require.NoError(t, enc.Write(buf))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func pcmBytes(samples []int, order binary.ByteOrder) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		order.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}
