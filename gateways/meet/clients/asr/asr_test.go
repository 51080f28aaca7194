package asr

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/services/asr/server"
	"github.com/xilidan/meetings/services/asr/usecase"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/provider"
)

func TestClientTranscribes(t *testing.T) {
	backend := provider.TranscriberFunc(func(_ context.Context, audio []byte, mimeType string) (entity.Transcription, error) {
		return entity.Transcription{Text: mimeType, DurationSeconds: float64(len(audio))}, nil
	})

	lis := bufconn.Listen(1 << 20)
	srv, err := server.NewServerOptions(usecase.New(backend, 0, logger.Nop()), 0, logger.Nop()).NewServer()
	require.NoError(t, err)
	go func() { _ = srv.Serve(lis) }()
	defer srv.Stop()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)

	c := NewFromConn(conn)
	defer c.Close()

	var tr provider.Transcriber = c
	res, err := tr.Transcribe(context.Background(), []byte("four"), "audio/ogg")
	require.NoError(t, err)
	assert.Equal(t, entity.Transcription{Text: "audio/ogg", DurationSeconds: 4}, res)

	_, err = tr.Transcribe(context.Background(), nil, "audio/ogg")
	assert.ErrorContains(t, err, "asr service")
}
