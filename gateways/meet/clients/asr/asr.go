package asr

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xilidan/meetings/services/meeting/entity"
	pb "github.com/xilidan/meetings/specs/proto/asr"
)

type Client struct {
	conn *grpc.ClientConn
	pb.AsrServiceClient
}

func New(address string, maxMsgSize int) (*Client, error) {
	opts := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if maxMsgSize > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(maxMsgSize+1<<20)))
	}

	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc connection: %w", err)
	}

	return NewFromConn(conn), nil
}

func NewFromConn(conn *grpc.ClientConn) *Client {
	return &Client{
		conn:             conn,
		AsrServiceClient: pb.NewAsrServiceClient(conn),
	}
}

// Transcribe implements provider.Transcriber over the ASR service.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, pb.MimeTypeKey, mimeType)

	resp, err := c.TranscribeAudio(ctx, wrapperspb.Bytes(audio))
	if err != nil {
		return entity.Transcription{}, fmt.Errorf("asr service: %w", err)
	}

	res, err := pb.ParseTranscribeResponse(resp)
	if err != nil {
		return entity.Transcription{}, fmt.Errorf("asr service: %w", err)
	}
	return entity.Transcription{
		Text:            res.Text,
		DurationSeconds: res.DurationSeconds,
		Confidence:      res.Confidence,
	}, nil
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
