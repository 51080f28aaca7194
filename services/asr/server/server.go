package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/asr/entity"
	"github.com/xilidan/meetings/services/asr/usecase"
	pb "github.com/xilidan/meetings/specs/proto/asr"
)

type Server struct {
	pb.UnimplementedAsrServiceServer

	usecase usecase.Usecase
	maxSize int
	log     *slog.Logger
}

func NewServerOptions(usecase usecase.Usecase, maxSize int, log *slog.Logger) *Server {
	return &Server{
		usecase: usecase,
		maxSize: maxSize,
		log:     log,
	}
}

// NewServer registers the ASR and standard health services. The receive
// limit leaves headroom over maxSize for message framing.
func (s *Server) NewServer() (*grpc.Server, error) {
	opts := []grpc.ServerOption{}
	if s.maxSize > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(s.maxSize+1<<20))
	}

	srv := grpc.NewServer(opts...)
	pb.RegisterAsrServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(pb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	return srv, nil
}

func (s *Server) TranscribeAudio(ctx context.Context, req *wrapperspb.BytesValue) (*structpb.Struct, error) {
	md, _ := metadata.FromIncomingContext(ctx)

	result, err := s.usecase.TranscribeAudio(ctx, &entity.TranscribeAudioRequest{
		AudioData: req.GetValue(),
		MeetingID: first(md, pb.MeetingIDKey),
		MimeType:  first(md, pb.MimeTypeKey),
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return pb.NewTranscribeResponse(pb.TranscribeResult{
		Text:            result.Text,
		DurationSeconds: result.DurationSeconds,
		Confidence:      result.Confidence,
	}), nil
}

func first(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func toStatus(err error) error {
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.KindTranscription:
		return status.Error(codes.Unavailable, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}
