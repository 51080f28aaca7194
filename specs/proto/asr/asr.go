// Package asr declares the asr.v1.AsrService gRPC contract. Requests and
// responses use protobuf well-known types, so no generated message code is
// needed: the audio travels as a BytesValue with its MIME type in metadata,
// and the result is a Struct with text, duration_seconds and confidence.
package asr

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName           = "asr.v1.AsrService"
	TranscribeAudioMethod = "/asr.v1.AsrService/TranscribeAudio"

	// Metadata keys carried with TranscribeAudio.
	MimeTypeKey  = "x-audio-mime-type"
	MeetingIDKey = "x-meeting-id"

	FieldText            = "text"
	FieldDurationSeconds = "duration_seconds"
	FieldConfidence      = "confidence"
)

type AsrServiceServer interface {
	TranscribeAudio(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
}

type UnimplementedAsrServiceServer struct{}

func (UnimplementedAsrServiceServer) TranscribeAudio(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method TranscribeAudio not implemented")
}

func RegisterAsrServiceServer(s grpc.ServiceRegistrar, srv AsrServiceServer) {
	s.RegisterService(&AsrService_ServiceDesc, srv)
}

func _AsrService_TranscribeAudio_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AsrServiceServer).TranscribeAudio(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TranscribeAudioMethod,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AsrServiceServer).TranscribeAudio(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

var AsrService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AsrServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "TranscribeAudio",
			Handler:    _AsrService_TranscribeAudio_Handler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "asr/v1/asr.proto",
}

type AsrServiceClient interface {
	TranscribeAudio(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type asrServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewAsrServiceClient(cc grpc.ClientConnInterface) AsrServiceClient {
	return &asrServiceClient{cc: cc}
}

func (c *asrServiceClient) TranscribeAudio(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, TranscribeAudioMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TranscribeResult is the decoded TranscribeAudio response.
type TranscribeResult struct {
	Text            string
	DurationSeconds float64
	Confidence      float64
}

func NewTranscribeResponse(r TranscribeResult) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldText:            structpb.NewStringValue(r.Text),
		FieldDurationSeconds: structpb.NewNumberValue(r.DurationSeconds),
		FieldConfidence:      structpb.NewNumberValue(r.Confidence),
	}}
}

// ParseTranscribeResponse requires a string text field; the numeric fields
// default to zero.
func ParseTranscribeResponse(s *structpb.Struct) (TranscribeResult, error) {
	if s == nil {
		return TranscribeResult{}, fmt.Errorf("empty response")
	}

	text, ok := s.GetFields()[FieldText]
	if !ok {
		return TranscribeResult{}, fmt.Errorf("response has no %q field", FieldText)
	}
	if _, isString := text.GetKind().(*structpb.Value_StringValue); !isString {
		return TranscribeResult{}, fmt.Errorf("response field %q is not a string", FieldText)
	}

	return TranscribeResult{
		Text:            text.GetStringValue(),
		DurationSeconds: s.GetFields()[FieldDurationSeconds].GetNumberValue(),
		Confidence:      s.GetFields()[FieldConfidence].GetNumberValue(),
	}, nil
}
