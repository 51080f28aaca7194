package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/asr/consts"
	"github.com/xilidan/meetings/services/asr/entity"
	"github.com/xilidan/meetings/services/meeting/provider"
)

type Usecase interface {
	TranscribeAudio(ctx context.Context, req *entity.TranscribeAudioRequest) (*entity.TranscribeAudioResponse, error)
}

type usecase struct {
	backend provider.Transcriber
	maxSize int
	log     *slog.Logger
}

func New(backend provider.Transcriber, maxSize int, log *slog.Logger) Usecase {
	if maxSize <= 0 {
		maxSize = consts.MaxAudioSize
	}
	return &usecase{
		backend: backend,
		maxSize: maxSize,
		log:     log.With(slog.String("component", "asr_usecase")),
	}
}

func (u *usecase) TranscribeAudio(ctx context.Context, req *entity.TranscribeAudioRequest) (*entity.TranscribeAudioResponse, error) {
	if len(req.AudioData) == 0 {
		return nil, fmt.Errorf("audio data is empty: %w", errors.ErrValidation)
	}
	if len(req.AudioData) > u.maxSize {
		return nil, fmt.Errorf("audio exceeds %d bytes: %w", u.maxSize, errors.ErrValidation)
	}

	mimeType := strings.TrimSpace(req.MimeType)
	if mimeType == "" {
		mimeType = consts.DefaultMimeType
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return nil, fmt.Errorf("invalid mime type %q: %w", mimeType, errors.ErrValidation)
	}
	if _, ok := consts.SupportedMimeTypes[mediaType]; !ok {
		return nil, fmt.Errorf("unsupported mime type %q: %w", mediaType, errors.ErrValidation)
	}

	u.log.Debug("transcribing audio",
		slog.String("meeting_id", req.MeetingID),
		slog.String("mime_type", mimeType),
		slog.Int("bytes", len(req.AudioData)),
	)

	res, err := u.backend.Transcribe(ctx, req.AudioData, mimeType)
	if err != nil {
		u.log.Error("transcription failed",
			slog.String("meeting_id", req.MeetingID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	u.log.Info("audio transcribed",
		slog.String("meeting_id", req.MeetingID),
		slog.Int("text_length", len(res.Text)),
		slog.Float64("duration", res.DurationSeconds),
	)
	return &entity.TranscribeAudioResponse{
		Text:            res.Text,
		MeetingID:       req.MeetingID,
		DurationSeconds: res.DurationSeconds,
		Confidence:      res.Confidence,
	}, nil
}
