package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/pkg/logger"
	"github.com/xilidan/meetings/services/asr/consts"
	"github.com/xilidan/meetings/services/asr/entity"
	meeting "github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/provider"
)

func TestTranscribeAudioDefaultsMime(t *testing.T) {
	var gotMime string
	u := New(provider.TranscriberFunc(func(_ context.Context, _ []byte, mimeType string) (meeting.Transcription, error) {
		gotMime = mimeType
		return meeting.Transcription{Text: "hi"}, nil
	}), 0, logger.Nop())

	res, err := u.TranscribeAudio(context.Background(), &entity.TranscribeAudioRequest{AudioData: []byte{1}, MeetingID: "m1"})
	require.NoError(t, err)
	assert.Equal(t, consts.DefaultMimeType, gotMime)
	assert.Equal(t, "m1", res.MeetingID)
	assert.Equal(t, "hi", res.Text)
}

func TestTranscribeAudioValidation(t *testing.T) {
	u := New(provider.MockTranscriber{}, 4, logger.Nop())
	ctx := context.Background()

	for _, req := range []*entity.TranscribeAudioRequest{
		{},
		{AudioData: []byte{1, 2, 3, 4, 5}},
		{AudioData: []byte{1}, MimeType: "image/png"},
		{AudioData: []byte{1}, MimeType: ";;"},
	} {
		_, err := u.TranscribeAudio(ctx, req)
		assert.True(t, errors.IsValidation(err))
	}

	_, err := u.TranscribeAudio(ctx, &entity.TranscribeAudioRequest{AudioData: []byte{1}, MimeType: "audio/webm;codecs=opus"})
	assert.NoError(t, err)
}
