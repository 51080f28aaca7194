package provider

import (
	"context"

	"github.com/xilidan/meetings/pkg/openai"
	"github.com/xilidan/meetings/services/meeting/entity"
)

// OpenAI adapts pkg/openai to both Transcriber and Generator.
type OpenAI struct {
	client *openai.Client
}

func NewOpenAI(client *openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

func (o *OpenAI) Transcribe(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error) {
	res, err := o.client.Transcribe(ctx, audio, mimeType)
	if err != nil {
		return entity.Transcription{}, err
	}
	return entity.Transcription{Text: res.Text, DurationSeconds: res.Duration}, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	return o.client.Complete(ctx, prompt)
}
