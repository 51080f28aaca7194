package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xilidan/meetings/services/meeting/entity"
)

// MockTranscriber returns a placeholder transcript, for local runs without a
// speech backend.
type MockTranscriber struct{}

func (MockTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error) {
	if err := ctx.Err(); err != nil {
		return entity.Transcription{}, err
	}
	return entity.Transcription{
		Text:       fmt.Sprintf("Placeholder transcript for %d bytes of %s", len(audio), mimeType),
		Confidence: 1,
	}, nil
}

// MockGenerator answers every prompt with a well-formed JSON document. For
// summaries it echoes the first transcript lines as key points.
type MockGenerator struct{}

func (MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var doc map[string]any
	switch {
	case strings.Contains(prompt, `"sentiments"`):
		doc = map[string]any{"sentiments": []any{}}
	case strings.Contains(prompt, `"answer"`):
		doc = map[string]any{"answer": "The local model is not configured; see the relevant transcript excerpts."}
	default:
		doc = map[string]any{
			"summary":      "Summary unavailable: no language model is configured.",
			"key_points":   transcriptLines(prompt, 5),
			"decisions":    []any{},
			"action_items": []any{},
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// transcriptLines returns up to n "[mm:ss] Speaker: text" lines from prompt
// without their timestamp.
func transcriptLines(prompt string, n int) []string {
	out := []string{}
	for _, line := range strings.Split(prompt, "\n") {
		if len(out) == n {
			break
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "[") {
			continue
		}
		if i := strings.Index(line, "] "); i > 0 {
			out = append(out, line[i+2:])
		}
	}
	return out
}
