// Package openai wraps go-openai for speech-to-text and chat completion
// against OpenAI or any OpenAI-compatible server such as Ollama.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultTranscriptionModel = openai.Whisper1
	DefaultChatModel          = "gpt-4o-mini"
	DefaultOllamaURL          = "http://localhost:11434"
)

type Config struct {
	APIKey  string
	BaseURL string
	// Ollama points BaseURL at the server's OpenAI-compatible /v1 API.
	Ollama             bool
	ChatModel          string
	TranscriptionModel string
	Temperature        float32
	MaxTokens          int
	JSONMode           bool
}

type Client struct {
	cli *openai.Client
	cfg Config
}

func New(cfg Config) *Client {
	if cfg.ChatModel == "" {
		cfg.ChatModel = DefaultChatModel
	}
	if cfg.TranscriptionModel == "" {
		cfg.TranscriptionModel = DefaultTranscriptionModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Ollama {
		base := strings.TrimRight(cfg.BaseURL, "/")
		if base == "" {
			base = DefaultOllamaURL
		}
		if !strings.HasSuffix(base, "/v1") {
			base += "/v1"
		}
		clientConfig.BaseURL = base
	} else if cfg.BaseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	return &Client{cli: openai.NewClientWithConfig(clientConfig), cfg: cfg}
}

type Transcript struct {
	Text     string
	Duration float64
}

// Transcribe sends one audio chunk to the transcription endpoint. The file
// name extension is derived from mimeType, which the API uses to pick a
// decoder.
func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (Transcript, error) {
	resp, err := c.cli.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.cfg.TranscriptionModel,
		FilePath: "chunk" + Extension(mimeType),
		Reader:   bytes.NewReader(audio),
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("transcription request failed: %w", err)
	}
	return Transcript{Text: strings.TrimSpace(resp.Text), Duration: resp.Duration}, nil
}

// Complete runs a single-turn chat completion and returns the first choice.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: c.cfg.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if c.cfg.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := c.cli.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var extensions = map[string]string{
	"audio/webm":   ".webm",
	"video/webm":   ".webm",
	"audio/ogg":    ".ogg",
	"audio/mpeg":   ".mp3",
	"audio/mp3":    ".mp3",
	"audio/mp4":    ".m4a",
	"audio/x-m4a":  ".m4a",
	"audio/wav":    ".wav",
	"audio/x-wav":  ".wav",
	"audio/wave":   ".wav",
	"audio/flac":   ".flac",
	"audio/x-flac": ".flac",
}

// Extension maps an audio MIME type to a file extension, defaulting to .webm.
func Extension(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return ".webm"
	}
	if ext, ok := extensions[mediaType]; ok {
		return ext
	}
	return ".webm"
}
