// Package provider defines the speech-to-text and language-model adapter
// contracts and the decorators shared by every backend.
package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/xilidan/meetings/pkg/errors"
	"github.com/xilidan/meetings/services/meeting/entity"
	"github.com/xilidan/meetings/services/meeting/observability"
)

// Transcriber converts one audio chunk to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error)
}

// Generator completes a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// SpeakerResolver maps a chunk to an enrolled voice, if any.
type SpeakerResolver interface {
	Identify(ctx context.Context, audio []byte) (string, bool)
}

type TranscriberFunc func(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error)

func (f TranscriberFunc) Transcribe(ctx context.Context, audio []byte, mimeType string) (entity.Transcription, error) {
	return f(ctx, audio, mimeType)
}

type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type instrumentedTranscriber struct {
	next    Transcriber
	name    string
	timeout time.Duration
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// InstrumentTranscriber bounds each call by timeout, records latency and a
// span, and classifies every failure as errors.ErrTranscription.
func InstrumentTranscriber(next Transcriber, name string, timeout time.Duration, metrics *observability.Metrics) Transcriber {
	return &instrumentedTranscriber{
		next:    next,
		name:    name,
		timeout: timeout,
		metrics: metrics,
		tracer:  observability.NewTracer(),
	}
}

func (t *instrumentedTranscriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (res entity.Transcription, err error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	ctx, span := t.tracer.StartTranscribeSpan(ctx, t.name, mimeType, len(audio))
	started := time.Now()
	defer func() {
		t.metrics.ObserveBackend(observability.BackendSTT, t.name, started, err)
		observability.End(span, err)
	}()

	res, err = t.next.Transcribe(ctx, audio, mimeType)
	if err != nil {
		if errors.IsTranscription(err) {
			return entity.Transcription{}, err
		}
		return entity.Transcription{}, fmt.Errorf("%s: %v: %w", t.name, err, errors.ErrTranscription)
	}
	return res, nil
}

type instrumentedGenerator struct {
	next    Generator
	name    string
	timeout time.Duration
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// InstrumentGenerator is the language-model counterpart of
// InstrumentTranscriber; failures become errors.ErrGeneration.
func InstrumentGenerator(next Generator, name string, timeout time.Duration, metrics *observability.Metrics) Generator {
	return &instrumentedGenerator{
		next:    next,
		name:    name,
		timeout: timeout,
		metrics: metrics,
		tracer:  observability.NewTracer(),
	}
}

func (g *instrumentedGenerator) Generate(ctx context.Context, prompt string) (out string, err error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	ctx, span := g.tracer.StartGenerateSpan(ctx, g.name, "generate")
	started := time.Now()
	defer func() {
		g.metrics.ObserveBackend(observability.BackendLLM, g.name, started, err)
		observability.End(span, err)
	}()

	out, err = g.next.Generate(ctx, prompt)
	if err != nil {
		if errors.IsGeneration(err) {
			return "", err
		}
		return "", fmt.Errorf("%s: %v: %w", g.name, err, errors.ErrGeneration)
	}
	return out, nil
}
