// Package transcribe turns an audio file into text with a loaded whisper
// model.
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/whisper"
)

var ErrInference = errors.New("transcription failed")

// Result is the final transcript. Text may be empty; Language is the code the
// model reported, or "" when it reported none.
type Result struct {
	Text     string
	Language string
}

// SampleLoader decodes an audio file into 16 kHz mono float32 samples.
type SampleLoader interface {
	Load(ctx context.Context, path string) ([]float32, error)
}

type Engine struct {
	Loader  SampleLoader
	Options whisper.Options
	Logger  *zap.Logger
}

func New(loader SampleLoader, opts whisper.Options, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Loader: loader, Options: opts, Logger: logger}
}

// Transcribe loads path and runs inference on handle's model. Decode errors
// are returned as-is; model errors wrap ErrInference.
func (e *Engine) Transcribe(ctx context.Context, handle *whisper.Handle, path string) (Result, error) {
	if handle == nil || handle.Model == nil {
		return Result{}, fmt.Errorf("%w: no model loaded", ErrInference)
	}

	samples, err := e.Loader.Load(ctx, path)
	if err != nil {
		return Result{}, err
	}

	return e.TranscribeSamples(ctx, handle.Model, samples)
}

// TranscribeSamples runs the model and joins its segments with single spaces.
func (e *Engine) TranscribeSamples(ctx context.Context, model whisper.Model, samples []float32) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	logger := e.logger()
	logger.Debug("running inference",
		zap.Int("samples", len(samples)),
		zap.String("language", e.Options.Language),
		zap.Int("beam_size", e.Options.BeamSize),
	)

	started := time.Now()
	transcript, err := infer(ctx, model, samples, e.Options)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		logger.Warn("inference failed", zap.Duration("elapsed", time.Since(started)), zap.Error(err))
		return Result{}, fmt.Errorf("%w: %w", ErrInference, err)
	}

	result := Result{
		Text:     JoinSegments(transcript.Segments),
		Language: strings.TrimSpace(transcript.Language),
	}
	logger.Debug("inference finished",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("segments", len(transcript.Segments)),
		zap.String("language", result.Language),
	)
	return result, nil
}

// JoinSegments concatenates segment texts with single spaces and trims the
// result.
func JoinSegments(segments []whisper.Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func infer(ctx context.Context, model whisper.Model, samples []float32, opts whisper.Options) (transcript whisper.Transcript, err error) {
	defer func() {
		if r := recover(); r != nil {
			transcript = whisper.Transcript{}
			err = fmt.Errorf("model panicked: %v", r)
		}
	}()
	return model.Transcribe(ctx, samples, opts)
}

func (e *Engine) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
