// Package whisper resolves, downloads and loads whisper ggml models and runs
// inference through a Model.
package whisper

import (
	"context"
	"errors"
	"time"
)

var ErrModelUnavailable = errors.New("speech model unavailable")

type Segment struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

// Transcript is the raw model output. Language is the detected (or forced)
// language code and may be empty.
type Transcript struct {
	Segments []Segment
	Language string
}

type Options struct {
	// Language is a code such as "en", or "auto" to detect it.
	Language string
	// BeamSize is the beam-search width; 0 means DefaultBeamSize and 1 means
	// greedy decoding.
	BeamSize int
	Threads  int
}

// Model runs inference on 16 kHz mono float32 samples. Implementations must
// be safe for use by one caller at a time; the whisper.cpp binding serializes
// calls internally.
type Model interface {
	Transcribe(ctx context.Context, samples []float32, opts Options) (Transcript, error)
	Close() error
}

// Opener constructs a Model from a weight file.
type Opener func(path string) (Model, error)
