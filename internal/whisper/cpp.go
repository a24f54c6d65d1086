//go:build !nowhispercpp

package whisper

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	whispercpp "github.com/ggerganov/whisper.cpp/bindings/go"
)

type cppModel struct {
	mu  sync.Mutex
	ctx *whispercpp.Context
}

// OpenCPP loads ggml weights with the whisper.cpp bindings. Compute precision
// and acceleration are whatever whisper.cpp was built with.
func OpenCPP(path string) (Model, error) {
	ctx := whispercpp.Whisper_init(path)
	if ctx == nil {
		return nil, fmt.Errorf("load whisper model %q: whisper_init failed", path)
	}
	return &cppModel{ctx: ctx}, nil
}

func (m *cppModel) Transcribe(ctx context.Context, samples []float32, opts Options) (Transcript, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Transcript{}, err
	}
	if m.ctx == nil {
		return Transcript{}, fmt.Errorf("%w: model closed", ErrModelUnavailable)
	}
	if len(samples) == 0 {
		return Transcript{}, nil
	}

	settings := newDecodeParams(opts, runtime.NumCPU())
	strategy := whispercpp.SAMPLING_GREEDY
	if settings.BeamSearch {
		strategy = whispercpp.SAMPLING_BEAM_SEARCH
	}

	params := m.ctx.Whisper_full_default_params(strategy)
	params.SetTranslate(false)
	params.SetPrintSpecial(false)
	params.SetPrintProgress(false)
	params.SetPrintRealtime(false)
	params.SetPrintTimestamps(false)
	params.SetNoContext(true)
	params.SetThreads(settings.Threads)
	params.SetBeamSize(settings.BeamSize)

	languageID := -1
	if settings.Language != "auto" {
		languageID = m.ctx.Whisper_lang_id(settings.Language)
		if languageID < 0 {
			return Transcript{}, fmt.Errorf("unsupported language %q", settings.Language)
		}
	}
	if err := params.SetLanguage(languageID); err != nil {
		return Transcript{}, fmt.Errorf("set language %q: %w", settings.Language, err)
	}

	// The encoder-begin hook is the one point where whisper.cpp can be told
	// to stop.
	proceed := func() bool { return ctx.Err() == nil }
	if err := m.ctx.Whisper_full(params, samples, proceed, nil, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Transcript{}, ctxErr
		}
		return Transcript{}, fmt.Errorf("process: %w", err)
	}

	var out Transcript
	n := m.ctx.Whisper_full_n_segments()
	for i := range n {
		out.Segments = append(out.Segments, Segment{
			Start: time.Duration(m.ctx.Whisper_full_get_segment_t0(i)) * 10 * time.Millisecond,
			End:   time.Duration(m.ctx.Whisper_full_get_segment_t1(i)) * 10 * time.Millisecond,
			Text:  m.ctx.Whisper_full_get_segment_text(i),
		})
	}

	if id := m.ctx.Whisper_full_lang_id(); id >= 0 {
		out.Language = whispercpp.Whisper_lang_str(id)
	} else if settings.Language != "auto" {
		out.Language = settings.Language
	}
	return out, nil
}

func (m *cppModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ctx != nil {
		m.ctx.Whisper_free()
		m.ctx = nil
	}
	return nil
}
