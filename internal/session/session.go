// Package session runs one voice-to-text request at a time: make sure the
// model is loaded, acquire audio from the microphone or a chosen file, and
// transcribe it.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/whisper"
)

type State string

const (
	StateIdle                State = "idle"
	StateEnsuringModel       State = "ensuring_model"
	StateModelFailed         State = "model_failed"
	StateAcquiringAudio      State = "acquiring_audio"
	StateAcquisitionFailed   State = "acquisition_failed"
	StateNoFileChosen        State = "no_file_chosen"
	StateTranscribing        State = "transcribing"
	StateTranscriptionFailed State = "transcription_failed"
	StateDone                State = "done"
)

// Terminal reports whether no further transitions follow s.
func (s State) Terminal() bool {
	switch s {
	case StateModelFailed, StateAcquisitionFailed, StateNoFileChosen, StateTranscriptionFailed, StateDone:
		return true
	default:
		return false
	}
}

type SourceKind string

const (
	SourceMicrophone SourceKind = "microphone"
	SourceFile       SourceKind = "file"
)

// RecordingName labels microphone transcripts.
const RecordingName = "Recording"

type Source struct {
	Kind SourceKind
	// Name is RecordingName or the chosen file's base name.
	Name    string
	Path    string
	Seconds int
}

type Outcome struct {
	RequestID string
	State     State
	Source    Source
	Result    transcribe.Result
	Err       *Error
	Elapsed   time.Duration
}

func (o Outcome) OK() bool {
	return o.State == StateDone && o.Err == nil
}

// Event is one state transition, delivered to the observer.
type Event struct {
	RequestID string
	State     State
	Source    Source
}

type Observer func(Event)

type ModelProvider interface {
	EnsureLoaded(ctx context.Context) (*whisper.Handle, error)
}

type Recorder interface {
	Record(ctx context.Context, seconds int) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, handle *whisper.Handle, path string) (transcribe.Result, error)
}

// PickFunc asks the user for a file. An empty path means the user cancelled.
type PickFunc func(ctx context.Context) (string, error)

type Orchestrator struct {
	models      ModelProvider
	recorder    Recorder
	transcriber Transcriber

	logger   *zap.Logger
	observer Observer
	remove   func(string) error
	newID    func() string

	running sync.Mutex
}

type Option func(*Orchestrator)

func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		o.observer = observer
	}
}

// WithRemove replaces os.Remove for deleting recordings.
func WithRemove(remove func(string) error) Option {
	return func(o *Orchestrator) {
		if remove != nil {
			o.remove = remove
		}
	}
}

func New(models ModelProvider, recorder Recorder, transcriber Transcriber, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		models:      models,
		recorder:    recorder,
		transcriber: transcriber,
		logger:      zap.NewNop(),
		remove:      os.Remove,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RecordAndTranscribe records seconds of microphone audio and transcribes
// it. The recording is deleted afterwards whatever the outcome.
func (o *Orchestrator) RecordAndTranscribe(ctx context.Context, seconds int) Outcome {
	source := Source{Kind: SourceMicrophone, Name: RecordingName, Seconds: seconds}
	req, ok := o.begin(source)
	if !ok {
		return req.busy()
	}
	defer o.running.Unlock()

	handle, failed := req.ensureModel(ctx, o.models)
	if failed {
		return req.outcome
	}

	req.transition(StateAcquiringAudio)
	path, err := o.recorder.Record(ctx, seconds)
	if err != nil {
		return req.fail(StateAcquisitionFailed, classify(err, KindDeviceUnavailable), err)
	}
	req.outcome.Source.Path = path

	return req.transcribe(ctx, o.transcriber, handle, path, func() { o.cleanup(req, path) })
}

// TranscribeFile asks pick for a path and transcribes that file. The file is
// never deleted. An empty path ends the request in StateNoFileChosen without
// an error.
func (o *Orchestrator) TranscribeFile(ctx context.Context, pick PickFunc) Outcome {
	req, ok := o.begin(Source{Kind: SourceFile})
	if !ok {
		return req.busy()
	}
	defer o.running.Unlock()

	handle, failed := req.ensureModel(ctx, o.models)
	if failed {
		return req.outcome
	}

	req.transition(StateAcquiringAudio)
	path, err := pick(ctx)
	if err != nil {
		return req.fail(StateAcquisitionFailed, classify(err, KindSelectionFailed), err)
	}

	path = strings.TrimSpace(path)
	if path == "" {
		req.logger.Info("no file chosen")
		req.transition(StateNoFileChosen)
		return req.done()
	}

	path = filepath.Clean(path)
	req.outcome.Source.Path = path
	req.outcome.Source.Name = filepath.Base(path)
	req.logger = req.logger.With(zap.String("audio", path))

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return req.fail(StateAcquisitionFailed, KindFileNotFound, fmt.Errorf("%s: %w", path, os.ErrNotExist))
		}
		return req.fail(StateAcquisitionFailed, KindFileNotFound, err)
	}

	if !audio.IsSupported(path) {
		req.logger.Warn("unrecognized audio extension; trying ffmpeg anyway")
	}

	return req.transcribe(ctx, o.transcriber, handle, path, nil)
}

func (o *Orchestrator) begin(source Source) (*request, bool) {
	req := &request{
		observer: o.observer,
		started:  time.Now(),
		outcome: Outcome{
			RequestID: o.newID(),
			State:     StateIdle,
			Source:    source,
		},
	}
	req.logger = o.logger.With(zap.String("request_id", req.outcome.RequestID), zap.String("source", string(source.Kind)))

	if !o.running.TryLock() {
		req.logger.Debug("request rejected; another request is running")
		return req, false
	}
	req.logger.Debug("request started")
	return req, true
}

// cleanup removes a recording exactly once. Failures are logged and dropped.
func (o *Orchestrator) cleanup(req *request, path string) {
	if err := o.remove(path); err != nil {
		cleanupErr := newError(KindCleanupFailure, err)
		req.logger.Debug("removing recording failed", zap.String("path", path), zap.Error(cleanupErr))
		return
	}
	req.logger.Debug("recording removed", zap.String("path", path))
}

type request struct {
	outcome  Outcome
	observer Observer
	logger   *zap.Logger
	started  time.Time
}

func (r *request) transition(state State) {
	r.outcome.State = state
	r.logger.Debug("state changed", zap.String("state", string(state)))
	if r.observer != nil {
		r.observer(Event{RequestID: r.outcome.RequestID, State: state, Source: r.outcome.Source})
	}
}

func (r *request) ensureModel(ctx context.Context, models ModelProvider) (*whisper.Handle, bool) {
	r.transition(StateEnsuringModel)
	handle, err := models.EnsureLoaded(ctx)
	if err != nil {
		r.fail(StateModelFailed, classify(err, KindModelLoadFailure), err)
		return nil, true
	}
	return handle, false
}

// transcribe runs the Transcribing state. release, when set, frees the
// audio before the request leaves the state.
func (r *request) transcribe(ctx context.Context, transcriber Transcriber, handle *whisper.Handle, path string, release func()) Outcome {
	r.transition(StateTranscribing)
	result, err := r.runTranscriber(ctx, transcriber, handle, path, release)
	if err != nil {
		return r.fail(StateTranscriptionFailed, classify(err, KindInferenceFailure), err)
	}

	r.outcome.Result = result
	r.transition(StateDone)
	r.logger.Info("request finished",
		zap.String("language", result.Language),
		zap.Int("chars", len(result.Text)),
		zap.Duration("elapsed", time.Since(r.started)),
	)
	return r.done()
}

func (r *request) runTranscriber(ctx context.Context, transcriber Transcriber, handle *whisper.Handle, path string, release func()) (transcribe.Result, error) {
	if release != nil {
		defer release()
	}
	return transcriber.Transcribe(ctx, handle, path)
}

func (r *request) fail(state State, kind Kind, err error) Outcome {
	r.outcome.Err = newError(kind, err)
	r.transition(state)
	if kind == KindCanceled {
		r.logger.Info("request canceled", zap.String("state", string(state)))
	} else {
		r.logger.Warn("request failed", zap.String("state", string(state)), zap.String("kind", string(kind)), zap.Error(err))
	}
	return r.done()
}

func (r *request) busy() Outcome {
	r.outcome.Err = &Error{Kind: KindBusy, Detail: "another request is still running"}
	return r.done()
}

func (r *request) done() Outcome {
	r.outcome.Elapsed = time.Since(r.started)
	return r.outcome
}
