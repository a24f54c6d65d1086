// Package panel is the state behind the interactive transcription panel:
// status line, duration choice, busy flag and the transcript output area.
// Requests run on background goroutines; the frontend learns about changes
// from Changes and reads a Snapshot.
package panel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/session"
	"github.com/fmueller/voxscribe/internal/transcribe"
)

const (
	StatusReady = "Ready"

	statusDetailLimit = 20
	nameLimit         = 15
)

var (
	ErrBusy        = errors.New("a request is already running")
	ErrNothingCopy = errors.New("no transcript to copy")
)

// Runner is the request orchestrator.
type Runner interface {
	RecordAndTranscribe(ctx context.Context, seconds int) session.Outcome
	TranscribeFile(ctx context.Context, pick session.PickFunc) session.Outcome
}

// Entry is one transcript in the output area.
type Entry struct {
	Source   string
	Language string
	Text     string
}

// Format renders the entry as it appears in the output area.
func (e Entry) Format() string {
	language := e.Language
	if language == "" {
		language = "unknown"
	}
	return fmt.Sprintf("[%s - %s]\n%s\n\n", e.Source, language, e.Text)
}

type Snapshot struct {
	Status    string
	Busy      bool
	Duration  int
	Durations []int
	Entries   []Entry
}

// Output is the full text of the output area.
func (s Snapshot) Output() string {
	var b strings.Builder
	for _, e := range s.Entries {
		b.WriteString(e.Format())
	}
	return b.String()
}

type Config struct {
	Runner         Runner
	Pick           session.PickFunc
	Copy           func(ctx context.Context, text string) error
	Durations      []int
	DefaultSeconds int
	Logger         *zap.Logger
}

type Model struct {
	runner Runner
	pick   session.PickFunc
	copy   func(ctx context.Context, text string) error
	logger *zap.Logger

	changes chan struct{}
	wg      sync.WaitGroup

	mu        sync.Mutex
	status    string
	busy      bool
	duration  int
	durations []int
	entries   []Entry
}

func New(cfg Config) *Model {
	durations := slices.Clone(cfg.Durations)
	if len(durations) == 0 {
		durations = []int{5, 15, 30, 60}
	}
	duration := durations[0]
	if slices.Contains(durations, cfg.DefaultSeconds) {
		duration = cfg.DefaultSeconds
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Model{
		runner:    cfg.Runner,
		pick:      cfg.Pick,
		copy:      cfg.Copy,
		logger:    logger,
		changes:   make(chan struct{}, 1),
		status:    StatusReady,
		duration:  duration,
		durations: durations,
	}
}

// Changes receives a value after every state change. Consecutive changes
// are coalesced.
func (m *Model) Changes() <-chan struct{} {
	return m.changes
}

func (m *Model) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Status:    m.status,
		Busy:      m.busy,
		Duration:  m.duration,
		Durations: slices.Clone(m.durations),
		Entries:   slices.Clone(m.entries),
	}
}

// SelectDuration picks the recording length; it must be one of the offered
// durations.
func (m *Model) SelectDuration(seconds int) error {
	m.mu.Lock()
	if !slices.Contains(m.durations, seconds) {
		m.mu.Unlock()
		return fmt.Errorf("duration must be one of %v seconds", m.durations)
	}
	m.duration = seconds
	m.mu.Unlock()
	m.notify()
	return nil
}

// NextDuration cycles to the next offered duration.
func (m *Model) NextDuration() int {
	m.mu.Lock()
	i := slices.Index(m.durations, m.duration)
	m.duration = m.durations[(i+1)%len(m.durations)]
	d := m.duration
	m.mu.Unlock()
	m.notify()
	return d
}

// Record starts a microphone request in the background.
func (m *Model) Record(ctx context.Context) error {
	m.mu.Lock()
	seconds := m.duration
	m.mu.Unlock()

	return m.start(func() session.Outcome {
		return m.runner.RecordAndTranscribe(ctx, seconds)
	})
}

// Import starts a file request in the background.
func (m *Model) Import(ctx context.Context) error {
	return m.start(func() session.Outcome {
		return m.runner.TranscribeFile(ctx, m.pick)
	})
}

func (m *Model) start(run func() session.Outcome) error {
	m.mu.Lock()
	if m.busy {
		m.mu.Unlock()
		return ErrBusy
	}
	m.busy = true
	m.mu.Unlock()
	m.notify()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.finish(run())
	}()
	return nil
}

// Wait blocks until background requests have finished.
func (m *Model) Wait() {
	m.wg.Wait()
}

// Clear empties the output area.
func (m *Model) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
	m.notify()
}

// CopyLast puts the most recent transcript on the clipboard.
func (m *Model) CopyLast(ctx context.Context) error {
	m.mu.Lock()
	var last Entry
	ok := len(m.entries) > 0
	if ok {
		last = m.entries[len(m.entries)-1]
	}
	m.mu.Unlock()

	if !ok {
		return ErrNothingCopy
	}
	if m.copy == nil {
		return errors.New("clipboard not configured")
	}
	if err := m.copy(ctx, last.Text); err != nil {
		m.setStatus("Copy failed: " + session.Truncate(err.Error(), statusDetailLimit))
		return err
	}
	m.setStatus("Copied to clipboard")
	return nil
}

// Observe turns orchestrator transitions into status text. It is installed as
// the orchestrator's observer.
func (m *Model) Observe(e session.Event) {
	var status string
	switch e.State {
	case session.StateEnsuringModel:
		status = "Loading model..."
	case session.StateAcquiringAudio:
		if e.Source.Kind == session.SourceMicrophone {
			status = fmt.Sprintf("Recording for %ds...", e.Source.Seconds)
		} else {
			status = "Choosing file..."
		}
	case session.StateTranscribing:
		if e.Source.Kind == session.SourceFile {
			status = "Transcribing: " + session.Truncate(e.Source.Name, nameLimit)
		} else {
			status = "Transcribing..."
		}
	default:
		return
	}
	m.setStatus(status)
}

func (m *Model) finish(out session.Outcome) {
	m.mu.Lock()
	m.busy = false
	switch {
	case out.Err != nil:
		m.status = out.Err.Display(statusDetailLimit)
	case out.State == session.StateNoFileChosen:
		m.status = session.KindNoFileChosen.Title()
	case transcribe.IsBlank(out.Result.Text):
		m.status = "No speech detected"
	default:
		m.entries = append(m.entries, Entry{Source: out.Source.Name, Language: out.Result.Language, Text: out.Result.Text})
		if out.Source.Kind == session.SourceFile {
			m.status = "Done: " + session.Truncate(out.Source.Name, nameLimit)
		} else {
			m.status = "Recording transcribed"
		}
	}
	status := m.status
	m.mu.Unlock()

	m.logger.Debug("panel request finished", zap.String("request_id", out.RequestID), zap.String("status", status))
	m.notify()
}

func (m *Model) setStatus(status string) {
	m.mu.Lock()
	m.status = status
	m.mu.Unlock()
	m.notify()
}

func (m *Model) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}
