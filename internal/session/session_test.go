package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/record"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/whisper"
)

type fakeModels struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeModels) EnsureLoaded(context.Context) (*whisper.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &whisper.Handle{Name: "small"}, nil
}

type fixtureRecorder struct {
	dir   string
	err   error
	calls int
	paths []string
	block chan struct{}
}

func (r *fixtureRecorder) Record(_ context.Context, seconds int) (string, error) {
	r.calls++
	if r.block != nil {
		<-r.block
	}
	if r.err != nil {
		return "", r.err
	}
	f, err := os.CreateTemp(r.dir, "voxscribe-*.wav")
	if err != nil {
		return "", err
	}
	defer f.Close()
	pcm := make([]byte, seconds*audio.SampleRate*2)
	if err := audio.WriteWAV(f, audio.NewClip(pcm)); err != nil {
		return "", err
	}
	r.paths = append(r.paths, f.Name())
	return f.Name(), nil
}

type fakeTranscriber struct {
	result transcribe.Result
	err    error
	calls  int
	paths  []string
}

func (f *fakeTranscriber) Transcribe(_ context.Context, _ *whisper.Handle, path string) (transcribe.Result, error) {
	f.calls++
	f.paths = append(f.paths, path)
	if f.err != nil {
		return transcribe.Result{}, f.err
	}
	return f.result, nil
}

type removeCounter struct {
	mu    sync.Mutex
	calls map[string]int
	err   error
}

func (r *removeCounter) remove(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = map[string]int{}
	}
	r.calls[path]++
	if r.err != nil {
		return r.err
	}
	return os.Remove(path)
}

func pickPath(path string) PickFunc {
	return func(context.Context) (string, error) { return path, nil }
}

func writeFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))
	return path
}

func TestRecordAndTranscribeSuccess(t *testing.T) {
	t.Parallel()

	models := &fakeModels{}
	recorder := &fixtureRecorder{dir: t.TempDir()}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "test phrase", Language: "en"}}
	removes := &removeCounter{}

	var states []State
	orch := New(models, recorder, transcriber,
		WithRemove(removes.remove),
		WithObserver(func(e Event) { states = append(states, e.State) }),
	)

	out := orch.RecordAndTranscribe(context.Background(), 5)
	require.True(t, out.OK())
	require.Equal(t, StateDone, out.State)
	require.Equal(t, "test phrase", out.Result.Text)
	require.Equal(t, "en", out.Result.Language)
	require.Equal(t, RecordingName, out.Source.Name)
	require.Equal(t, SourceMicrophone, out.Source.Kind)
	require.NotEmpty(t, out.RequestID)
	require.Equal(t, []State{StateEnsuringModel, StateAcquiringAudio, StateTranscribing, StateDone}, states)

	require.Len(t, recorder.paths, 1)
	require.Equal(t, 1, removes.calls[recorder.paths[0]])
	require.NoFileExists(t, recorder.paths[0])
}

func TestRecordingDeletedOnceWhenTranscriptionFails(t *testing.T) {
	t.Parallel()

	recorder := &fixtureRecorder{dir: t.TempDir()}
	transcriber := &fakeTranscriber{err: fmt.Errorf("%w: boom", transcribe.ErrInference)}
	removes := &removeCounter{}
	orch := New(&fakeModels{}, recorder, transcriber, WithRemove(removes.remove))

	out := orch.RecordAndTranscribe(context.Background(), 1)
	require.Equal(t, StateTranscriptionFailed, out.State)
	require.Equal(t, KindInferenceFailure, out.Err.Kind)
	require.Equal(t, transcribe.Result{}, out.Result)

	require.Len(t, recorder.paths, 1)
	require.Equal(t, 1, removes.calls[recorder.paths[0]])
	require.NoFileExists(t, recorder.paths[0])
}

func TestRecordingGoneBeforeTerminalStateObserved(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		transcriber *fakeTranscriber
		want        State
	}{
		{
			name:        "success",
			transcriber: &fakeTranscriber{result: transcribe.Result{Text: "hi", Language: "en"}},
			want:        StateDone,
		},
		{
			name:        "inference failure",
			transcriber: &fakeTranscriber{err: fmt.Errorf("%w: boom", transcribe.ErrInference)},
			want:        StateTranscriptionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			recorder := &fixtureRecorder{dir: t.TempDir()}
			var mu sync.Mutex
			existsAtTerminal := map[State]bool{}
			observe := func(e Event) {
				if !e.State.Terminal() {
					return
				}
				_, err := os.Stat(e.Source.Path)
				mu.Lock()
				existsAtTerminal[e.State] = err == nil
				mu.Unlock()
			}
			orch := New(&fakeModels{}, recorder, tt.transcriber, WithObserver(observe))

			out := orch.RecordAndTranscribe(context.Background(), 1)
			require.Equal(t, tt.want, out.State)

			mu.Lock()
			defer mu.Unlock()
			require.Equal(t, map[State]bool{tt.want: false}, existsAtTerminal)
		})
	}
}

func TestCleanupFailureIsSwallowed(t *testing.T) {
	t.Parallel()

	recorder := &fixtureRecorder{dir: t.TempDir()}
	removes := &removeCounter{err: errors.New("permission denied")}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "hi", Language: "en"}}
	orch := New(&fakeModels{}, recorder, transcriber, WithRemove(removes.remove))

	out := orch.RecordAndTranscribe(context.Background(), 1)
	require.True(t, out.OK())
	require.Nil(t, out.Err)
	require.Equal(t, 1, removes.calls[recorder.paths[0]])
}

func TestRecordDeviceFailure(t *testing.T) {
	t.Parallel()

	recorder := &fixtureRecorder{err: fmt.Errorf("%w: no capture device", record.ErrDeviceUnavailable)}
	transcriber := &fakeTranscriber{}
	removes := &removeCounter{}
	orch := New(&fakeModels{}, recorder, transcriber, WithRemove(removes.remove))

	out := orch.RecordAndTranscribe(context.Background(), 5)
	require.Equal(t, StateAcquisitionFailed, out.State)
	require.Equal(t, KindDeviceUnavailable, out.Err.Kind)
	require.ErrorIs(t, out.Err, record.ErrDeviceUnavailable)
	require.Zero(t, transcriber.calls)
	require.Empty(t, removes.calls)
}

func TestModelFailureStopsBeforeAudio(t *testing.T) {
	t.Parallel()

	models := &fakeModels{err: fmt.Errorf("%w: corrupt", whisper.ErrModelUnavailable)}
	recorder := &fixtureRecorder{dir: t.TempDir()}
	transcriber := &fakeTranscriber{}
	orch := New(models, recorder, transcriber)

	out := orch.RecordAndTranscribe(context.Background(), 5)
	require.Equal(t, StateModelFailed, out.State)
	require.Equal(t, KindModelLoadFailure, out.Err.Kind)
	require.Zero(t, recorder.calls)
	require.Zero(t, transcriber.calls)

	models.err = nil
	out = orch.RecordAndTranscribe(context.Background(), 1)
	require.True(t, out.OK(), "a later request retries the model")
	require.Equal(t, 2, models.calls)
}

func TestTranscribeFileCancelledSelection(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{}
	var states []State
	orch := New(&fakeModels{}, &fixtureRecorder{}, transcriber,
		WithObserver(func(e Event) { states = append(states, e.State) }),
	)

	out := orch.TranscribeFile(context.Background(), pickPath(""))
	require.Equal(t, StateNoFileChosen, out.State)
	require.Nil(t, out.Err)
	require.False(t, out.OK())
	require.Zero(t, transcriber.calls)
	require.Equal(t, StateNoFileChosen, states[len(states)-1])
}

func TestTranscribeFileSuccessKeepsFile(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "meeting notes.mp3")
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "agenda", Language: "de"}}
	removes := &removeCounter{}
	orch := New(&fakeModels{}, &fixtureRecorder{}, transcriber, WithRemove(removes.remove))

	out := orch.TranscribeFile(context.Background(), pickPath("  "+path+" "))
	require.True(t, out.OK())
	require.Equal(t, "meeting notes.mp3", out.Source.Name)
	require.Equal(t, SourceFile, out.Source.Kind)
	require.Equal(t, []string{path}, transcriber.paths)
	require.Empty(t, removes.calls)
	require.FileExists(t, path)
}

func TestTranscribeFileWarnsOnUnknownExtension(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "still tried", Language: "en"}}
	orch := New(&fakeModels{}, &fixtureRecorder{}, transcriber, WithLogger(zap.New(core)))

	known := orch.TranscribeFile(context.Background(), pickPath(writeFile(t, "memo.ogg")))
	require.True(t, known.OK())
	require.Zero(t, logs.FilterMessageSnippet("unrecognized audio extension").Len())

	out := orch.TranscribeFile(context.Background(), pickPath(writeFile(t, "capture.raw")))
	require.True(t, out.OK())
	require.Equal(t, "still tried", out.Result.Text)
	require.Equal(t, 1, logs.FilterMessageSnippet("unrecognized audio extension").Len())
}

func TestTranscribeFileMissing(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{}
	orch := New(&fakeModels{}, &fixtureRecorder{}, transcriber)

	out := orch.TranscribeFile(context.Background(), pickPath(filepath.Join(t.TempDir(), "gone.wav")))
	require.Equal(t, StateAcquisitionFailed, out.State)
	require.Equal(t, KindFileNotFound, out.Err.Kind)
	require.Zero(t, transcriber.calls)
}

func TestTranscribeFileUnsupportedAudio(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "clip.xyz")
	transcriber := &fakeTranscriber{err: fmt.Errorf("%w: ffmpeg failed", audio.ErrUnsupportedAudio)}
	orch := New(&fakeModels{}, &fixtureRecorder{}, transcriber)

	out := orch.TranscribeFile(context.Background(), pickPath(path))
	require.Equal(t, StateTranscriptionFailed, out.State)
	require.Equal(t, KindUnsupportedAudio, out.Err.Kind)
}

func TestTranscribeFilePickerError(t *testing.T) {
	t.Parallel()

	orch := New(&fakeModels{}, &fixtureRecorder{}, &fakeTranscriber{})
	out := orch.TranscribeFile(context.Background(), func(context.Context) (string, error) {
		return "", errors.New("zenity crashed")
	})
	require.Equal(t, StateAcquisitionFailed, out.State)
	require.Equal(t, KindSelectionFailed, out.Err.Kind)
}

func TestSecondRequestWhileBusy(t *testing.T) {
	t.Parallel()

	models := &fakeModels{}
	recorder := &fixtureRecorder{dir: t.TempDir(), block: make(chan struct{})}
	transcriber := &fakeTranscriber{result: transcribe.Result{Text: "first"}}
	orch := New(models, recorder, transcriber)

	started := make(chan struct{})
	done := make(chan Outcome)
	go func() {
		close(started)
		done <- orch.RecordAndTranscribe(context.Background(), 1)
	}()
	<-started

	require.Eventually(t, func() bool {
		models.mu.Lock()
		defer models.mu.Unlock()
		return models.calls == 1
	}, timeout, tick)

	busy := orch.TranscribeFile(context.Background(), pickPath("x.wav"))
	require.NotNil(t, busy.Err)
	require.Equal(t, KindBusy, busy.Err.Kind)

	close(recorder.block)
	first := <-done
	require.True(t, first.OK())

	models.mu.Lock()
	require.Equal(t, 1, models.calls, "the busy request must not touch the model")
	models.mu.Unlock()
}

func TestCanceledRecording(t *testing.T) {
	t.Parallel()

	recorder := &fixtureRecorder{err: context.Canceled}
	orch := New(&fakeModels{}, recorder, &fakeTranscriber{})

	out := orch.RecordAndTranscribe(context.Background(), 5)
	require.Equal(t, StateAcquisitionFailed, out.State)
	require.Equal(t, KindCanceled, out.Err.Kind)
}

func TestRequestIDsAreUnique(t *testing.T) {
	t.Parallel()

	orch := New(&fakeModels{}, &fixtureRecorder{}, &fakeTranscriber{})
	first := orch.TranscribeFile(context.Background(), pickPath(""))
	second := orch.TranscribeFile(context.Background(), pickPath(""))
	require.NotEqual(t, first.RequestID, second.RequestID)
}

func TestStateTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StateDone.Terminal())
	require.True(t, StateNoFileChosen.Terminal())
	require.False(t, StateTranscribing.Terminal())
	require.False(t, StateIdle.Terminal())
}
