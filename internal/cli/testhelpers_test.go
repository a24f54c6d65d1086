package cli

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/config"
	"github.com/fmueller/voxscribe/internal/download"
	"github.com/fmueller/voxscribe/internal/whisper"
)

func runCommand(t *testing.T, args []string) (stdout string, stderr string, err error) {
	t.Helper()

	cmd := NewRootCmd()
	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	cmd.SetOut(outBuf)
	cmd.SetErr(errBuf)
	cmd.SetIn(new(bytes.Buffer))
	cmd.SetArgs(args)

	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

// phraseModel always hears the same phrase.
type phraseModel struct {
	text     string
	language string
	calls    atomic.Int32
}

func (m *phraseModel) Transcribe(_ context.Context, _ []float32, _ whisper.Options) (whisper.Transcript, error) {
	m.calls.Add(1)
	return whisper.Transcript{
		Segments: []whisper.Segment{{Text: " " + m.text}},
		Language: m.language,
	}, nil
}

func (m *phraseModel) Close() error { return nil }

type testApp struct {
	*appState
	copied     []string
	recordings []string
	mu         sync.Mutex
}

func (a *testApp) lastCopied() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.copied) == 0 {
		return ""
	}
	return a.copied[len(a.copied)-1]
}

func (a *testApp) recorded() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.recordings...)
}

// newTestApp wires an app to a fake model behind a custom model path, a
// recorder that writes a short WAV fixture, and a capturing clipboard.
func newTestApp(t *testing.T, model whisper.Model) *testApp {
	t.Helper()

	modelPath := filepath.Join(t.TempDir(), "ggml-test.bin")
	require.NoError(t, os.WriteFile(modelPath, []byte("weights"), 0o644))

	cfg := config.Default()
	cfg.Model = modelPath
	cfg.ModelDir = t.TempDir()
	cfg.NoProgress = true

	app := &testApp{appState: newAppState()}
	app.cfg = cfg
	app.logger = zap.NewNop()
	app.openModel = func(string) (whisper.Model, error) { return model, nil }
	app.downloadFn = func(context.Context, download.Options) error {
		return errors.New("unexpected download")
	}
	app.copyFn = func(_ context.Context, value string) error {
		app.mu.Lock()
		defer app.mu.Unlock()
		app.copied = append(app.copied, value)
		return nil
	}

	recordDir := t.TempDir()
	app.recordFn = func(_ context.Context, seconds int) (string, error) {
		path := filepath.Join(recordDir, "voxscribe-test.wav")
		if err := os.WriteFile(path, makePCM16WAVForTest(make([]int16, 16000*seconds/10), 16000, 1), 0o600); err != nil {
			return "", err
		}
		app.mu.Lock()
		app.recordings = append(app.recordings, path)
		app.mu.Unlock()
		return path, nil
	}

	t.Cleanup(func() { _ = app.close() })
	return app
}

func writeWAVFixture(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, makePCM16WAVForTest(make([]int16, 1600), 16000, 1), 0o644))
	return path
}

// safeBuffer is a bytes.Buffer shared between the test and the panel's
// drawing goroutine.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func makePCM16WAVForTest(samples []int16, sampleRate int, channels int) []byte {
	bytesPerSample := 2
	dataSize := len(samples) * bytesPerSample
	fmtChunkSize := 16
	riffSize := 4 + (8 + fmtChunkSize) + (8 + dataSize)

	out := make([]byte, 12+8+fmtChunkSize+8+dataSize)
	off := 0

	copy(out[off:], []byte("RIFF"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(riffSize))
	off += 4
	copy(out[off:], []byte("WAVE"))
	off += 4

	copy(out[off:], []byte("fmt "))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(fmtChunkSize))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], 1)
	off += 2
	binary.LittleEndian.PutUint16(out[off:], uint16(channels))
	off += 2
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(sampleRate*channels*bytesPerSample))
	off += 4
	binary.LittleEndian.PutUint16(out[off:], uint16(channels*bytesPerSample))
	off += 2
	binary.LittleEndian.PutUint16(out[off:], 16)
	off += 2

	copy(out[off:], []byte("data"))
	off += 4
	binary.LittleEndian.PutUint32(out[off:], uint32(dataSize))
	off += 4

	for _, s := range samples {
		binary.LittleEndian.PutUint16(out[off:], uint16(s))
		off += 2
	}

	return out
}

// failOnce fails the first model load and succeeds afterwards.
func failOnce(model whisper.Model) whisper.Opener {
	var calls atomic.Int32
	return func(string) (whisper.Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("model file truncated")
		}
		return model, nil
	}
}
