package record

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxscribe/internal/audio"
)

type scriptedStream struct {
	reads    int
	failAt   int
	onRead   func(n int)
	closed   int
	readSize []int
}

func (s *scriptedStream) Read(buf []byte) error {
	s.reads++
	s.readSize = append(s.readSize, len(buf))
	if s.onRead != nil {
		s.onRead(s.reads)
	}
	if s.failAt > 0 && s.reads == s.failAt {
		return errors.New("device unplugged")
	}
	for i := range buf {
		buf[i] = byte(s.reads)
	}
	return nil
}

func (s *scriptedStream) Close() error {
	s.closed++
	return nil
}

type streamBackend struct {
	stream  *scriptedStream
	openErr error
	cfg     StreamConfig
}

func (b *streamBackend) Name() string    { return "scripted" }
func (b *streamBackend) Available() bool { return true }
func (b *streamBackend) Open(_ context.Context, cfg StreamConfig) (Stream, error) {
	b.cfg = cfg
	if b.openErr != nil {
		return nil, b.openErr
	}
	return b.stream, nil
}
func (b *streamBackend) ListDevices(context.Context) (string, error) { return "scripted", nil }

func TestBlockCount(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, BlockCount(0))
	require.Equal(t, 16, BlockCount(1))
	require.Equal(t, 79, BlockCount(5))
	require.Equal(t, 469, BlockCount(30))
}

func TestRecordWritesRequestedDuration(t *testing.T) {
	t.Parallel()

	for _, seconds := range []int{1, 5, 15} {
		stream := &scriptedStream{}
		backend := &streamBackend{stream: stream}
		recorder := &Recorder{Backend: backend, Input: "hw:1,0", TempDir: t.TempDir()}

		path, err := recorder.Record(context.Background(), seconds)
		require.NoError(t, err)
		require.Equal(t, BlockCount(seconds), stream.reads)
		require.Equal(t, 1, stream.closed)
		require.Equal(t, "hw:1,0", backend.cfg.Input)
		require.Equal(t, audio.BlockFrames, backend.cfg.BlockFrames)

		clip, err := audio.ReadWAV(path)
		require.NoError(t, err)
		require.True(t, clip.ModelReady())

		want := time.Duration(seconds) * time.Second
		block := time.Duration(audio.BlockFrames) * time.Second / audio.SampleRate
		require.GreaterOrEqual(t, clip.Duration(), want)
		require.LessOrEqual(t, clip.Duration()-want, block)
	}
}

func TestRecordReadsWholeBlocks(t *testing.T) {
	t.Parallel()

	stream := &scriptedStream{}
	recorder := &Recorder{Backend: &streamBackend{stream: stream}, TempDir: t.TempDir()}

	_, err := recorder.Record(context.Background(), 1)
	require.NoError(t, err)
	for _, size := range stream.readSize {
		require.Equal(t, audio.BlockFrames*2, size)
	}
}

func TestRecordRejectsNonPositiveDuration(t *testing.T) {
	t.Parallel()

	recorder := &Recorder{Backend: &streamBackend{stream: &scriptedStream{}}}
	_, err := recorder.Record(context.Background(), 0)
	require.ErrorIs(t, err, ErrInvalidDuration)
}

func TestRecordOpenFailureIsDeviceUnavailable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	recorder := &Recorder{
		Backend: &streamBackend{openErr: errors.New("no such device")},
		TempDir: dir,
	}

	_, err := recorder.Record(context.Background(), 5)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.ErrorContains(t, err, "no such device")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecordReadFailureClosesStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	stream := &scriptedStream{failAt: 3}
	recorder := &Recorder{Backend: &streamBackend{stream: stream}, TempDir: dir}

	_, err := recorder.Record(context.Background(), 5)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.Equal(t, 1, stream.closed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestRecordStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{onRead: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	recorder := &Recorder{Backend: &streamBackend{stream: stream}, TempDir: t.TempDir()}

	_, err := recorder.Record(ctx, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 2, stream.reads)
	require.Equal(t, 1, stream.closed)
}

func TestRecordWithoutBackend(t *testing.T) {
	t.Parallel()

	_, err := (&Recorder{TempDir: filepath.Join(t.TempDir(), "unused")}).Record(context.Background(), 1)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
}
