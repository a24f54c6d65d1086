//go:build !windows

package record

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fmueller/voxscribe/internal/audio"
)

func installArecordStub(t *testing.T, body string) string {
	t.Helper()

	tempDir := t.TempDir()
	argsFile := filepath.Join(tempDir, "args.txt")
	stub := "#!/bin/sh\nprintf '%s\\n' \"$@\" > \"$ARGS_FILE\"\n" + body
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "arecord"), []byte(stub), 0o755))

	t.Setenv("PATH", tempDir+":"+os.Getenv("PATH"))
	t.Setenv("ARGS_FILE", argsFile)
	return argsFile
}

func TestArecordInputPassesDevice(t *testing.T) {
	argsFile := installArecordStub(t, "head -c 40000 /dev/zero\n")

	backend := newALSARecorderBackend()
	require.True(t, backend.Available())

	recorder := &Recorder{Backend: backend, Input: "hw:1,0", TempDir: t.TempDir()}
	path, err := recorder.Record(context.Background(), 1)
	require.NoError(t, err)

	clip, err := audio.ReadWAV(path)
	require.NoError(t, err)
	require.Equal(t, BlockCount(1)*audio.BlockFrames, clip.Frames())

	argsRaw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	args := string(argsRaw)
	require.Contains(t, args, "-D\nhw:1,0\n")
	require.Contains(t, args, "-r\n16000\n")
	require.Contains(t, args, "-c\n1\n")
}

func TestArecordNoInputOmitsDevice(t *testing.T) {
	argsFile := installArecordStub(t, "head -c 40000 /dev/zero\n")

	recorder := &Recorder{Backend: newALSARecorderBackend(), TempDir: t.TempDir()}
	_, err := recorder.Record(context.Background(), 1)
	require.NoError(t, err)

	argsRaw, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	require.NotContains(t, string(argsRaw), "-D")
}

func TestArecordEarlyExitReportsDeviceUnavailable(t *testing.T) {
	installArecordStub(t, "echo 'arecord: main: audio open error: No such file or directory' >&2\nexit 1\n")

	dir := t.TempDir()
	recorder := &Recorder{Backend: newALSARecorderBackend(), TempDir: dir}
	_, err := recorder.Record(context.Background(), 1)
	require.ErrorIs(t, err, ErrDeviceUnavailable)
	require.ErrorContains(t, err, "audio open error")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestArecordStopsLongRunningProcess(t *testing.T) {
	installArecordStub(t, "exec cat /dev/zero\n")

	recorder := &Recorder{Backend: newALSARecorderBackend(), TempDir: t.TempDir()}
	path, err := recorder.Record(context.Background(), 1)
	require.NoError(t, err)
	require.FileExists(t, path)
}
