package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Loader turns an audio file into model-ready float32 samples. Model-ready WAV
// is decoded in-process; everything else goes through ffmpeg.
type Loader struct {
	FFmpeg string
	Logger *zap.Logger
}

func NewLoader(ffmpeg string, logger *zap.Logger) *Loader {
	if strings.TrimSpace(ffmpeg) == "" {
		ffmpeg = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{FFmpeg: ffmpeg, Logger: logger}
}

func (l *Loader) Load(ctx context.Context, path string) ([]float32, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".wav") {
		clip, err := ReadWAV(path)
		if err == nil && clip.ModelReady() {
			return clip.Samples(), nil
		}
		if err != nil && errors.Is(err, ErrInvalidWAV) {
			return nil, err
		}
		l.Logger.Debug("wav needs conversion", zap.String("audio", path), zap.Error(err))
	}

	pcm, err := l.convert(ctx, path)
	if err != nil {
		return nil, err
	}
	return pcm16ToFloat32(pcm), nil
}

// convert runs ffmpeg to produce raw s16le 16 kHz mono on stdout.
func (l *Loader) convert(ctx context.Context, path string) ([]byte, error) {
	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, l.FFmpeg, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	l.Logger.Debug("converting audio with ffmpeg", zap.String("ffmpeg", l.FFmpeg), zap.Strings("args", args))
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: ffmpeg is required to decode %s but was not found", ErrUnsupportedAudio, filepath.Ext(path))
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: ffmpeg failed: %v (%s)", ErrUnsupportedAudio, err, strings.TrimSpace(stderr.String()))
	}

	pcm := stdout.Bytes()
	return pcm[:len(pcm)-len(pcm)%bytesPerSample], nil
}
