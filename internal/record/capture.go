package record

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fmueller/voxscribe/internal/audio"
)

// Recorder captures a fixed number of seconds from a backend.
type Recorder struct {
	Backend Backend
	Input   string
	Format  string
	TempDir string
	Logger  *zap.Logger
}

// BlockCount is the number of whole capture blocks needed to cover seconds.
func BlockCount(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	frames := seconds * audio.SampleRate
	return (frames + audio.BlockFrames - 1) / audio.BlockFrames
}

// Capture reads BlockCount(seconds) blocks and returns them as a clip. The
// stream is closed on every path.
func (r *Recorder) Capture(ctx context.Context, seconds int) (audio.Clip, error) {
	if seconds <= 0 {
		return audio.Clip{}, fmt.Errorf("%w: got %d", ErrInvalidDuration, seconds)
	}
	if r.Backend == nil {
		return audio.Clip{}, fmt.Errorf("%w: %w", ErrDeviceUnavailable, ErrNoBackendAvailable)
	}

	logger := r.logger()
	blocks := BlockCount(seconds)
	logger.Debug("opening capture stream",
		zap.String("backend", r.Backend.Name()),
		zap.String("input", r.Input),
		zap.Int("seconds", seconds),
		zap.Int("blocks", blocks),
	)

	stream, err := r.Backend.Open(ctx, StreamConfig{
		SampleRate:  audio.SampleRate,
		Channels:    audio.Channels,
		BlockFrames: audio.BlockFrames,
		Input:       r.Input,
		Format:      r.Format,
		Logger:      logger,
	})
	if err != nil {
		return audio.Clip{}, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, r.Backend.Name(), err)
	}

	block := make([]byte, audio.BlockFrames*audio.Channels*audio.BitDepth/8)
	pcm := make([]byte, 0, blocks*len(block))
	for i := 0; i < blocks; i++ {
		if err := ctx.Err(); err != nil {
			_ = stream.Close()
			return audio.Clip{}, err
		}
		if err := stream.Read(block); err != nil {
			_ = stream.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return audio.Clip{}, ctxErr
			}
			return audio.Clip{}, fmt.Errorf("%w: %s: %w", ErrDeviceUnavailable, r.Backend.Name(), err)
		}
		pcm = append(pcm, block...)
	}

	if err := stream.Close(); err != nil {
		logger.Debug("closing capture stream failed", zap.Error(err))
	}

	clip := audio.NewClip(pcm)
	levels := audio.MeasureLevels(pcm)
	logger.Debug("capture finished",
		zap.Duration("duration", clip.Duration()),
		zap.Float64("rms_dbfs", levels.RMSdBFS),
		zap.Float64("peak_dbfs", levels.PeakdBFS),
	)

	return clip, nil
}

// Record captures seconds of audio into a new temporary WAV file and returns
// its path. The caller owns the file.
func (r *Recorder) Record(ctx context.Context, seconds int) (string, error) {
	clip, err := r.Capture(ctx, seconds)
	if err != nil {
		return "", err
	}

	path, err := audio.WriteTempWAV(r.TempDir, clip)
	if err != nil {
		return "", err
	}
	r.logger().Debug("recording saved", zap.String("path", path))
	return path, nil
}

func (r *Recorder) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
