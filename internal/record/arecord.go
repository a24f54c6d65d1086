package record

import (
	"context"
	"strconv"
)

type alsaBackend struct{}

func newALSARecorderBackend() Backend {
	return &alsaBackend{}
}

func (b *alsaBackend) Name() string {
	return "arecord"
}

func (b *alsaBackend) Available() bool {
	return commandAvailable("arecord")
}

func (b *alsaBackend) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	args := []string{
		"-q", "-t", "raw", "-f", "S16_LE",
		"-r", strconv.Itoa(cfg.SampleRate),
		"-c", strconv.Itoa(cfg.Channels),
		"--period-size", strconv.Itoa(cfg.BlockFrames),
	}
	if cfg.Input != "" {
		args = append(args, "-D", cfg.Input)
	}
	args = append(args, "-")

	return startProcessStream(ctx, "arecord", args, cfg.Logger)
}

func (b *alsaBackend) ListDevices(ctx context.Context) (string, error) {
	return commandOutput(ctx, "arecord", "-L")
}
