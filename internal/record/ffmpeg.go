package record

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ffmpegBackend struct {
	goos string
}

func newFFMPEGBackend(goos string) Backend {
	return &ffmpegBackend{goos: goos}
}

func (b *ffmpegBackend) Name() string {
	return "ffmpeg"
}

func (b *ffmpegBackend) Available() bool {
	return commandAvailable("ffmpeg")
}

func (b *ffmpegBackend) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	format, input := b.inputFor(cfg)

	args := []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-f", format, "-i", input,
		"-ac", strconv.Itoa(cfg.Channels),
		"-ar", strconv.Itoa(cfg.SampleRate),
		"-c:a", "pcm_s16le",
		"-f", "s16le",
		"-",
	}

	return startProcessStream(ctx, "ffmpeg", args, cfg.Logger)
}

// inputFor picks the ffmpeg demuxer and device. On Linux PulseAudio (or the
// PipeWire pulse shim) is preferred when pactl is installed.
func (b *ffmpegBackend) inputFor(cfg StreamConfig) (string, string) {
	format := cfg.Format
	input := cfg.Input

	if format == "" {
		switch b.goos {
		case "darwin":
			format = "avfoundation"
		default:
			format = "alsa"
			if commandAvailable("pactl") {
				format = "pulse"
			}
		}
	}

	if input == "" {
		if format == "avfoundation" {
			input = ":0"
		} else {
			input = "default"
		}
	}

	return format, input
}

func (b *ffmpegBackend) ListDevices(ctx context.Context) (string, error) {
	if b.goos == "darwin" {
		cmd := exec.CommandContext(ctx, "ffmpeg", "-hide_banner", "-f", "avfoundation", "-list_devices", "true", "-i", "")
		out, _ := cmd.CombinedOutput()
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return "", fmt.Errorf("ffmpeg returned no device output")
		}
		return trimmed, nil
	}

	if commandAvailable("pactl") {
		return commandOutput(ctx, "pactl", "list", "short", "sources")
	}

	return "ffmpeg captures from the ALSA \"default\" device; pass --input to choose another", nil
}
