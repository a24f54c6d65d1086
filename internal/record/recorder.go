// Package record captures microphone audio in fixed 1024-frame blocks and
// writes it out as a 16 kHz mono 16-bit WAV file.
package record

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"

	"go.uber.org/zap"
)

var (
	ErrDeviceUnavailable  = errors.New("audio input device unavailable")
	ErrNoBackendAvailable = errors.New("no recording backend available")
	ErrInvalidDuration    = errors.New("recording duration must be a positive number of seconds")
)

// StreamConfig describes the PCM stream a backend must deliver.
type StreamConfig struct {
	SampleRate  int
	Channels    int
	BlockFrames int
	Input       string
	Format      string
	Logger      *zap.Logger
}

// Stream yields captured signed 16-bit little-endian PCM.
type Stream interface {
	// Read fills buf completely or fails.
	Read(buf []byte) error
	Close() error
}

type Backend interface {
	Name() string
	Available() bool
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
	ListDevices(ctx context.Context) (string, error)
}

func SelectBackend(backends []Backend, preferred string) (Backend, error) {
	if len(backends) == 0 {
		return nil, errors.New("no backends configured")
	}

	if preferred != "" && preferred != "auto" {
		for _, backend := range backends {
			if backend.Name() == preferred {
				if !backend.Available() {
					return nil, fmt.Errorf("requested backend %q is not available", preferred)
				}
				return backend, nil
			}
		}
		return nil, fmt.Errorf("unknown backend %q", preferred)
	}

	for _, backend := range backends {
		if backend.Available() {
			return backend, nil
		}
	}

	return nil, ErrNoBackendAvailable
}

func DefaultBackends(goos string) []Backend {
	switch goos {
	case "linux":
		return []Backend{newMiniaudioBackend(), newALSARecorderBackend(), newFFMPEGBackend(goos)}
	case "darwin":
		return []Backend{newMiniaudioBackend(), newFFMPEGBackend(goos)}
	case "windows":
		return []Backend{newMiniaudioBackend()}
	default:
		return nil
	}
}

func NewBackend(preferred string) (Backend, error) {
	backends := DefaultBackends(runtime.GOOS)
	if len(backends) == 0 {
		return nil, fmt.Errorf("unsupported OS: %s", runtime.GOOS)
	}
	return SelectBackend(backends, preferred)
}

func commandAvailable(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}

func commandOutput(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	trimmed := strings.TrimSpace(string(out))
	if err != nil {
		if trimmed != "" {
			return "", fmt.Errorf("%s %s failed: %w (%s)", name, strings.Join(args, " "), err, trimmed)
		}
		return "", fmt.Errorf("%s %s failed: %w", name, strings.Join(args, " "), err)
	}
	return trimmed, nil
}

// processStream reads raw PCM from the stdout of a capture command.
type processStream struct {
	name   string
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr *bytes.Buffer
	logger *zap.Logger

	once    sync.Once
	waitErr error
}

func startProcessStream(ctx context.Context, name string, args []string, logger *zap.Logger) (*processStream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open %s stdout: %w", name, err)
	}
	stderr := new(bytes.Buffer)
	cmd.Stderr = stderr

	logger.Debug("starting capture command", zap.String("command", name), zap.Strings("args", args))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	return &processStream{name: name, cmd: cmd, stdout: stdout, stderr: stderr, logger: logger}, nil
}

func (s *processStream) Read(buf []byte) error {
	if _, err := io.ReadFull(s.stdout, buf); err != nil {
		waitErr := s.wait(false)
		detail := strings.TrimSpace(s.stderr.String())
		if waitErr != nil {
			err = waitErr
		}
		if detail != "" {
			return fmt.Errorf("%s stopped delivering audio: %w (%s)", s.name, err, detail)
		}
		return fmt.Errorf("%s stopped delivering audio: %w", s.name, err)
	}
	return nil
}

func (s *processStream) Close() error {
	return s.wait(true)
}

// wait reaps the process exactly once. When stop is set the process is asked
// to exit first and the resulting exit status is not an error.
func (s *processStream) wait(stop bool) error {
	s.once.Do(func() {
		stopSignalSent := false
		if stop {
			stopSignalSent = s.cmd.Process.Signal(os.Interrupt) == nil
			if !stopSignalSent {
				stopSignalSent = s.cmd.Process.Kill() == nil
			}
		}

		err := s.cmd.Wait()
		if err != nil && stopSignalSent {
			s.logger.Debug("capture command exited after stop signal", zap.String("command", s.name), zap.Error(err))
			err = nil
		}
		s.waitErr = err
	})
	return s.waitErr
}
