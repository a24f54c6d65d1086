package record

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// miniaudioBackend captures through the platform audio API that miniaudio
// picks (ALSA/PulseAudio, Core Audio, WASAPI). It needs no external tools.
type miniaudioBackend struct{}

func newMiniaudioBackend() Backend {
	return &miniaudioBackend{}
}

func (b *miniaudioBackend) Name() string {
	return "miniaudio"
}

func (b *miniaudioBackend) Available() bool {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return false
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	devices, err := mctx.Devices(malgo.Capture)
	return err == nil && len(devices) > 0
}

func (b *miniaudioBackend) Open(_ context.Context, cfg StreamConfig) (Stream, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.BlockFrames)

	if cfg.Input != "" {
		devices, err := mctx.Devices(malgo.Capture)
		if err != nil {
			closeContext(mctx)
			return nil, fmt.Errorf("list capture devices: %w", err)
		}
		found := false
		for _, info := range devices {
			if strings.EqualFold(info.Name(), cfg.Input) {
				deviceConfig.Capture.DeviceID = info.ID.Pointer()
				found = true
				break
			}
		}
		if !found {
			closeContext(mctx)
			return nil, fmt.Errorf("capture device %q not found", cfg.Input)
		}
	}

	stream := &miniaudioStream{mctx: mctx}
	stream.cond = sync.NewCond(&stream.mu)

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: stream.onData,
		Stop: stream.onStop,
	})
	if err != nil {
		closeContext(mctx)
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	stream.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		closeContext(mctx)
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	return stream, nil
}

func (b *miniaudioBackend) ListDevices(_ context.Context) (string, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return "", fmt.Errorf("init audio context: %w", err)
	}
	defer closeContext(mctx)

	devices, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return "", fmt.Errorf("list capture devices: %w", err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("no capture devices found")
	}

	names := make([]string, 0, len(devices))
	for _, info := range devices {
		names = append(names, info.Name())
	}
	return strings.Join(names, "\n"), nil
}

func closeContext(mctx *malgo.AllocatedContext) {
	_ = mctx.Uninit()
	mctx.Free()
}

// miniaudioStream buffers callback data until Read asks for a full block.
type miniaudioStream struct {
	mctx   *malgo.AllocatedContext
	device *malgo.Device

	mu      sync.Mutex
	cond    *sync.Cond
	pending []byte
	stopped bool
	closed  bool
}

func (s *miniaudioStream) onData(_, input []byte, _ uint32) {
	s.mu.Lock()
	s.pending = append(s.pending, input...)
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *miniaudioStream) onStop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.cond.Broadcast()
}

func (s *miniaudioStream) Read(buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for len(s.pending) < len(buf) && !s.stopped {
		s.cond.Wait()
	}
	if len(s.pending) < len(buf) {
		return fmt.Errorf("capture device stopped")
	}

	copy(buf, s.pending)
	s.pending = append(s.pending[:0], s.pending[len(buf):]...)
	return nil
}

func (s *miniaudioStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.device.Uninit()
	closeContext(s.mctx)
	return nil
}
