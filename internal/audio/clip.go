// Package audio holds the PCM clip type shared by capture and transcription,
// and the WAV and ffmpeg plumbing that moves clips on and off disk.
package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// Capture and model input format. Whisper expects 16 kHz mono.
const (
	SampleRate  = 16000
	Channels    = 1
	BitDepth    = 16
	BlockFrames = 1024

	bytesPerSample = BitDepth / 8
)

var (
	ErrInvalidWAV       = errors.New("invalid wav file")
	ErrUnsupportedAudio = errors.New("unsupported audio")
)

// Clip is interleaved little-endian PCM with its format.
type Clip struct {
	SampleRate int
	Channels   int
	BitDepth   int
	PCM        []byte
}

// NewClip returns a clip in the capture format.
func NewClip(pcm []byte) Clip {
	return Clip{SampleRate: SampleRate, Channels: Channels, BitDepth: BitDepth, PCM: pcm}
}

// Frames is the number of sample frames in the clip.
func (c Clip) Frames() int {
	frameSize := c.Channels * c.BitDepth / 8
	if frameSize <= 0 {
		return 0
	}
	return len(c.PCM) / frameSize
}

func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// ModelReady reports whether the clip can be fed to the model without conversion.
func (c Clip) ModelReady() bool {
	return c.SampleRate == SampleRate && c.Channels == Channels && c.BitDepth == BitDepth
}

// Samples converts 16-bit PCM to float32 in [-1, 1).
func (c Clip) Samples() []float32 {
	return pcm16ToFloat32(c.PCM)
}

func pcm16ToFloat32(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/bytesPerSample)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[i*bytesPerSample:]))
		samples[i] = float32(v) / 32768.0
	}
	return samples
}
