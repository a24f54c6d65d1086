package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavPCMFormat = 1

// WriteWAV encodes a 16-bit clip as a RIFF/WAVE PCM container.
func WriteWAV(w io.WriteSeeker, clip Clip) error {
	if clip.BitDepth != BitDepth {
		return fmt.Errorf("%w: %d-bit pcm", ErrUnsupportedAudio, clip.BitDepth)
	}
	if len(clip.PCM)%bytesPerSample != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}

	data := make([]int, len(clip.PCM)/bytesPerSample)
	for i := range data {
		data[i] = int(int16(binary.LittleEndian.Uint16(clip.PCM[i*bytesPerSample:])))
	}

	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: clip.Channels, SampleRate: clip.SampleRate},
		Data:           data,
		SourceBitDepth: clip.BitDepth,
	}

	enc := wav.NewEncoder(w, clip.SampleRate, clip.BitDepth, clip.Channels, wavPCMFormat)
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}

// WriteTempWAV writes the clip to a new voxscribe-*.wav file in dir and
// returns its path. The caller owns the file.
func WriteTempWAV(dir string, clip Clip) (string, error) {
	f, err := os.CreateTemp(dir, "voxscribe-*.wav")
	if err != nil {
		return "", fmt.Errorf("create temp wav: %w", err)
	}

	if err := WriteWAV(f, clip); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("close temp wav: %w", err)
	}

	return f.Name(), nil
}

// ReadWAV decodes a PCM WAV file. Only integer PCM is accepted.
func ReadWAV(path string) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, fmt.Errorf("open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Clip{}, ErrInvalidWAV
	}
	if dec.WavAudioFormat != wavPCMFormat || dec.BitDepth != BitDepth {
		return Clip{}, fmt.Errorf("%w: wav format %d, %d-bit", ErrUnsupportedAudio, dec.WavAudioFormat, dec.BitDepth)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}

	pcm := make([]byte, len(buf.Data)*bytesPerSample)
	for i, v := range buf.Data {
		binary.LittleEndian.PutUint16(pcm[i*bytesPerSample:], uint16(int16(v)))
	}

	return Clip{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
		PCM:        pcm,
	}, nil
}
