package audio

import (
	"encoding/binary"
	"math"
)

type Levels struct {
	RMSdBFS  float64
	PeakdBFS float64
	Samples  int64
}

// MeasureLevels computes RMS and peak levels of 16-bit PCM in dBFS. An empty or
// all-zero payload reports -Inf for both.
func MeasureLevels(pcm []byte) Levels {
	var peak, sumSquares float64
	var samples int64

	for i := 0; i+bytesPerSample <= len(pcm); i += bytesPerSample {
		v := float64(int16(binary.LittleEndian.Uint16(pcm[i:]))) / 32768.0
		if abs := math.Abs(v); abs > peak {
			peak = abs
		}
		sumSquares += v * v
		samples++
	}

	if samples == 0 {
		return Levels{RMSdBFS: math.Inf(-1), PeakdBFS: math.Inf(-1)}
	}

	return Levels{
		RMSdBFS:  amplitudeToDBFS(math.Sqrt(sumSquares / float64(samples))),
		PeakdBFS: amplitudeToDBFS(peak),
		Samples:  samples,
	}
}

func amplitudeToDBFS(amplitude float64) float64 {
	if amplitude <= 0 {
		return math.Inf(-1)
	}
	return 20.0 * math.Log10(amplitude)
}
