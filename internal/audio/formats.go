package audio

import (
	"path/filepath"
	"strings"
)

// SupportedExtensions are the input formats offered by the file picker. Anything
// other than model-ready WAV is converted by ffmpeg.
var SupportedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".aac", ".ogg", ".wma"}

func IsSupported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, candidate := range SupportedExtensions {
		if ext == candidate {
			return true
		}
	}
	return false
}

// Patterns returns glob patterns such as "*.mp3" for dialog filters.
func Patterns() []string {
	patterns := make([]string, 0, len(SupportedExtensions))
	for _, ext := range SupportedExtensions {
		patterns = append(patterns, "*"+ext)
	}
	return patterns
}
