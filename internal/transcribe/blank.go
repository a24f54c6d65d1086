package transcribe

import "strings"

// BlankAudioToken is what whisper emits for audio without speech.
const BlankAudioToken = "[BLANK_AUDIO]"

// IsBlank reports whether text carries no speech.
func IsBlank(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return true
	}

	return strings.EqualFold(trimmed, BlankAudioToken)
}

// NoSpeechHint is shown when a transcript came back blank.
func NoSpeechHint() string {
	return "No speech detected. Check mic mute and selected input device, then try again."
}
