package session

import (
	"context"
	"errors"
	"os"

	"github.com/fmueller/voxscribe/internal/audio"
	"github.com/fmueller/voxscribe/internal/record"
	"github.com/fmueller/voxscribe/internal/transcribe"
	"github.com/fmueller/voxscribe/internal/whisper"
)

type Kind string

const (
	KindDeviceUnavailable Kind = "device_unavailable"
	KindModelLoadFailure  Kind = "model_load_failure"
	KindNoFileChosen      Kind = "no_file_chosen"
	KindFileNotFound      Kind = "file_not_found"
	KindInvalidDuration   Kind = "invalid_duration"
	KindSelectionFailed   Kind = "selection_failed"
	KindUnsupportedAudio  Kind = "unsupported_audio"
	KindInferenceFailure  Kind = "inference_failure"
	KindCleanupFailure    Kind = "cleanup_failure"
	KindBusy              Kind = "busy"
	KindCanceled          Kind = "canceled"
)

var kindTitles = map[Kind]string{
	KindDeviceUnavailable: "Recording failed",
	KindModelLoadFailure:  "Model error",
	KindNoFileChosen:      "No file selected",
	KindFileNotFound:      "File not found",
	KindInvalidDuration:   "Invalid duration",
	KindSelectionFailed:   "File selection failed",
	KindUnsupportedAudio:  "Unsupported audio",
	KindInferenceFailure:  "Transcription failed",
	KindCleanupFailure:    "Cleanup failed",
	KindBusy:              "Busy",
	KindCanceled:          "Canceled",
}

func (k Kind) Title() string {
	if title, ok := kindTitles[k]; ok {
		return title
	}
	return "Error"
}

// Error is a request failure. Detail is a short human-readable reason.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Title()
	}
	return e.Kind.Title() + ": " + e.Detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Display renders the error for a status line, cutting the detail to at most
// limit runes. A limit <= 0 keeps the full detail.
func (e *Error) Display(limit int) string {
	if e.Detail == "" {
		return e.Kind.Title()
	}
	return e.Kind.Title() + ": " + Truncate(e.Detail, limit)
}

// Truncate shortens s to limit runes followed by "...".
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func newError(kind Kind, err error) *Error {
	detail := ""
	if err != nil {
		detail = err.Error()
	}
	return &Error{Kind: kind, Detail: detail, Err: err}
}

// classify maps an error from a collaborator onto a Kind. fallback applies
// when no sentinel matches.
func classify(err error, fallback Kind) Kind {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, whisper.ErrModelUnavailable):
		return KindModelLoadFailure
	case errors.Is(err, record.ErrInvalidDuration):
		return KindInvalidDuration
	case errors.Is(err, record.ErrDeviceUnavailable):
		return KindDeviceUnavailable
	case errors.Is(err, transcribe.ErrInference):
		return KindInferenceFailure
	case errors.Is(err, audio.ErrUnsupportedAudio), errors.Is(err, audio.ErrInvalidWAV):
		return KindUnsupportedAudio
	case errors.Is(err, os.ErrNotExist):
		return KindFileNotFound
	default:
		return fallback
	}
}
