//go:build nowhispercpp

package whisper

import "fmt"

// OpenCPP is unavailable in builds without the whisper.cpp bindings.
func OpenCPP(path string) (Model, error) {
	return nil, fmt.Errorf("%w: whisper.cpp support is disabled in this build (model %s)", ErrModelUnavailable, path)
}
