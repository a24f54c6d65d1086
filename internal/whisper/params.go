package whisper

import "strings"

// DefaultBeamSize is the beam-search width used when none is configured.
const DefaultBeamSize = 5

// decodeParams is the decoding setup handed to whisper.cpp for one call.
type decodeParams struct {
	// BeamSearch selects beam-search sampling; greedy sampling otherwise.
	BeamSearch bool
	BeamSize   int
	Threads    int
	// Language is "auto" or a language code.
	Language string
}

func newDecodeParams(opts Options, numCPU int) decodeParams {
	p := decodeParams{
		BeamSize: opts.BeamSize,
		Threads:  opts.Threads,
		Language: strings.ToLower(strings.TrimSpace(opts.Language)),
	}
	if p.BeamSize <= 0 {
		p.BeamSize = DefaultBeamSize
	}
	p.BeamSearch = p.BeamSize > 1
	if p.Threads <= 0 {
		p.Threads = max(numCPU, 1)
	}
	if p.Language == "" {
		p.Language = "auto"
	}
	return p
}
