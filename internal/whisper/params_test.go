package whisper

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDecodeParamsUsesBeamSearch(t *testing.T) {
	t.Parallel()

	p := newDecodeParams(Options{Language: "auto", BeamSize: 5, Threads: 2}, 8)
	require.Equal(t, decodeParams{BeamSearch: true, BeamSize: 5, Threads: 2, Language: "auto"}, p)
}

func TestNewDecodeParamsDefaults(t *testing.T) {
	t.Parallel()

	p := newDecodeParams(Options{}, 4)
	require.True(t, p.BeamSearch)
	require.Equal(t, DefaultBeamSize, p.BeamSize)
	require.Equal(t, 4, p.Threads)
	require.Equal(t, "auto", p.Language)
}

func TestNewDecodeParamsWidthOneIsGreedy(t *testing.T) {
	t.Parallel()

	p := newDecodeParams(Options{BeamSize: 1, Language: " DE "}, 0)
	require.False(t, p.BeamSearch)
	require.Equal(t, 1, p.Threads)
	require.Equal(t, "de", p.Language)
}
