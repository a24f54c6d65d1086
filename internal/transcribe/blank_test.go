package transcribe

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsBlank(t *testing.T) {
	t.Parallel()

	require.True(t, IsBlank(""))
	require.True(t, IsBlank("   \n\t "))
	require.True(t, IsBlank("[BLANK_AUDIO]"))
	require.True(t, IsBlank(" [blank_audio] "))
	require.False(t, IsBlank("Hello world"))
}
