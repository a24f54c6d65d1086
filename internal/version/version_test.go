package version

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildInfo(mainVersion string, settings map[string]string) *debug.BuildInfo {
	info := &debug.BuildInfo{Main: debug.Module{Path: "github.com/fmueller/voxscribe", Version: mainVersion}}
	for k, v := range settings {
		info.Settings = append(info.Settings, debug.BuildSetting{Key: k, Value: v})
	}
	return info
}

func TestResolveVersion_ReleaseBuild(t *testing.T) {
	t.Parallel()
	info := buildInfo("(devel)", map[string]string{"vcs.revision": "abcdef0123456789"})
	require.Equal(t, "0.1.0", resolveVersion("0.1.0", "abcdef0", info))
}

func TestResolveVersion_DevelopmentBuild(t *testing.T) {
	t.Parallel()
	info := buildInfo("(devel)", map[string]string{"vcs.revision": "abcdef0123456789"})
	require.Equal(t, "0.1.0-gabcdef0", resolveVersion("0.1.0", "unknown", info))
}

func TestResolveVersion_DirtyWorkingTree(t *testing.T) {
	t.Parallel()
	info := buildInfo("(devel)", map[string]string{"vcs.revision": "abcdef0123456789", "vcs.modified": "true"})
	require.Equal(t, "0.1.0-gabcdef0-dirty", resolveVersion("0.1.0", "unknown", info))
}

func TestResolveVersion_ShortRevision(t *testing.T) {
	t.Parallel()
	info := buildInfo("", map[string]string{"vcs.revision": "abc"})
	require.Equal(t, "0.1.0-gabc", resolveVersion("0.1.0", "", info))
}

func TestResolveVersion_GoInstallTag(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.2.1", resolveVersion("0.1.0", "unknown", buildInfo("v0.2.1", nil)))
}

func TestResolveVersion_PseudoVersionIgnored(t *testing.T) {
	t.Parallel()
	info := buildInfo("v0.1.1-0.20261018101500-abcdef012345", nil)
	require.Equal(t, "0.1.0", resolveVersion("0.1.0", "unknown", info))
}

func TestResolveVersion_NoBuildInfo(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.1.0", resolveVersion("0.1.0", "unknown", nil))
}

func TestResolveVersion_EmptyBaseFallsBackToZero(t *testing.T) {
	t.Parallel()
	require.Equal(t, "0.0.0", resolveVersion("", "unknown", nil))
}

func TestResolveIsNotEmpty(t *testing.T) {
	t.Parallel()
	require.NotEmpty(t, Resolve())
}
