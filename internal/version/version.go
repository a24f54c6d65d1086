package version

import (
	"runtime/debug"
	"strings"
)

// Set through -ldflags on release builds.
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// Resolve returns the full version string. Release builds report Version as
// is; other builds append the VCS revision stamped by the Go toolchain, and
// `go install module@vX.Y.Z` builds report the module version.
func Resolve() string {
	info, _ := debug.ReadBuildInfo()
	return resolveVersion(Version, Commit, info)
}

func resolveVersion(base, commit string, info *debug.BuildInfo) string {
	if base == "" {
		base = "0.0.0"
	}
	if commit != "" && commit != "unknown" {
		return base
	}
	if info == nil {
		return base
	}

	if v := strings.TrimPrefix(info.Main.Version, "v"); v != "" && v != "(devel)" && !strings.Contains(v, "-0.") {
		return v
	}

	settings := make(map[string]string, len(info.Settings))
	for _, s := range info.Settings {
		settings[s.Key] = s.Value
	}

	revision := settings["vcs.revision"]
	if revision == "" {
		return base
	}
	if len(revision) > 7 {
		revision = revision[:7]
	}

	suffix := "g" + revision
	if settings["vcs.modified"] == "true" {
		suffix += "-dirty"
	}
	return base + "-" + suffix
}
