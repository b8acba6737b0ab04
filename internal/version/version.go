// Package version holds burrow's build information.
package version

import (
	"runtime"
	"runtime/debug"
)

// Overridden at build time:
// go build -ldflags "-X burrow/internal/version.Version=1.0.0 -X burrow/internal/version.Commit=abc123"
var (
	Version = "0.3.0"

	// Commit is the git commit hash
	Commit = "unknown"

	// BuildDate is the build timestamp
	BuildDate = "unknown"

	// Modified marks a build from a tree with uncommitted changes.
	Modified bool
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		applyBuildInfo(info)
	}
}

// applyBuildInfo fills what -ldflags left unset from the VCS stamp the Go
// toolchain embeds.
func applyBuildInfo(info *debug.BuildInfo) {
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if Commit == "unknown" && s.Value != "" {
				Commit = s.Value
			}
		case "vcs.time":
			if BuildDate == "unknown" && s.Value != "" {
				BuildDate = s.Value
			}
		case "vcs.modified":
			Modified = s.Value == "true"
		}
	}
}

// ShortCommit returns the first seven characters of the commit, or "" when
// the commit is unknown or too short to be a hash.
func ShortCommit() string {
	if Commit == "unknown" || len(Commit) < 7 {
		return ""
	}
	return Commit[:7]
}

// Info returns the version with a short commit suffix when one is known.
func Info() string {
	short := ShortCommit()
	if short == "" {
		return Version
	}
	if Modified {
		short += "-dirty"
	}
	return Version + " (" + short + ")"
}

// Full returns every piece of build information, one per line.
func Full() string {
	return "burrow version " + Version + "\n" +
		"Commit: " + Commit + "\n" +
		"Built: " + BuildDate + "\n" +
		"Go: " + runtime.Version()
}
