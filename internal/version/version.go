// Package version reports the version of the lineage binary.
package version

import (
	"runtime"
	"runtime/debug"
)

// Set at build time with
// -ldflags "-X lineage/internal/version.Version=1.0.0 -X lineage/internal/version.Commit=abc123"
var (
	Version   = "0.4.0"
	Commit    = ""
	BuildDate = ""
)

// readBuildInfo is replaced in tests
var readBuildInfo = debug.ReadBuildInfo

// vcs returns the commit the binary was built from and whether the worktree
// was dirty. Commit wins over what the Go toolchain stamped into the binary.
func vcs() (revision string, modified bool) {
	if Commit != "" {
		return Commit, false
	}
	info, ok := readBuildInfo()
	if !ok {
		return "", false
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			modified = s.Value == "true"
		}
	}
	return revision, modified
}

// Info returns the version with the short commit, e.g. "0.4.0 (3f2a9c1)"
func Info() string {
	rev, modified := vcs()
	if len(rev) < 7 {
		return Version
	}
	rev = rev[:7]
	if modified {
		rev += "-dirty"
	}
	return Version + " (" + rev + ")"
}

// Full returns the multi-line form printed by the version command
func Full() string {
	b := Build()
	s := "lineage version " + b.Version + "\n"
	if b.Commit != "" {
		s += "Commit: " + b.Commit + "\n"
	}
	if b.BuildDate != "" {
		s += "Built: " + b.BuildDate + "\n"
	}
	return s + "Go: " + b.GoVersion
}

// BuildInfo is the machine-readable form of Full
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit,omitempty"`
	Modified  bool   `json:"modified,omitempty"`
	BuildDate string `json:"buildDate,omitempty"`
	GoVersion string `json:"goVersion"`
}

// Build returns the version information of the running binary
func Build() BuildInfo {
	rev, modified := vcs()
	return BuildInfo{
		Version:   Version,
		Commit:    rev,
		Modified:  modified,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}
