// Package version holds build information set via ldflags.
package version

import "runtime"

// Set at build time with -ldflags "-X github.com/launchdeck/launchdeck/pkg/version.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Build is the machine-readable form of the build information.
type Build struct {
	Version   string `json:"version" yaml:"version"`
	Commit    string `json:"commit" yaml:"commit"`
	Date      string `json:"date" yaml:"date"`
	GoVersion string `json:"goVersion" yaml:"goVersion"`
}

// Get returns the build information.
func Get() Build {
	return Build{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: runtime.Version(),
	}
}

// Info returns formatted version information
func Info() string {
	return "Version: " + Version + "\nCommit: " + Commit + "\nBuild Date: " + Date + "\nGo: " + runtime.Version()
}
