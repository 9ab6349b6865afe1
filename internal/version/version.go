// Package version exposes build information stamped at link time.
package version

import (
	"fmt"
	"runtime"
)

// These variables are set at build time using -ldflags.
var (
	// Version is the semantic version of the application
	Version = "dev"
	// GitCommit is the git commit hash when the binary was built
	GitCommit = "unknown"
	// BuildTime is the time when the binary was built (RFC3339 format)
	BuildTime = "unknown"
)

// BuildInfo contains version and build information.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// Get returns the build information for this binary.
func Get() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// String renders the build info on one line.
func (b BuildInfo) String() string {
	return fmt.Sprintf("packhouse %s (commit %s, built %s, %s, %s)",
		b.Version, b.GitCommit, b.BuildTime, b.GoVersion, b.Platform)
}
