// Package version provides build-time version information for the SDK.
//
// Version, Commit, and Date are injected at build time via ldflags:
//
//	go build -ldflags "-X github.com/litix/data-go/internal/version.Version=x.y.z \
//	                   -X github.com/litix/data-go/internal/version.Commit=$(git rev-parse HEAD) \
//	                   -X github.com/litix/data-go/internal/version.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package version

import (
	"fmt"
	"runtime"
)

// Build-time variables injected via ldflags.
var (
	// Version is the semantic version following SemVer 2.0.0.
	Version = "dev"

	// Commit is the full git commit SHA.
	Commit = "unknown"

	// Date is the build timestamp in RFC3339 format.
	Date = "unknown"
)

// GoVersion is the Go runtime version.
var GoVersion = runtime.Version()

// SDKName is the canonical name of this SDK, reported to the collector.
const SDKName = "litix-data-go"

// Info contains structured version information.
type Info struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

// GetInfo returns all version information as a structured type.
func GetInfo() Info {
	return Info{
		Version:   Version,
		Commit:    Commit,
		Date:      Date,
		GoVersion: GoVersion,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// UserAgent returns the value sent in the User-Agent header of beacon
// requests, e.g. "litix-data-go/1.2.3".
func UserAgent() string {
	return fmt.Sprintf("%s/%s", SDKName, Version)
}

// String returns a human-readable version string.
func String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, %s)", SDKName, Version, Commit, Date, GoVersion)
}
