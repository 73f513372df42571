// Package buildinfo provides build-time version information.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/yczddgj/chartgalaxy/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/yczddgj/chartgalaxy/pkg/buildinfo.Commit=$(git rev-parse HEAD) \
//	    -X github.com/yczddgj/chartgalaxy/pkg/buildinfo.Date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package buildinfo

import "fmt"

var (
	// Version is the semantic version (e.g., "v0.3.0").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Version, Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, Date)
}

// UserAgent identifies chartgalaxy in outgoing HTTP requests.
func UserAgent() string {
	return "chartgalaxy/" + Version
}
