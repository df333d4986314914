// Package version carries build metadata, set at link time with
// -ldflags "-X github.com/banshee-data/ctdlog/internal/version.Version=...".
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String returns the one-line form printed by -version.
func String() string {
	return fmt.Sprintf("ctdlog %s (%s, built %s)", Version, GitSHA, BuildTime)
}
