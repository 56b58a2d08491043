// Package buildinfo carries release metadata stamped in with -ldflags.
package buildinfo

import "fmt"

// Set with -X github.com/sitebooks/sitebooks/internal/buildinfo.Version=... and friends.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// String renders the version line shown by --version.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
}
