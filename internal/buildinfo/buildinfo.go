// Package buildinfo holds version metadata injected at link time.
package buildinfo

// Set via -ldflags "-X github.com/modoterra/fxswitch/internal/buildinfo.Version=...".
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)
