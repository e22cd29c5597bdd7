// Package version carries build metadata injected via -ldflags.
package version

// Set at build time:
//
//	go build -ldflags "-X github.com/HerbHall/naspulse/internal/version.Version=v0.3.0"
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

// Short returns the bare version string.
func Short() string {
	return Version
}

// Map returns all build metadata, for health endpoints.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
