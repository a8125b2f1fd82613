package version

import "fmt"

// Build metadata, stamped via -ldflags "-X macropulse/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build metadata in the layout printed by `macropulse version`.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}

// UserAgent is sent to the MacroPulse API when no override is configured.
func UserAgent() string {
	return "macropulse/" + Version
}
