package version

import "fmt"

// Version is set at build time:
// go build -ldflags "-X git.home.luguber.info/inful/timetracker/internal/version.Version=v0.3.0".
var Version = "unknown"

// BuildInfo contains additional build metadata.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String renders the line printed by --version.
func String() string {
	return fmt.Sprintf("timetracker %s (commit %s, built %s)", Version, GitCommit, BuildTime)
}

// UserAgent is the default User-Agent sent to the backend.
func UserAgent() string {
	return "timetracker-agent/" + Version
}
