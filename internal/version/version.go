package version

import "fmt"

// These variables are set via ldflags at build time.
// Example: go build -ldflags "-X cashlens/internal/version.Version=1.0.0 -X cashlens/internal/version.GitCommit=$(git rev-parse --short HEAD)"
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// String is the one-line build description printed by --version
func String() string {
	return fmt.Sprintf("cashlens %s (built %s, commit %s)", Version, BuildTime, GitCommit)
}
