// Package version carries the roster build identity, stamped via -ldflags:
//
//	go build -ldflags "-X github.com/GoCodeAlone/roster/internal/version.Version=v1.2.0"
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String formats the build identity for banners and `roster version`.
func String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate)
}
