package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Build-time variables, overridden via ldflags.
var (
	Version   = "unknown-version"
	GitCommit = "unknown-commit"
	BuildTime = "unknown-buildtime"
)

// BuildInfo returns a tab separated description of the build.
func BuildInfo() string {
	var builder strings.Builder
	fmt.Fprintln(&builder, "Version:\t", Version)
	fmt.Fprintln(&builder, "Go version:\t", runtime.Version())
	fmt.Fprintln(&builder, "Git commit:\t", GitCommit)
	fmt.Fprintln(&builder, "Built:\t\t", BuildTime)
	fmt.Fprintf(&builder, "OS/Arch:\t %s/%s\n", runtime.GOOS, runtime.GOARCH)
	return builder.String()
}
