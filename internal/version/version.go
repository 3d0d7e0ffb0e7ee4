// Package version reports the build of the mysql2mongo binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version and Commit are set at build time via -ldflags
var (
	Version string
	Commit  string
)

func init() {
	if Version != "" {
		return
	}

	// go install builds carry the module version instead
	info, ok := debug.ReadBuildInfo()
	if !ok {
		Version = "devel"
		return
	}
	Version = info.Main.Version
	if Version == "" || Version == "(devel)" {
		Version = "devel"
	}
	if Commit == "" {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				Commit = s.Value[:7]
			}
		}
	}
}

// String renders the version line printed by the version command.
func String() string {
	s := "mysql2mongo " + Version
	if Commit != "" {
		s += " (" + Commit + ")"
	}
	return fmt.Sprintf("%s %s/%s", s, runtime.GOOS, runtime.GOARCH)
}
