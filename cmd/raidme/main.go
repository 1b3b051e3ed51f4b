// Raidme incrementally analyzes a repository through repeated bounded
// model calls, persisting durable state in SQLite so a run can resume
// after a crash and produce a knowledge file describing the codebase.
package main

import (
	"os"
	"runtime/debug"

	"github.com/raidme/raidme/internal/commands"
)

// version is set via ldflags (-X main.version=v1.0.0) or detected
// automatically from Go module info embedded by go install.
var version = "dev"

func main() {
	if version == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
			version = info.Main.Version
		}
	}
	if err := commands.Execute(version); err != nil {
		os.Exit(1)
	}
}
