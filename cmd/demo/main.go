// Command demo runs a colorized, self-contained demonstration of raidme:
// it builds (or reuses) the raidme binary and walks a synthetic repository
// through analyze, status, retry, render, and reset.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/raidme/raidme/internal/demo"
)

func main() {
	var binPath string
	var continueOnError bool
	var fast bool
	flag.StringVar(&binPath, "bin", "", "Path to raidme binary (default: builds from source)")
	flag.BoolVar(&continueOnError, "continue-on-error", false, "Continue after step failures")
	flag.BoolVar(&fast, "fast", false, "Skip the pause after each successful step")
	flag.Parse()

	if binPath == "" {
		tmpDir, err := os.MkdirTemp("", "raidme-demo-bin-*")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to create temp dir: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = os.RemoveAll(tmpDir) }()

		binPath = filepath.Join(tmpDir, "raidme")
		fmt.Fprintln(os.Stderr, "Building raidme binary...")
		buildCmd := exec.Command("go", "build", "-o", binPath, "./cmd/raidme")
		buildCmd.Stdout = os.Stderr
		buildCmd.Stderr = os.Stderr
		if err := buildCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to build raidme: %v\n", err)
			os.Exit(1)
		}
	}

	dbDir, err := os.MkdirTemp("", "raidme-demo-db-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create DB dir: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = os.RemoveAll(dbDir) }()
	dbPath := filepath.Join(dbDir, "raidme-demo.db")

	r := demo.NewRunner(binPath, dbPath, os.Stdout, fast)
	passed, failed := r.RunAll(continueOnError)

	_, _ = fmt.Fprintf(os.Stdout, "\n%d passed, %d failed, %d total\n", passed, failed, passed+failed)
	if failed > 0 {
		os.Exit(1)
	}
}
