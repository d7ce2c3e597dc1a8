package main

// ============================================================================
// PS entry point: builds the CLI and maps errors to the exit status.
// All logic lives in internal/cli.
// ============================================================================

import (
	"fmt"
	"os"

	"github.com/SistemasDistribuidos2530/biblioteca-clientes/internal/cli"
)

// Set with -ldflags "-X main.version=... -X main.commit=..."
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "fatal: %v\n", r)
			os.Exit(2)
		}
	}()

	rootCmd := cli.BuildCLI()
	if version != "dev" {
		rootCmd.Version = fmt.Sprintf("%s (commit: %s)", version, commit)
	}

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
