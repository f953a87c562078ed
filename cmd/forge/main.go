// Package main is the entry point for the forge command.
package main

import (
	"context"
	"os"

	"github.com/colonise/forge/pkg/cli"
	"github.com/colonise/forge/pkg/process"
)

// Version information (set via ldflags during build).
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// The CLI has already logged the error, together with a hint when there
	// is one.
	err := cli.ExecuteWithVersion(context.Background(), version)
	return process.ExitCode(err)
}
