package cli

import (
	"github.com/colonise/forge/pkg/notifier"
	"github.com/colonise/forge/pkg/toolchain"
)

// Config holds all CLI configuration so commands run without globals.
type Config struct {
	ConfigFile  string
	ProjectRoot string
	Verbosity   string
	Version     string

	// Runner executes collaborator commands. Defaults to child processes
	// logging under .forge/logs.
	Runner toolchain.Runner
	// Notify replaces the desktop notification transport.
	Notify notifier.Sender
}

// NewConfig creates a new CLI configuration with defaults
func NewConfig() *Config {
	return &Config{
		ProjectRoot: ".",
		Version:     "dev",
	}
}
