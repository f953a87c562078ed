// Package cli provides the command-line interface for forge
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/colonise/forge/pkg/config"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/pipeline"
	"github.com/colonise/forge/pkg/release"
	"github.com/colonise/forge/pkg/types"
)

// CLI encapsulates the command-line interface and keeps it testable.
type CLI struct {
	config   *Config
	rootCmd  *cobra.Command
	logger   logger.Logger
	output   io.Writer
	errorOut io.Writer

	root       string
	configPath string
}

// NewCLI creates a new CLI instance with the given configuration
func NewCLI(cfg *Config) *CLI {
	if cfg == nil {
		cfg = NewConfig()
	}

	c := &CLI{
		config:   cfg,
		output:   os.Stdout,
		errorOut: os.Stderr,
		logger:   logger.NewNop(),
	}
	c.setupCommands()
	return c
}

// NewCLIWithOutput creates a CLI with custom output writers (for testing)
func NewCLIWithOutput(cfg *Config, output, errorOut io.Writer) *CLI {
	c := NewCLI(cfg)
	c.output = output
	c.errorOut = errorOut
	c.rootCmd.SetOut(output)
	c.rootCmd.SetErr(errorOut)
	return c
}

// Execute runs the CLI with the given arguments
func (c *CLI) Execute(args []string) error {
	return c.ExecuteContext(context.Background(), args)
}

// ExecuteContext runs the CLI with context support. Configuration errors are
// reported together with their remediation hint.
func (c *CLI) ExecuteContext(ctx context.Context, args []string) error {
	c.rootCmd.SetArgs(args)
	err := c.rootCmd.ExecuteContext(ctx)
	if err != nil {
		c.reportError(err)
	}
	return err
}

func (c *CLI) setupCommands() {
	c.rootCmd = &cobra.Command{
		Use:   "forge",
		Short: "Build, test and release TypeScript and Go projects",
		Long: `forge runs the build pipelines of a project: clean, build, lint, test,
coverage, distribute, debug and all. Without a command it runs "all".`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.initialize,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipelineCommand(cmd.Context(), pipeline.All)
		},
	}

	c.setupFlags()

	c.rootCmd.Version = c.config.Version
	c.rootCmd.SetVersionTemplate("forge v{{.Version}}\n")

	for _, name := range pipeline.Names {
		c.rootCmd.AddCommand(c.newPipelineCmd(name))
	}
	c.rootCmd.AddCommand(c.newGraphCmd())
	c.rootCmd.AddCommand(c.newStatusCmd())
	c.rootCmd.AddCommand(c.newLogsCmd())
	c.rootCmd.AddCommand(c.newWaitCmd())
	c.rootCmd.AddCommand(c.newWatchCmd())
	c.rootCmd.AddCommand(c.newInitCmd())
	c.rootCmd.AddCommand(c.newVersionCmd())
}

func (c *CLI) setupFlags() {
	flags := c.rootCmd.PersistentFlags()

	flags.StringVar(&c.config.ConfigFile, "config", c.config.ConfigFile, "config file (default: forge.config.yaml in the project root)")
	flags.StringVar(&c.config.ProjectRoot, "root", c.config.ProjectRoot, "project root directory")
	flags.StringVarP(&c.config.Verbosity, "verbosity", "v", c.config.Verbosity, "log level (debug, info, warn, error)")
}

func (c *CLI) initialize(cmd *cobra.Command, args []string) error {
	root, err := filepath.Abs(c.config.ProjectRoot)
	if err != nil {
		return fmt.Errorf("failed to resolve project root: %w", err)
	}
	c.root = root
	c.configPath = c.config.ConfigFile
	if c.configPath != "" && !filepath.IsAbs(c.configPath) {
		c.configPath = filepath.Join(root, c.configPath)
	}

	level := c.config.Verbosity
	if level == "" {
		level = string(types.LogLevelInfo)
	}
	c.logger = c.newLogger(level)
	return nil
}

func (c *CLI) newLogger(level string) logger.Logger {
	if f, ok := c.output.(*os.File); ok && f == os.Stdout {
		return logger.CreateLogger("", level)
	}
	return logger.CreateLoggerWithOutput(level, c.output)
}

// loadProjectConfig reads the project configuration. The configured log
// level applies unless --verbosity was given.
func (c *CLI) loadProjectConfig() (*types.ForgeConfig, error) {
	manager := config.NewManager()
	cfg, err := manager.Load(c.root, c.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if path := manager.ConfigPath(); path != "" {
		c.configPath = path
		c.logger.Debug("Using config file", logger.WithField("file", path))
	} else {
		c.logger.Debug("No config file found, using the preset",
			logger.WithField("projectType", cfg.ProjectType))
	}

	if c.config.Verbosity == "" && cfg.LogLevel != "" {
		c.logger = c.newLogger(string(cfg.LogLevel))
	}
	return cfg, nil
}

func (c *CLI) reportError(err error) {
	if c.root == "" {
		// Flag and argument errors happen before the logger exists.
		logger.NewConsoleLogger(c.output, c.errorOut).Error(fmt.Sprintf("Error: %v", err))
		return
	}
	var cfgErr *release.ConfigError
	if errors.As(err, &cfgErr) && cfgErr.Hint != "" {
		c.logger.Error(err.Error())
		c.logger.Info(cfgErr.Hint)
		return
	}
	c.logger.Error(err.Error())
}

func (c *CLI) stateDir() string {
	return filepath.Join(c.root, ".forge")
}

func (c *CLI) logDir() string {
	return filepath.Join(c.stateDir(), "logs")
}

// ExecuteWithVersion runs the CLI over os.Args.
func ExecuteWithVersion(ctx context.Context, version string) error {
	cfg := NewConfig()
	cfg.Version = version
	return NewCLI(cfg).ExecuteContext(ctx, os.Args[1:])
}
