package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/notifier"
	"github.com/colonise/forge/pkg/pipeline"
	"github.com/colonise/forge/pkg/process"
	"github.com/colonise/forge/pkg/release"
	"github.com/colonise/forge/pkg/toolchain"
	"github.com/colonise/forge/pkg/types"
)

var pipelineDescriptions = map[string]string{
	pipeline.Clean:      "Remove the build and distribution directories",
	pipeline.Build:      "Clean, compile and copy declaration files",
	pipeline.Lint:       "Run the linter with auto-fix and report findings",
	pipeline.Test:       "Build and run the tests",
	pipeline.Coverage:   "Build and run the tests with coverage instrumentation",
	pipeline.Distribute: "Build, copy artifacts to the distribution directory and release",
	pipeline.Debug:      "Run the source tests without building",
	pipeline.All:        "Lint and clean, compile, test and copy artifacts",
}

func (c *CLI) newPipelineCmd(name string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: pipelineDescriptions[name],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runPipelineCommand(cmd.Context(), name)
		},
	}
}

func (c *CLI) runPipelineCommand(ctx context.Context, name string) error {
	cfg, err := c.loadProjectConfig()
	if err != nil {
		return err
	}
	registry, err := c.buildRegistry(cfg)
	if err != nil {
		return err
	}
	if err := c.preflight(cfg, name); err != nil {
		return err
	}

	proc := process.NewManager(c.logger)
	ctx = proc.Start(ctx)
	defer proc.Stop()

	return c.execute(ctx, cfg, registry, name)
}

// preflight checks what must hold before any task of name runs.
func (c *CLI) preflight(cfg *types.ForgeConfig, name string) error {
	if name != pipeline.Distribute || !cfg.Release.IsEnabled() {
		return nil
	}
	_, err := release.ResolveConfig(c.releaseOptions(cfg))
	return err
}

// execute runs one pipeline under its run lock, recording the run and
// notifying about its outcome.
func (c *CLI) execute(ctx context.Context, cfg *types.ForgeConfig, registry *engine.Registry, name string) error {
	node, err := registry.Lookup(name)
	if err != nil {
		return err
	}

	sm := state.NewStateManager(c.root, c.logger)
	unlock, err := sm.Lock(name)
	if err != nil {
		if errors.Is(err, state.ErrPipelineLocked) {
			return fmt.Errorf("%w; use 'forge wait %s' to wait for it", err, name)
		}
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			c.logger.Warn("Failed to release pipeline lock", logger.WithField("error", err))
		}
	}()

	observers := []engine.Observer{sm.Recorder(name)}
	if cfg.Notifications.IsEnabled() {
		n := notifier.New(notifier.Config{Enabled: true, Sound: true}, c.logger)
		if c.config.Notify != nil {
			n = n.WithSender(c.config.Notify)
		}
		observers = append(observers, n)
	}

	start := time.Now()
	err = engine.NewRunner(c.logger, observers...).Run(ctx, node)
	if err != nil {
		if failures := engine.Failures(err); len(failures) > 1 {
			c.logger.Error(fmt.Sprintf("%d tasks failed", len(failures)))
		}
		return fmt.Errorf("'%s' failed: %w", name, err)
	}
	c.logger.Success(fmt.Sprintf("'%s' finished after %s", name, engine.FormatDuration(time.Since(start))))
	return nil
}

func (c *CLI) runner() toolchain.Runner {
	if c.config.Runner != nil {
		return c.config.Runner
	}
	return toolchain.NewExecRunner(c.logger, c.logDir())
}

// buildRegistry wires the configured collaborators into every pipeline.
func (c *CLI) buildRegistry(cfg *types.ForgeConfig) (*engine.Registry, error) {
	runner := c.runner()
	tc, err := toolchain.New(c.root, cfg.Toolchain, cfg.Paths, runner, c.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to configure toolchain: %w", err)
	}

	deps := pipeline.Collaborators{
		Compiler:      tc.Compiler,
		Linter:        tc.Linter,
		TestRunner:    tc.TestRunner,
		Instrumenter:  tc.Instrumenter,
		Reporter:      tc.Reporter,
		Output:        c.output,
		Logger:        c.logger,
		DisableColors: c.config.Runner != nil,
	}

	if cfg.Release.IsEnabled() {
		rel, err := release.New(c.releaseOptions(cfg), release.Dependencies{
			VCS:      release.NewGitCLI(runner, c.root),
			Registry: release.NewNPMCLI(runner, c.root),
			Hosting:  release.NewGitHubCLI(runner, c.root, releaseSlug(cfg.Release)),
			Logger:   c.logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to configure release: %w", err)
		}
		timeout := cfg.Timeouts.Release
		deps.Release = func() engine.Node { return rel.Node(timeout) }
	}

	return pipeline.New(c.root, cfg, deps)
}

// releaseOptions reads the package name from the environment once.
func (c *CLI) releaseOptions(cfg *types.ForgeConfig) release.Options {
	return release.Options{
		Release:     cfg.Release,
		PackageName: release.PackageNameFromEnv(cfg.Release),
		Root:        c.root,
		BuildDir:    cfg.Paths.Build,
	}
}

func releaseSlug(cfg *types.ReleaseConfig) string {
	repository := cfg.Repository
	if repository == "" {
		repository = release.PackageNameFromEnv(cfg)
	}
	return cfg.Organization + "/" + repository
}
