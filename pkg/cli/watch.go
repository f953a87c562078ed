package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/spf13/cobra"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/config"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/process"
	"github.com/colonise/forge/pkg/types"
	"github.com/colonise/forge/pkg/watch"
)

func (c *CLI) newWatchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <pipeline>",
		Short: "Rerun a pipeline whenever sources change",
		Long: `Run the pipeline, then run it again each time files below the source
directory change. Changes are batched until the tree has been quiet for the
configured settling delay. Editing the config file takes effect on the next run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWatch(cmd.Context(), args[0], !skipInitial)
		},
	}
	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first change before running")
	return cmd
}

// watchSession holds the configuration a watch run uses. It is replaced
// whenever the config file is reloaded.
type watchSession struct {
	mu       sync.Mutex
	cfg      *types.ForgeConfig
	registry *engine.Registry
}

func (s *watchSession) current() (*types.ForgeConfig, *engine.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.registry
}

func (s *watchSession) replace(cfg *types.ForgeConfig, registry *engine.Registry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg, s.registry = cfg, registry
}

func (c *CLI) runWatch(ctx context.Context, name string, initial bool) error {
	cfg, err := c.loadProjectConfig()
	if err != nil {
		return err
	}
	registry, err := c.buildRegistry(cfg)
	if err != nil {
		return err
	}
	if _, err := registry.Lookup(name); err != nil {
		return err
	}
	if err := c.preflight(cfg, name); err != nil {
		return err
	}

	proc := process.NewManager(c.logger)
	ctx = proc.Start(ctx)
	defer proc.Stop()

	session := &watchSession{cfg: cfg, registry: registry}
	if c.configPath != "" {
		reloader := config.NewReloadManager(c.configPath, c.logger)
		if cfg.Watch != nil && cfg.Watch.SettlingDelay > 0 {
			reloader.SetDebouncePeriod(cfg.Watch.SettlingDelay)
		}
		reloader.AddCallback(func(newCfg *types.ForgeConfig, err error) {
			if err != nil {
				c.logger.Warn("Keeping the previous configuration", logger.WithField("error", err))
				return
			}
			newRegistry, err := c.buildRegistry(newCfg)
			if err != nil {
				c.logger.Warn("Keeping the previous configuration", logger.WithField("error", err))
				return
			}
			session.replace(newCfg, newRegistry)
		})
		if err := reloader.StartWatching(ctx); err != nil {
			c.logger.Warn("Configuration changes will not be picked up", logger.WithField("error", err))
		} else {
			defer reloader.StopWatching()
		}
	}

	opts := watch.Options{}
	if cfg.Watch != nil {
		opts.SettlingDelay = cfg.Watch.SettlingDelay
		opts.Exclude = cfg.Watch.Exclude
	}
	watchRoot := filepath.Join(c.root, cfg.Paths.Source)
	w, err := watch.New(watchRoot, opts, c.logger.WithTask("watch"))
	if err != nil {
		return err
	}
	defer w.Close()

	run := func(ctx context.Context) {
		cfg, registry := session.current()
		if err := c.execute(ctx, cfg, registry, name); err != nil {
			c.logger.Error(err.Error())
		}
	}

	if initial {
		run(ctx)
	}
	if ctx.Err() != nil {
		return nil
	}

	c.logger.WithTask("watch").Info(fmt.Sprintf("Watching %s for changes", watchRoot),
		logger.WithField("directories", len(w.List())))
	err = w.Run(ctx, func(ctx context.Context, changed []string) {
		c.logger.WithTask("watch").Info(fmt.Sprintf("%d files changed, running '%s'", len(changed), name))
		run(ctx)
	})
	c.logger.WithTask("watch").Info("Stopped watching")
	return err
}
