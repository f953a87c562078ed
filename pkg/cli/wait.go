package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/colonise/forge/internal/state"
	"github.com/colonise/forge/pkg/types"
)

func (c *CLI) newWaitCmd() *cobra.Command {
	var timeout time.Duration
	var pollInterval time.Duration

	cmd := &cobra.Command{
		Use:   "wait <pipeline>",
		Short: "Wait for a running pipeline to finish",
		Long: `Wait until no process runs the pipeline, then exit with the status of its
latest run. Useful when another terminal or a watch session owns the run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runWait(cmd.Context(), args[0], timeout, pollInterval)
		},
	}
	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 5*time.Minute, "how long to wait")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 500*time.Millisecond, "how often to check the run lock")
	return cmd
}

func (c *CLI) runWait(ctx context.Context, name string, timeout, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	sm := state.NewStateManager(c.root, c.logger)
	if err := waitUnlocked(ctx, sm, name, pollInterval); err != nil {
		return err
	}

	record, err := sm.ReadState(name)
	if err != nil {
		return fmt.Errorf("'%s' has not run yet", name)
	}
	switch record.Status {
	case types.RunStatusSucceeded:
		c.logger.Success(fmt.Sprintf("'%s' succeeded", name))
		return nil
	case types.RunStatusFailed:
		return fmt.Errorf("'%s' failed: %s", name, record.LastError)
	default:
		return fmt.Errorf("'%s' was interrupted", name)
	}
}

func waitUnlocked(ctx context.Context, sm *state.StateManager, name string, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		locked, err := sm.IsLocked(name)
		if err != nil {
			return fmt.Errorf("failed to check pipeline lock: %w", err)
		}
		if !locked {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out waiting for '%s': %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}
