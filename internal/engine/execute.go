package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	pcontext "github.com/colonise/forge/pkg/context"
)

func (t *taskNode) execute(ctx context.Context, exec *execution) error {
	ctx = pcontext.WithTask(ctx, t.name)
	exec.started(ctx, t)

	start := time.Now()
	err := t.invoke(ctx)
	exec.finished(ctx, t, time.Since(start), err)
	return err
}

// invoke runs the task function, bounded by the task timeout when one is set.
// The runner stops waiting once the bound is hit; the function sees its
// context cancelled and is expected to return promptly.
func (t *taskNode) invoke(ctx context.Context) error {
	if t.timeout <= 0 {
		return callSafely(ctx, t.name, t.fn)
	}

	boundedCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- callSafely(boundedCtx, t.name, t.fn)
	}()

	select {
	case err := <-done:
		if err != nil && ctx.Err() == nil && errors.Is(boundedCtx.Err(), context.DeadlineExceeded) {
			return &TimeoutError{Task: t.name, Timeout: t.timeout}
		}
		return err
	case <-boundedCtx.Done():
		if err := ctx.Err(); err != nil {
			return err
		}
		return &TimeoutError{Task: t.name, Timeout: t.timeout}
	}
}

func callSafely(ctx context.Context, name string, fn Func) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: '%s': %v", ErrTaskPanicked, name, r)
		}
	}()
	return fn(ctx)
}

func (c *compositeNode) execute(ctx context.Context, exec *execution) error {
	ctx = pcontext.WithTask(ctx, c.name)
	exec.started(ctx, c)

	start := time.Now()
	var err error
	switch c.kind {
	case KindSeries:
		err = c.runSeries(ctx, exec)
	case KindParallel:
		err = c.runParallel(ctx, exec)
	default:
		err = fmt.Errorf("%w: unsupported kind %q", ErrInvalidNode, c.kind)
	}
	exec.finished(ctx, c, time.Since(start), err)
	return err
}

func (c *compositeNode) runSeries(ctx context.Context, exec *execution) error {
	for i, child := range c.children {
		// A cancelled run (signal) stops before the next child starts.
		if err := ctx.Err(); err != nil {
			exec.skipped(ctx, c.children[i:])
			return &SeriesError{Series: c.name, Position: i + 1, Child: child.Name(), Err: err}
		}

		if err := child.execute(ctx, exec); err != nil {
			exec.skipped(ctx, c.children[i+1:])
			return &SeriesError{Series: c.name, Position: i + 1, Child: child.Name(), Err: err}
		}
	}
	return nil
}

func (c *compositeNode) runParallel(ctx context.Context, exec *execution) error {
	results := make([]error, len(c.children))
	group := NewSafeGroup(exec.logger)

	for i, child := range c.children {
		group.Go(func() error {
			results[i] = child.execute(ctx, exec)
			return results[i]
		})
	}
	waitErr := group.Wait()

	var failures []BranchFailure
	for i, err := range results {
		if err != nil {
			failures = append(failures, BranchFailure{Position: i + 1, Child: c.children[i].Name(), Err: err})
		}
	}
	// A panic outside a task function leaves its slot empty but still
	// surfaces through the group.
	if len(failures) == 0 && waitErr != nil {
		failures = append(failures, BranchFailure{Child: c.name, Err: waitErr})
	}

	if len(failures) > 0 {
		return &ParallelError{Parallel: c.name, Branches: len(c.children), Failures: failures}
	}
	return nil
}
