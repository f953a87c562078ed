package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrInvalidNode indicates a graph was wired with a blank name or nil member.
	ErrInvalidNode = errors.New("invalid task graph node")

	// ErrUnknownTask indicates a lookup for a task name that is not registered.
	ErrUnknownTask = errors.New("unknown task")

	// ErrDuplicateTask indicates two top-level tasks share a name.
	ErrDuplicateTask = errors.New("duplicate task")

	// ErrTaskPanicked wraps panics recovered from a task function.
	ErrTaskPanicked = errors.New("task panicked")
)

// SeriesError reports the first failing child of a series. Unwrap yields the
// child's own failure so errors.Is/As see through it.
type SeriesError struct {
	Series   string
	Position int // 1-based position of the failing child
	Child    string
	Err      error
}

func (e *SeriesError) Error() string {
	return fmt.Sprintf("series '%s' failed at step %d ('%s'): %v", e.Series, e.Position, e.Child, e.Err)
}

func (e *SeriesError) Unwrap() error { return e.Err }

// BranchFailure is one failing child of a parallel.
type BranchFailure struct {
	Position int // 1-based declaration position
	Child    string
	Err      error
}

// ParallelError reports every failing branch of a parallel, in declaration
// order, once all branches have settled.
type ParallelError struct {
	Parallel string
	Branches int
	Failures []BranchFailure
}

func (e *ParallelError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("'%s': %v", f.Child, f.Err))
	}
	return fmt.Sprintf("parallel '%s' failed: %d of %d branches failed: %s",
		e.Parallel, len(e.Failures), e.Branches, strings.Join(parts, "; "))
}

// Unwrap exposes every branch failure to errors.Is/As.
func (e *ParallelError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// TimeoutError reports a leaf that did not settle within its bound.
type TimeoutError struct {
	Task    string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task '%s' did not settle within %s", e.Task, e.Timeout)
}

// Failures flattens err into the leaf-level failure reasons it carries,
// expanding series and parallel errors recursively.
func Failures(err error) []error {
	if err == nil {
		return nil
	}

	switch e := err.(type) {
	case *SeriesError:
		return Failures(e.Err)
	case *ParallelError:
		var out []error
		for _, f := range e.Failures {
			out = append(out, Failures(f.Err)...)
		}
		return out
	default:
		return []error{err}
	}
}
