package engine

import (
	"fmt"
	"runtime/debug"

	"github.com/colonise/forge/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// SafeGroup wraps errgroup.Group with panic recovery. It is deliberately
// built without errgroup.WithContext: one failing branch must not cancel its
// siblings, so Wait is a plain join.
type SafeGroup struct {
	group  errgroup.Group
	logger logger.Logger
}

// NewSafeGroup creates a new SafeGroup with panic recovery
func NewSafeGroup(log logger.Logger) *SafeGroup {
	if log == nil {
		log = logger.NewNop()
	}
	return &SafeGroup{logger: log}
}

// Go runs fn in a new goroutine. A panic is converted to an error and logged
// with its stack trace.
func (sg *SafeGroup) Go(fn func() error) {
	sg.group.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				sg.logger.Error("Goroutine panic recovered",
					logger.WithField("panic", r),
					logger.WithField("stack_trace", string(debug.Stack())))
				err = fmt.Errorf("%w: %v", ErrTaskPanicked, r)
			}
		}()
		return fn()
	})
}

// Wait blocks until every goroutine has returned and reports the first error.
func (sg *SafeGroup) Wait() error {
	return sg.group.Wait()
}
