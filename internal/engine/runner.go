package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	pcontext "github.com/colonise/forge/pkg/context"
	"github.com/colonise/forge/pkg/logger"
)

// EventType identifies a point in a node's lifecycle.
type EventType string

const (
	EventStarted  EventType = "started"
	EventFinished EventType = "finished"
	EventSkipped  EventType = "skipped"
)

// Event is delivered to observers for every node the runner touches.
type Event struct {
	Type     EventType
	Task     string
	Kind     Kind
	Path     []string
	RunID    string
	Time     time.Time
	Duration time.Duration
	Err      error
}

// Observer receives execution events. Calls are serialised by the runner, so
// implementations need no locking of their own.
type Observer interface {
	OnEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnEvent implements Observer.
func (f ObserverFunc) OnEvent(e Event) { f(e) }

// Runner executes task graphs.
type Runner struct {
	logger    logger.Logger
	observers []Observer
}

// NewRunner creates a runner that logs node lifecycle through log and reports
// events to observers.
func NewRunner(log logger.Logger, observers ...Observer) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{logger: log, observers: observers}
}

// Run executes node to completion or first fatal failure. A run ID is attached
// to ctx unless the caller already set one.
func (r *Runner) Run(ctx context.Context, node Node) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if !pcontext.HasRunID(ctx) {
		ctx = pcontext.EnrichContext(ctx)
	}

	exec := &execution{logger: r.logger, observers: r.observers}
	return node.execute(ctx, exec)
}

type execution struct {
	logger    logger.Logger
	observers []Observer
	mu        sync.Mutex
}

func (e *execution) started(ctx context.Context, node Node) {
	logger.WithContext(ctx, e.logger).WithTask(node.Name()).Info("Starting...")
	e.notify(ctx, Event{Type: EventStarted, Task: node.Name(), Kind: node.Kind()})
}

func (e *execution) finished(ctx context.Context, node Node, d time.Duration, err error) {
	log := logger.WithContext(ctx, e.logger).WithTask(node.Name())
	switch {
	case err == nil:
		log.Info(fmt.Sprintf("Finished after %s", FormatDuration(d)))
	case node.Kind() == KindTask:
		log.Error(fmt.Sprintf("Errored after %s", FormatDuration(d)), logger.WithField("error", err))
	default:
		log.Error(fmt.Sprintf("Errored after %s", FormatDuration(d)))
	}
	e.notify(ctx, Event{Type: EventFinished, Task: node.Name(), Kind: node.Kind(), Duration: d, Err: err})
}

func (e *execution) skipped(ctx context.Context, nodes []Node) {
	for _, node := range nodes {
		logger.WithContext(ctx, e.logger).WithTask(node.Name()).Debug("Skipped after earlier failure")
		e.notify(ctx, Event{Type: EventSkipped, Task: node.Name(), Kind: node.Kind()})
	}
}

func (e *execution) notify(ctx context.Context, event Event) {
	if len(e.observers) == 0 {
		return
	}
	event.Path = pcontext.GetTaskPath(ctx)
	event.RunID = pcontext.GetRunID(ctx)
	event.Time = time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, o := range e.observers {
		o.OnEvent(event)
	}
}

// FormatDuration renders a duration the way build logs usually show it.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%d μs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.2f s", d.Seconds())
	default:
		return fmt.Sprintf("%d min %d s", int(d.Minutes()), int(d.Seconds())%60)
	}
}
