// Package engine provides the task graph core of forge.
//
// A graph is a tree of Nodes built from three variants: leaf tasks wrapping a
// function, series composites that run children in order and stop at the
// first failure, and parallel composites that start every child at once and
// join on all of them. Graphs are built once at startup and never mutated;
// every Runner.Run call executes the same definition with fresh per-run state.
//
// The implementation is split across:
//   - node.go: the variant types and constructors
//   - execute.go: how each variant runs
//   - runner.go: run entry point, logging and observers
//   - errors.go: failure types for composites and timeouts
//   - registry.go: named top-level pipelines
//   - safegroup.go: panic-safe goroutine join for parallel branches
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Kind classifies a node in the task graph.
type Kind string

const (
	KindTask     Kind = "task"
	KindSeries   Kind = "series"
	KindParallel Kind = "parallel"
)

// Func is the unit of work behind a leaf task. It returns nil on success and
// the failure reason otherwise.
type Func func(ctx context.Context) error

// Node is a task graph element. The set of implementations is closed: use
// Task, Series and Parallel to build one.
type Node interface {
	Name() string
	Kind() Kind
	Children() []Node
	execute(ctx context.Context, exec *execution) error
}

// Option customises a leaf task.
type Option func(*taskNode)

// Timeout bounds how long the runner waits for a leaf to settle. When the
// bound is hit the task's context is cancelled and the task fails with a
// *TimeoutError. Zero or negative durations leave the task unbounded.
func Timeout(d time.Duration) Option {
	return func(t *taskNode) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// Description sets a one-line summary shown by graph listings.
func Description(text string) Option {
	return func(t *taskNode) {
		t.description = strings.TrimSpace(text)
	}
}

type taskNode struct {
	name        string
	fn          Func
	timeout     time.Duration
	description string
}

func (t *taskNode) Name() string     { return t.name }
func (t *taskNode) Kind() Kind       { return KindTask }
func (t *taskNode) Children() []Node { return nil }

type compositeNode struct {
	name     string
	kind     Kind
	children []Node
}

func (c *compositeNode) Name() string { return c.name }
func (c *compositeNode) Kind() Kind   { return c.kind }

func (c *compositeNode) Children() []Node {
	return append([]Node(nil), c.children...)
}

// Task wraps fn as a named leaf. It panics when name is blank or fn is nil,
// since graphs are wired statically at startup.
func Task(name string, fn Func, opts ...Option) Node {
	name = mustName(name)
	if fn == nil {
		panic(fmt.Errorf("%w: task %q has no function", ErrInvalidNode, name))
	}

	t := &taskNode{name: name, fn: fn}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Series composes children into a node that runs them strictly in argument
// order, awaiting each before starting the next. The first failure skips the
// remaining children and fails the series with a *SeriesError.
func Series(name string, children ...Node) Node {
	return newComposite(name, KindSeries, children)
}

// Parallel composes children into a node that starts all of them before
// awaiting any, never cancels siblings, and settles only once every child has
// settled. Any failure fails the parallel with a *ParallelError listing all of
// them.
func Parallel(name string, children ...Node) Node {
	return newComposite(name, KindParallel, children)
}

func newComposite(name string, kind Kind, children []Node) Node {
	name = mustName(name)
	for i, child := range children {
		if child == nil {
			panic(fmt.Errorf("%w: %s %q has a nil child at position %d", ErrInvalidNode, kind, name, i+1))
		}
	}
	return &compositeNode{
		name:     name,
		kind:     kind,
		children: append([]Node(nil), children...),
	}
}

func mustName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		panic(fmt.Errorf("%w: name must not be empty", ErrInvalidNode))
	}
	return name
}

// GraphDescription is a serialisable view of a task graph.
type GraphDescription struct {
	Name        string             `yaml:"name" json:"name"`
	Kind        Kind               `yaml:"kind" json:"kind"`
	Description string             `yaml:"description,omitempty" json:"description,omitempty"`
	Timeout     string             `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Children    []GraphDescription `yaml:"children,omitempty" json:"children,omitempty"`
}

// Describe walks node and returns its serialisable description.
func Describe(node Node) GraphDescription {
	d := GraphDescription{Name: node.Name(), Kind: node.Kind()}
	if t, ok := node.(*taskNode); ok {
		d.Description = t.description
		if t.timeout > 0 {
			d.Timeout = t.timeout.String()
		}
	}
	for _, child := range node.Children() {
		d.Children = append(d.Children, Describe(child))
	}
	return d
}

// Leaves returns the leaf task names of node in execution declaration order.
func Leaves(node Node) []string {
	if node.Kind() == KindTask {
		return []string{node.Name()}
	}
	var names []string
	for _, child := range node.Children() {
		names = append(names, Leaves(child)...)
	}
	return names
}
