package coverage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/fileset"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/tap"
	"github.com/colonise/forge/pkg/toolchain"
	"github.com/colonise/forge/pkg/types"
)

// TestRunner runs a set of tests.
type TestRunner interface {
	RunTests(ctx context.Context, req toolchain.TestRequest) error
}

// Instrumenter instruments build artifacts for coverage collection.
type Instrumenter interface {
	Instrument(ctx context.Context, files []string, outDir string) (toolchain.Instrumentation, error)
}

// Reporter writes a coverage report.
type Reporter interface {
	Report(ctx context.Context, inst toolchain.Instrumentation, dir string) error
}

// Config describes one test task.
type Config struct {
	Mode types.ExecutionMode
	Root string
	// Tests selects the test files handed to the runner. An empty set hands
	// over no files and lets the runner discover tests itself.
	Tests *fileset.Set
	// Coverable selects the build artifacts to instrument.
	Coverable     *fileset.Set
	InstrumentDir string
	ReportDir     string
	TestFormat    types.TestFormat
	DisableColors bool
}

// Interceptor wraps the test runner according to the execution mode.
type Interceptor struct {
	cfg          Config
	runner       TestRunner
	instrumenter Instrumenter
	reporter     Reporter
	output       io.Writer
	logger       logger.Logger
}

// Option customises an Interceptor.
type Option func(*Interceptor)

// WithInstrumentation supplies the collaborators coverage mode needs.
func WithInstrumentation(instrumenter Instrumenter, reporter Reporter) Option {
	return func(i *Interceptor) {
		i.instrumenter = instrumenter
		i.reporter = reporter
	}
}

// WithOutput sets where Result-mode output goes. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(i *Interceptor) { i.output = w }
}

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(i *Interceptor) { i.logger = log }
}

// New creates an interceptor. Coverage mode requires WithInstrumentation.
func New(cfg Config, runner TestRunner, opts ...Option) (*Interceptor, error) {
	if runner == nil {
		return nil, errors.New("coverage: test runner is required")
	}
	if _, err := types.ParseExecutionMode(string(cfg.Mode)); err != nil {
		return nil, fmt.Errorf("coverage: %w", err)
	}

	i := &Interceptor{cfg: cfg, runner: runner, output: os.Stdout, logger: logger.NewNop()}
	for _, opt := range opts {
		opt(i)
	}

	if cfg.Mode == types.ExecutionModeCoverage {
		if i.instrumenter == nil || i.reporter == nil {
			return nil, errors.New("coverage: instrumenter and reporter are required in coverage mode")
		}
		if cfg.ReportDir == "" {
			return nil, errors.New("coverage: report directory is required in coverage mode")
		}
	}
	return i, nil
}

// Mode returns the execution mode bound at construction.
func (i *Interceptor) Mode() types.ExecutionMode {
	return i.cfg.Mode
}

// Task returns the test task as a graph leaf.
func (i *Interceptor) Task(name string, opts ...engine.Option) engine.Node {
	opts = append([]engine.Option{engine.Description(fmt.Sprintf("run tests (%s output)", i.cfg.Mode))}, opts...)
	return engine.Task(name, i.Run, opts...)
}

// Run executes the tests in the bound mode.
func (i *Interceptor) Run(ctx context.Context) error {
	tests, err := i.selectFiles(ctx, i.cfg.Tests)
	if err != nil {
		return err
	}

	switch i.cfg.Mode {
	case types.ExecutionModeResult:
		return i.runResult(ctx, tests)
	case types.ExecutionModeCoverage:
		return i.runCoverage(ctx, tests)
	default:
		return i.runner.RunTests(ctx, toolchain.TestRequest{Files: tests, Output: io.Discard})
	}
}

func (i *Interceptor) runResult(ctx context.Context, tests []string) error {
	if i.cfg.TestFormat != types.TestFormatTAP {
		return i.runner.RunTests(ctx, toolchain.TestRequest{Files: tests, Output: i.output})
	}

	formatter := tap.NewFormatter(i.output, i.cfg.DisableColors)
	runErr := i.runner.RunTests(ctx, toolchain.TestRequest{Files: tests, Output: formatter})
	if err := formatter.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func (i *Interceptor) runCoverage(ctx context.Context, tests []string) error {
	coverable, err := i.selectFiles(ctx, i.cfg.Coverable)
	if err != nil {
		return err
	}

	outDir := i.cfg.InstrumentDir
	if outDir == "" {
		outDir = i.cfg.ReportDir
	}

	inst, err := i.instrumenter.Instrument(ctx, coverable, outDir)
	if err != nil {
		return fmt.Errorf("instrumentation failed: %w", err)
	}
	i.logger.Debug("Instrumented build artifacts", logger.WithField("files", len(coverable)))

	session := NewSession(inst)
	if _, err := session.Install(); err != nil {
		return err
	}

	testErr := i.RunTests(ctx, session, tests)

	// The report is written whether or not the tests passed.
	reportErr := i.reporter.Report(ctx, session.Instrumentation(), i.cfg.ReportDir)
	session.markReported()

	if testErr != nil {
		if reportErr != nil {
			i.logger.Error("Coverage report failed", logger.WithField("error", reportErr))
		}
		return testErr
	}
	if reportErr != nil {
		return fmt.Errorf("coverage report failed: %w", reportErr)
	}
	i.logger.Info(fmt.Sprintf("Coverage report written to %s", i.cfg.ReportDir))
	return nil
}

// RunTests runs tests against an instrumentation session. The session's hook
// must already be installed.
func (i *Interceptor) RunTests(ctx context.Context, session *Session, tests []string) error {
	hook, err := session.Hook()
	if err != nil {
		return err
	}
	return i.runner.RunTests(ctx, toolchain.TestRequest{Files: tests, Hook: hook, Output: io.Discard})
}

func (i *Interceptor) selectFiles(ctx context.Context, set *fileset.Set) ([]string, error) {
	if set == nil || set.Empty() {
		return nil, nil
	}
	files, err := fileset.Select(ctx, i.cfg.Root, set)
	if err != nil {
		return nil, err
	}
	return fileset.Paths(files), nil
}
