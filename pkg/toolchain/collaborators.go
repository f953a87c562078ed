package toolchain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/types"
)

// Hook is what the test run needs to record coverage: extra arguments and
// environment handed to the test runner.
type Hook struct {
	Args []string
	Env  map[string]string
}

// Instrumentation describes instrumented build artifacts.
type Instrumentation struct {
	Files  []string
	OutDir string
	Hook   Hook
}

// TestRequest is one invocation of the test runner.
type TestRequest struct {
	Files []string
	// Hook is set only for coverage runs.
	Hook *Hook
	// Output receives test runner stdout as it streams.
	Output io.Writer
}

// Compiler runs the configured compiler.
type Compiler struct {
	runner Runner
	cfg    types.CommandConfig
	vars   Vars
	logger logger.Logger
}

// NewCompiler creates a compiler collaborator.
func NewCompiler(runner Runner, cfg types.CommandConfig, vars Vars, log logger.Logger) *Compiler {
	return &Compiler{runner: runner, cfg: cfg, vars: vars, logger: orNop(log)}
}

// Compile runs the compiler once.
func (c *Compiler) Compile(ctx context.Context) error {
	cmd, err := Expand(c.cfg, c.vars)
	if err != nil {
		return fmt.Errorf("compiler: %w", err)
	}
	cmd.LogName = "compile"

	result, err := c.runner.Run(ctx, cmd)
	if err != nil {
		return err
	}
	if out := result.Stdout; out != "" {
		c.logger.Debug("Compiler output", logger.WithField("output", out))
	}
	return nil
}

// Linter runs static analysis with auto-fix and reports findings.
type Linter struct {
	runner  Runner
	cfg     types.CommandConfig
	vars    Vars
	matcher *ProblemMatcher
	logger  logger.Logger
}

// NewLinter creates a linter collaborator. A nil matcher logs raw output
// instead of individual findings.
func NewLinter(runner Runner, cfg types.CommandConfig, vars Vars, matcher *ProblemMatcher, log logger.Logger) *Linter {
	return &Linter{runner: runner, cfg: cfg, vars: vars, matcher: matcher, logger: orNop(log)}
}

// Lint runs the linter over files. Findings never fail the call, including a
// non-zero exit caused by them; only a linter that cannot run is an error.
func (l *Linter) Lint(ctx context.Context, files []string) ([]Problem, error) {
	cmd, err := Expand(l.cfg, l.vars.With(PlaceholderFiles, files...))
	if err != nil {
		return nil, fmt.Errorf("linter: %w", err)
	}
	cmd.LogName = "lint"

	result, err := l.runner.Run(ctx, cmd)
	var failed *CommandFailedError
	if err != nil && !errors.As(err, &failed) {
		return nil, err
	}

	output := result.Stdout + result.Stderr
	if l.matcher == nil {
		if err != nil {
			l.logger.Warn("Linter reported problems", logger.WithField("output", output))
		}
		return nil, nil
	}

	problems := l.matcher.MatchAll(output)
	for _, p := range problems {
		l.logger.Warn(p.String(), logger.WithField("severity", string(p.Severity)))
	}
	if err != nil && len(problems) == 0 {
		l.logger.Warn("Linter exited non-zero without recognisable findings",
			logger.WithField("exit_code", result.ExitCode))
	}
	return problems, nil
}

// TestRunner runs the configured test command.
type TestRunner struct {
	runner Runner
	cfg    types.CommandConfig
	vars   Vars
}

// NewTestRunner creates a test runner collaborator.
func NewTestRunner(runner Runner, cfg types.CommandConfig, vars Vars) *TestRunner {
	return &TestRunner{runner: runner, cfg: cfg, vars: vars}
}

// RunTests runs the tests in req. A failing test run is a
// *CommandFailedError.
func (t *TestRunner) RunTests(ctx context.Context, req TestRequest) error {
	vars := t.vars.With(PlaceholderFiles, req.Files...)
	var hookEnv map[string]string
	if req.Hook != nil {
		vars = vars.With(PlaceholderHook, req.Hook.Args...)
		hookEnv = req.Hook.Env
	} else {
		vars = vars.With(PlaceholderHook)
	}

	cmd, err := Expand(t.cfg, vars)
	if err != nil {
		return fmt.Errorf("test runner: %w", err)
	}
	cmd.Env = mergeEnv(cmd.Env, hookEnv)
	cmd.Stdout = req.Output
	cmd.LogName = "test"

	_, err = t.runner.Run(ctx, cmd)
	return err
}

// Instrumenter rewrites build artifacts so a test run records coverage.
type Instrumenter struct {
	runner Runner
	cfg    types.InstrumenterConfig
	vars   Vars
}

// NewInstrumenter creates an instrumenter collaborator. An instrumenter with
// no command only contributes its hook, for runners that instrument on their
// own.
func NewInstrumenter(runner Runner, cfg types.InstrumenterConfig, vars Vars) *Instrumenter {
	return &Instrumenter{runner: runner, cfg: cfg, vars: vars}
}

// Instrument instruments files into outDir and returns the hook the test run
// must receive.
func (i *Instrumenter) Instrument(ctx context.Context, files []string, outDir string) (Instrumentation, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return Instrumentation{}, fmt.Errorf("instrumenter: %w", err)
	}
	vars := i.vars.With(PlaceholderFiles, files...).With(PlaceholderOutDir, outDir)

	if !i.cfg.IsZero() {
		cmd, err := Expand(i.cfg.CommandConfig, vars)
		if err != nil {
			return Instrumentation{}, fmt.Errorf("instrumenter: %w", err)
		}
		cmd.LogName = "instrument"
		if _, err := i.runner.Run(ctx, cmd); err != nil {
			return Instrumentation{}, err
		}
	}

	return Instrumentation{
		Files:  files,
		OutDir: outDir,
		Hook: Hook{
			Args: expandArgs(i.cfg.HookArgs, vars),
			Env:  expandEnv(i.cfg.HookEnv, vars),
		},
	}, nil
}

// Reporter renders collected coverage into a report directory.
type Reporter struct {
	runner Runner
	cfg    types.CommandConfig
	vars   Vars
}

// NewReporter creates a reporter collaborator.
func NewReporter(runner Runner, cfg types.CommandConfig, vars Vars) *Reporter {
	return &Reporter{runner: runner, cfg: cfg, vars: vars}
}

// Report writes the coverage report for inst into reportDir.
func (r *Reporter) Report(ctx context.Context, inst Instrumentation, reportDir string) error {
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return fmt.Errorf("reporter: %w", err)
	}

	cmd, err := Expand(r.cfg, r.vars.
		With(PlaceholderOutDir, inst.OutDir).
		With(PlaceholderReportDir, reportDir).
		With(PlaceholderFiles, inst.Files...))
	if err != nil {
		return fmt.Errorf("reporter: %w", err)
	}
	cmd.LogName = "coverage"

	_, err = r.runner.Run(ctx, cmd)
	return err
}

func orNop(log logger.Logger) logger.Logger {
	if log == nil {
		return logger.NewNop()
	}
	return log
}
