// Package pipeline wires the named build pipelines (clean, build, lint, test,
// coverage, distribute, debug, all) out of engine tasks and the configured
// collaborators.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/coverage"
	"github.com/colonise/forge/pkg/fileset"
	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/toolchain"
	"github.com/colonise/forge/pkg/types"
)

// Pipeline names.
const (
	Clean      = "clean"
	Build      = "build"
	Lint       = "lint"
	Test       = "test"
	Coverage   = "coverage"
	Distribute = "distribute"
	Debug      = "debug"
	All        = "all"
)

// Names lists every pipeline in registration order.
var Names = []string{Clean, Build, Lint, Test, Coverage, Distribute, Debug, All}

// Compiler turns sources into build artifacts.
type Compiler interface {
	Compile(ctx context.Context) error
}

// Linter analyses sources, fixing what it can.
type Linter interface {
	Lint(ctx context.Context, files []string) ([]toolchain.Problem, error)
}

// Collaborators are the external parts the pipelines drive.
type Collaborators struct {
	Compiler     Compiler
	Linter       Linter
	TestRunner   coverage.TestRunner
	Instrumenter coverage.Instrumenter
	Reporter     coverage.Reporter
	// Release builds the release graph appended to distribute. Nil leaves
	// release out.
	Release func() engine.Node
	// Output receives Result-mode test output. Defaults to os.Stdout.
	Output        io.Writer
	Logger        logger.Logger
	DisableColors bool
}

type builder struct {
	root   string
	cfg    *types.ForgeConfig
	deps   Collaborators
	logger logger.Logger

	declarations *fileset.Set
	lintFiles    *fileset.Set
	distribute   *fileset.Set
	tests        *fileset.Set
	debugTests   *fileset.Set
	coverable    *fileset.Set
}

// New builds a registry holding every pipeline, with "all" as the default.
// root is the project directory every configured path is relative to.
func New(root string, cfg *types.ForgeConfig, deps Collaborators) (*engine.Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pipeline: configuration is required")
	}
	if deps.Compiler == nil || deps.Linter == nil || deps.TestRunner == nil {
		return nil, fmt.Errorf("pipeline: compiler, linter and test runner are required")
	}

	b := &builder{root: root, cfg: cfg, deps: deps, logger: deps.Logger}
	if b.logger == nil {
		b.logger = logger.NewNop()
	}

	sets := []struct {
		target   **fileset.Set
		patterns []string
	}{
		{&b.declarations, cfg.Paths.Declarations},
		{&b.lintFiles, cfg.Paths.LintFiles},
		{&b.distribute, cfg.Paths.DistributeFiles},
		{&b.tests, cfg.Paths.TestFiles},
		{&b.debugTests, cfg.Paths.DebugTestFiles},
		{&b.coverable, cfg.Paths.Coverable},
	}
	for _, s := range sets {
		set, err := fileset.NewSet(s.patterns...)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		*s.target = set
	}

	// Interceptors are validated once here so a misconfigured mode fails at
	// startup rather than mid-run.
	for _, mode := range []types.ExecutionMode{types.ExecutionModeNone, types.ExecutionModeResult, types.ExecutionModeCoverage} {
		if _, err := b.interceptor(mode, b.tests); err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	}

	registry := engine.NewRegistry()
	for _, node := range []engine.Node{
		b.clean(),
		b.build(),
		b.lint(),
		engine.Series(Test, b.build(), b.test(types.ExecutionModeResult)),
		engine.Series(Coverage, b.build(), b.cleanCoverage(), b.test(types.ExecutionModeCoverage)),
		b.distributePipeline(),
		b.debug(),
		engine.Series(All,
			engine.Parallel("verify", b.lint(), b.clean()),
			b.compile(),
			b.test(types.ExecutionModeNone),
			b.copyToDistribution(),
		),
	} {
		if err := registry.Register(node); err != nil {
			return nil, err
		}
	}
	if err := registry.SetDefault(All); err != nil {
		return nil, err
	}
	return registry, nil
}

func (b *builder) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(b.root, p)
}

func (b *builder) clean() engine.Node {
	timeout := engine.Timeout(b.cfg.Timeouts.Filesystem)
	return engine.Parallel(Clean,
		engine.Task("clean-build", func(ctx context.Context) error {
			return fileset.Remove(b.path(b.cfg.Paths.Build))
		}, timeout, engine.Description("remove "+b.cfg.Paths.Build)),
		engine.Task("clean-distribute", func(ctx context.Context) error {
			return fileset.Remove(b.path(b.cfg.Paths.Distribute))
		}, timeout, engine.Description("remove "+b.cfg.Paths.Distribute)),
	)
}

func (b *builder) cleanCoverage() engine.Node {
	return engine.Task("clean-coverage", func(ctx context.Context) error {
		return fileset.Remove(b.path(b.cfg.Paths.Coverage), b.instrumentDir())
	}, engine.Timeout(b.cfg.Timeouts.Filesystem), engine.Description("remove "+b.cfg.Paths.Coverage))
}

func (b *builder) compile() engine.Node {
	return engine.Task("compile", func(ctx context.Context) error {
		if err := b.deps.Compiler.Compile(ctx); err != nil {
			return err
		}
		if b.declarations.Empty() {
			return nil
		}
		result, err := fileset.Copy(ctx, b.root, b.declarations, b.path(b.cfg.Paths.Build))
		if err != nil {
			return fmt.Errorf("failed to copy declarations: %w", err)
		}
		b.logger.WithTask("compile").Debug("Copied declaration files",
			logger.WithField("files", result.Files),
			logger.WithField("size", humanize.Bytes(uint64(result.Bytes))))
		return nil
	}, engine.Timeout(b.cfg.Timeouts.Compile), engine.Description("compile sources and copy declarations"))
}

func (b *builder) build() engine.Node {
	return engine.Series(Build, b.clean(), b.compile())
}

func (b *builder) lint() engine.Node {
	return engine.Task(Lint, func(ctx context.Context) error {
		var files []string
		if !b.lintFiles.Empty() {
			selected, err := fileset.Select(ctx, b.root, b.lintFiles)
			if err != nil {
				return err
			}
			files = fileset.Paths(selected)
		}

		problems, err := b.deps.Linter.Lint(ctx, files)
		if err != nil {
			return err
		}
		if len(problems) > 0 {
			b.logger.WithTask(Lint).Warn(fmt.Sprintf("%d lint findings", len(problems)))
		}
		return nil
	}, engine.Timeout(b.cfg.Timeouts.Lint), engine.Description("static analysis with auto-fix"))
}

func (b *builder) test(mode types.ExecutionMode) engine.Node {
	i, err := b.interceptor(mode, b.tests)
	if err != nil {
		// Validated in New.
		panic(err)
	}
	return i.Task("test-"+string(mode), engine.Timeout(b.cfg.Timeouts.Test))
}

func (b *builder) debug() engine.Node {
	i, err := b.interceptor(types.ExecutionModeResult, b.debugTests)
	if err != nil {
		panic(err)
	}
	return i.Task(Debug, engine.Timeout(b.cfg.Timeouts.Test))
}

func (b *builder) interceptor(mode types.ExecutionMode, tests *fileset.Set) (*coverage.Interceptor, error) {
	opts := []coverage.Option{coverage.WithLogger(b.logger.WithTask("test"))}
	if b.deps.Output != nil {
		opts = append(opts, coverage.WithOutput(b.deps.Output))
	}
	if mode == types.ExecutionModeCoverage {
		opts = append(opts, coverage.WithInstrumentation(b.deps.Instrumenter, b.deps.Reporter))
	}

	return coverage.New(coverage.Config{
		Mode:          mode,
		Root:          b.root,
		Tests:         tests,
		Coverable:     b.coverable,
		InstrumentDir: b.instrumentDir(),
		ReportDir:     b.path(b.cfg.Paths.Coverage),
		TestFormat:    b.cfg.Toolchain.TestFormat,
		DisableColors: b.deps.DisableColors,
	}, b.deps.TestRunner, opts...)
}

func (b *builder) instrumentDir() string {
	if b.cfg.Paths.Instrumented == "" {
		return b.path(b.cfg.Paths.Coverage)
	}
	return b.path(b.cfg.Paths.Instrumented)
}

func (b *builder) copyToDistribution() engine.Node {
	return engine.Task("copy-to-distribution", func(ctx context.Context) error {
		result, err := fileset.Copy(ctx, b.root, b.distribute, b.path(b.cfg.Paths.Distribute))
		if err != nil {
			return err
		}
		b.logger.WithTask("copy-to-distribution").Info(
			fmt.Sprintf("Copied %d files (%s)", result.Files, humanize.Bytes(uint64(result.Bytes))))
		return nil
	}, engine.Timeout(b.cfg.Timeouts.Filesystem), engine.Description("copy non-test build artifacts to "+b.cfg.Paths.Distribute))
}

func (b *builder) distributePipeline() engine.Node {
	children := []engine.Node{b.build(), b.copyToDistribution()}
	if b.cfg.Release.IsEnabled() && b.deps.Release != nil {
		children = append(children, b.deps.Release())
	}
	return engine.Series(Distribute, children...)
}
