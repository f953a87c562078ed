package toolchain

import (
	"fmt"
	"path/filepath"

	"github.com/colonise/forge/pkg/logger"
	"github.com/colonise/forge/pkg/types"
)

// Toolchain bundles the collaborators configured for a project.
type Toolchain struct {
	Compiler     *Compiler
	Linter       *Linter
	TestRunner   *TestRunner
	Instrumenter *Instrumenter
	Reporter     *Reporter
}

// New wires every collaborator in cfg to runner. Commands run from root
// unless they name their own directory.
func New(root string, cfg types.ToolchainConfig, paths types.PathsConfig, runner Runner, log logger.Logger) (*Toolchain, error) {
	log = orNop(log)

	var matcher *ProblemMatcher
	if cfg.ProblemPattern != "" {
		m, err := NewProblemMatcher(cfg.ProblemPattern)
		if err != nil {
			return nil, fmt.Errorf("linter: %w", err)
		}
		matcher = m
	}

	vars := Vars{
		PlaceholderBuildDir:  {paths.Build},
		PlaceholderSourceDir: {paths.Source},
	}

	instrumenter := cfg.Instrumenter
	instrumenter.Dir = resolveDir(root, instrumenter.Dir)

	return &Toolchain{
		Compiler:     NewCompiler(runner, withDir(root, cfg.Compiler), vars, log.WithTask("compile")),
		Linter:       NewLinter(runner, withDir(root, cfg.Linter), vars, matcher, log.WithTask("lint")),
		TestRunner:   NewTestRunner(runner, withDir(root, cfg.TestRunner), vars),
		Instrumenter: NewInstrumenter(runner, instrumenter, vars),
		Reporter:     NewReporter(runner, withDir(root, cfg.Reporter), vars),
	}, nil
}

func withDir(root string, cfg types.CommandConfig) types.CommandConfig {
	cfg.Dir = resolveDir(root, cfg.Dir)
	return cfg
}

func resolveDir(root, dir string) string {
	if dir == "" {
		return root
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
