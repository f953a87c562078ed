package config

import (
	"fmt"
	"time"

	"github.com/colonise/forge/pkg/release"
	"github.com/colonise/forge/pkg/types"
)

const (
	// CurrentVersion is the config schema version this build reads.
	CurrentVersion = "1.0"

	defaultCompileTimeout    = 5 * time.Minute
	defaultLintTimeout       = 5 * time.Minute
	defaultTestTimeout       = 10 * time.Minute
	defaultFilesystemTimeout = time.Minute
	defaultReleaseTimeout    = 10 * time.Minute
	defaultSettlingDelay     = 500 * time.Millisecond
)

// Presets lists the project types with built-in collaborator commands.
var Presets = []types.ProjectType{types.ProjectTypeNode, types.ProjectTypeGo}

// tslint "prose" output: "ERROR: source/a.ts[12, 3]: Missing semicolon".
const tslintProblemPattern = `^(?P<severity>ERROR|WARNING): (?P<file>[^\[]+)\[(?P<line>\d+), (?P<column>\d+)\]: (?P<message>.+)$`

// golangci-lint line-number output: "pkg/a.go:12:3: message (linter)".
const golangciProblemPattern = `^(?P<file>[^:\s]+\.go):(?P<line>\d+):(?P<column>\d+): (?P<message>.+)$`

// Preset returns the default configuration for a project type.
func Preset(projectType types.ProjectType) (*types.ForgeConfig, error) {
	var cfg *types.ForgeConfig
	switch projectType {
	case types.ProjectTypeNode, "":
		cfg = nodePreset()
	case types.ProjectTypeGo:
		cfg = goPreset()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProjectType, projectType)
	}

	cfg.Version = CurrentVersion
	cfg.LogLevel = types.LogLevelInfo
	cfg.Timeouts = types.TimeoutConfig{
		Compile:    defaultCompileTimeout,
		Lint:       defaultLintTimeout,
		Test:       defaultTestTimeout,
		Filesystem: defaultFilesystemTimeout,
		Release:    defaultReleaseTimeout,
	}
	cfg.Release = &types.ReleaseConfig{}
	release.ApplyDefaults(cfg.Release)
	disabled := false
	cfg.Notifications = &types.NotificationConfig{Enabled: &disabled}
	cfg.Watch = &types.WatchConfig{
		SettlingDelay: defaultSettlingDelay,
		Exclude:       defaultWatchExclusions(),
	}
	return cfg, nil
}

// MustPreset is Preset for the built-in project types.
func MustPreset(projectType types.ProjectType) *types.ForgeConfig {
	cfg, err := Preset(projectType)
	if err != nil {
		panic(err)
	}
	return cfg
}

// nodePreset mirrors the TypeScript toolchain: tsc, tslint, alsatian
// emitting TAP, and nyc for coverage.
func nodePreset() *types.ForgeConfig {
	return &types.ForgeConfig{
		ProjectType: types.ProjectTypeNode,
		Paths: types.PathsConfig{
			Source:          "source",
			Build:           "build",
			Coverage:        "coverage",
			Distribute:      "distribute",
			Instrumented:    ".nyc_output",
			Declarations:    []string{"./source/**/*.d.ts"},
			Coverable:       []string{"./build/**/*.js", "!./build/**/*.spec.*"},
			TestFiles:       []string{"./build/**/*.spec.js"},
			DebugTestFiles:  []string{"./source/**/*.spec.ts"},
			DistributeFiles: []string{"./build/**/*.*", "!./build/**/*.spec.*"},
			LintFiles:       []string{"./source/**/*.ts"},
		},
		Toolchain: types.ToolchainConfig{
			Compiler: types.CommandConfig{
				Command: "npx",
				Args:    []string{"tsc", "--project", "./source/tsconfig.json", "--outDir", "{buildDir}"},
			},
			Linter: types.CommandConfig{
				Command: "npx",
				Args:    []string{"tslint", "--project", "./source/tsconfig.json", "--fix", "--format", "prose", "{files}"},
			},
			TestRunner: types.CommandConfig{
				Command: "npx",
				Args:    []string{"{hook}", "alsatian", "--tap", "{files}"},
			},
			Instrumenter: types.InstrumenterConfig{
				HookArgs: []string{"nyc", "--silent", "--all", "--include={files}", "--temp-dir", "{outDir}"},
			},
			Reporter: types.CommandConfig{
				Command: "npx",
				Args:    []string{"nyc", "report", "--temp-dir", "{outDir}", "--report-dir", "{reportDir}", "--reporter", "html", "--reporter", "text-summary"},
			},
			TestFormat:     types.TestFormatTAP,
			ProblemPattern: tslintProblemPattern,
		},
	}
}

// goPreset drives the Go toolchain: go build, golangci-lint, gotestsum and
// go tool cover.
func goPreset() *types.ForgeConfig {
	return &types.ForgeConfig{
		ProjectType: types.ProjectTypeGo,
		Paths: types.PathsConfig{
			Source:          ".",
			Build:           "bin",
			Coverage:        "coverage",
			Distribute:      "dist",
			Instrumented:    ".cover",
			DistributeFiles: []string{"./bin/**/*"},
		},
		Toolchain: types.ToolchainConfig{
			Compiler: types.CommandConfig{
				Command: "go",
				Args:    []string{"build", "-o", "{buildDir}/", "./..."},
			},
			Linter: types.CommandConfig{
				Command: "golangci-lint",
				Args:    []string{"run", "--fix", "--out-format", "line-number", "./..."},
			},
			TestRunner: types.CommandConfig{
				Command: "gotestsum",
				Args:    []string{"--format", "testname", "--", "{hook}", "./..."},
			},
			Instrumenter: types.InstrumenterConfig{
				HookArgs: []string{"-covermode=atomic", "-coverprofile={outDir}/coverage.out"},
			},
			Reporter: types.CommandConfig{
				Command: "go",
				Args:    []string{"tool", "cover", "-html={outDir}/coverage.out", "-o", "{reportDir}/index.html"},
			},
			TestFormat:     types.TestFormatRaw,
			ProblemPattern: golangciProblemPattern,
		},
	}
}

func defaultWatchExclusions() []string {
	return []string{
		".git",
		"node_modules",
		"build",
		"bin",
		"dist",
		"distribute",
		"coverage",
		".nyc_output",
		".cover",
		".forge",
		"*.log",
		"tmp",
		"vendor",
	}
}
