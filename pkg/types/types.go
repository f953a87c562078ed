// Package types provides core types and configuration shapes for forge
package types

import (
	"fmt"
	"strings"
	"time"
)

// ExecutionMode selects how the test task treats its output.
type ExecutionMode string

const (
	// ExecutionModeNone discards test output; only pass/fail matters.
	ExecutionModeNone ExecutionMode = "none"
	// ExecutionModeResult streams formatted test results to stdout.
	ExecutionModeResult ExecutionMode = "result"
	// ExecutionModeCoverage instruments build artifacts and writes a coverage report.
	ExecutionModeCoverage ExecutionMode = "coverage"
)

// ParseExecutionMode converts a string into an ExecutionMode.
func ParseExecutionMode(value string) (ExecutionMode, error) {
	switch mode := ExecutionMode(strings.ToLower(strings.TrimSpace(value))); mode {
	case ExecutionModeNone, ExecutionModeResult, ExecutionModeCoverage:
		return mode, nil
	default:
		return "", fmt.Errorf("unknown execution mode: %q", value)
	}
}

// ProjectType selects the preset of collaborator commands.
type ProjectType string

const (
	ProjectTypeNode ProjectType = "node"
	ProjectTypeGo   ProjectType = "go"
)

// TestFormat describes what the test runner writes to stdout.
type TestFormat string

const (
	TestFormatTAP TestFormat = "tap"
	TestFormatRaw TestFormat = "raw"
)

// LogLevel represents logging verbosity levels
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// RunStatus represents the recorded outcome of a pipeline invocation
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// CommandConfig describes an external collaborator invoked as a process.
// Arguments may contain placeholders ({files}, {hook}, {outDir}, {reportDir},
// {buildDir}, {sourceDir}) expanded by the toolchain.
type CommandConfig struct {
	Command     string            `mapstructure:"command" yaml:"command" json:"command"`
	Args        []string          `mapstructure:"args" yaml:"args,omitempty" json:"args,omitempty"`
	Environment map[string]string `mapstructure:"environment" yaml:"environment,omitempty" json:"environment,omitempty"`
	Dir         string            `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
}

// IsZero reports whether no command was configured.
func (c CommandConfig) IsZero() bool {
	return strings.TrimSpace(c.Command) == ""
}

// String renders the command line for logs.
func (c CommandConfig) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// PathsConfig holds the fixed, well-known locations a pipeline reads and writes.
type PathsConfig struct {
	Source          string   `mapstructure:"source" yaml:"source" json:"source"`
	Build           string   `mapstructure:"build" yaml:"build" json:"build"`
	Coverage        string   `mapstructure:"coverage" yaml:"coverage" json:"coverage"`
	Distribute      string   `mapstructure:"distribute" yaml:"distribute" json:"distribute"`
	Instrumented    string   `mapstructure:"instrumented" yaml:"instrumented" json:"instrumented"`
	Declarations    []string `mapstructure:"declarations" yaml:"declarations" json:"declarations"`
	Coverable       []string `mapstructure:"coverable" yaml:"coverable" json:"coverable"`
	TestFiles       []string `mapstructure:"testFiles" yaml:"testFiles" json:"testFiles"`
	DebugTestFiles  []string `mapstructure:"debugTestFiles" yaml:"debugTestFiles" json:"debugTestFiles"`
	DistributeFiles []string `mapstructure:"distributeFiles" yaml:"distributeFiles" json:"distributeFiles"`
	LintFiles       []string `mapstructure:"lintFiles" yaml:"lintFiles" json:"lintFiles"`
}

// InstrumenterConfig configures the coverage instrumentation step and the hook
// it hands to the test runner.
type InstrumenterConfig struct {
	CommandConfig `mapstructure:",squash" yaml:",inline"`
	HookArgs      []string          `mapstructure:"hookArgs" yaml:"hookArgs,omitempty" json:"hookArgs,omitempty"`
	HookEnv       map[string]string `mapstructure:"hookEnv" yaml:"hookEnv,omitempty" json:"hookEnv,omitempty"`
}

// ToolchainConfig binds each external collaborator to a command.
type ToolchainConfig struct {
	Compiler     CommandConfig      `mapstructure:"compiler" yaml:"compiler" json:"compiler"`
	Linter       CommandConfig      `mapstructure:"linter" yaml:"linter" json:"linter"`
	TestRunner   CommandConfig      `mapstructure:"testRunner" yaml:"testRunner" json:"testRunner"`
	Instrumenter InstrumenterConfig `mapstructure:"instrumenter" yaml:"instrumenter" json:"instrumenter"`
	Reporter     CommandConfig      `mapstructure:"reporter" yaml:"reporter" json:"reporter"`
	// TestFormat tells the Result-mode formatter how to read runner output.
	TestFormat TestFormat `mapstructure:"testFormat" yaml:"testFormat" json:"testFormat"`
	// ProblemPattern extracts lint findings from linter output. Capture groups:
	// 1 file, 2 line, 3 column, 4 message.
	ProblemPattern string `mapstructure:"problemPattern" yaml:"problemPattern" json:"problemPattern"`
}

// TimeoutConfig bounds every externally-invoked task. Zero disables the bound.
type TimeoutConfig struct {
	Compile    time.Duration `mapstructure:"compile" yaml:"compile" json:"compile"`
	Lint       time.Duration `mapstructure:"lint" yaml:"lint" json:"lint"`
	Test       time.Duration `mapstructure:"test" yaml:"test" json:"test"`
	Filesystem time.Duration `mapstructure:"filesystem" yaml:"filesystem" json:"filesystem"`
	Release    time.Duration `mapstructure:"release" yaml:"release" json:"release"`
}

// MarshalYAML writes durations in their readable form ("5m0s") so generated
// config files stay editable.
func (t TimeoutConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{
		"compile":    t.Compile.String(),
		"lint":       t.Lint.String(),
		"test":       t.Test.String(),
		"filesystem": t.Filesystem.String(),
		"release":    t.Release.String(),
	}, nil
}

// ReleaseAsset describes a file uploaded to the hosting release page. Label,
// Name and Path are templates over the release (Tag, Version, Package).
type ReleaseAsset struct {
	Label string `mapstructure:"label" yaml:"label" json:"label"`
	Name  string `mapstructure:"name" yaml:"name" json:"name"`
	Path  string `mapstructure:"path" yaml:"path" json:"path"`
}

// ReleaseConfig configures the release pipeline.
type ReleaseConfig struct {
	Enabled        *bool          `mapstructure:"enabled" yaml:"enabled,omitempty" json:"enabled,omitempty"`
	DryRun         bool           `mapstructure:"dryRun" yaml:"dryRun" json:"dryRun"`
	PackageNameEnv string         `mapstructure:"packageNameEnv" yaml:"packageNameEnv" json:"packageNameEnv"`
	Organization   string         `mapstructure:"organization" yaml:"organization" json:"organization"`
	Repository     string         `mapstructure:"repository" yaml:"repository" json:"repository"`
	Branch         string         `mapstructure:"branch" yaml:"branch" json:"branch"`
	Remote         string         `mapstructure:"remote" yaml:"remote" json:"remote"`
	Host           string         `mapstructure:"host" yaml:"host" json:"host"`
	ChangelogFile  string         `mapstructure:"changelogFile" yaml:"changelogFile" json:"changelogFile"`
	ChangelogTitle string         `mapstructure:"changelogTitle" yaml:"changelogTitle" json:"changelogTitle"`
	PackageRoot    string         `mapstructure:"packageRoot" yaml:"packageRoot" json:"packageRoot"`
	TarballDir     string         `mapstructure:"tarballDir" yaml:"tarballDir" json:"tarballDir"`
	GitAssets      []string       `mapstructure:"gitAssets" yaml:"gitAssets" json:"gitAssets"`
	CommitMessage  string         `mapstructure:"commitMessage" yaml:"commitMessage" json:"commitMessage"`
	Assets         []ReleaseAsset `mapstructure:"assets" yaml:"assets" json:"assets"`
	SuccessComment string         `mapstructure:"successComment" yaml:"successComment" json:"successComment"`
	FailComment    string         `mapstructure:"failComment" yaml:"failComment" json:"failComment"`
	FailTitle      string         `mapstructure:"failTitle" yaml:"failTitle" json:"failTitle"`
	Labels         []string       `mapstructure:"labels" yaml:"labels" json:"labels"`
	Assignees      []string       `mapstructure:"assignees" yaml:"assignees" json:"assignees"`
	ReleasedLabels []string       `mapstructure:"releasedLabels" yaml:"releasedLabels" json:"releasedLabels"`
}

// IsEnabled reports whether distribute includes the release pipeline.
func (r *ReleaseConfig) IsEnabled() bool {
	return r != nil && (r.Enabled == nil || *r.Enabled)
}

// NotificationConfig configures desktop notifications
type NotificationConfig struct {
	Enabled *bool `mapstructure:"enabled" yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// IsEnabled reports whether notifications should be sent.
func (n *NotificationConfig) IsEnabled() bool {
	return n != nil && n.Enabled != nil && *n.Enabled
}

// WatchConfig configures watch mode.
type WatchConfig struct {
	SettlingDelay time.Duration `mapstructure:"settlingDelay" yaml:"settlingDelay" json:"settlingDelay"`
	Exclude       []string      `mapstructure:"exclude" yaml:"exclude" json:"exclude"`
}

// MarshalYAML writes the settling delay in its readable form.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		SettlingDelay string   `yaml:"settlingDelay"`
		Exclude       []string `yaml:"exclude"`
	}{w.SettlingDelay.String(), w.Exclude}, nil
}

// ForgeConfig is the root configuration document (forge.config.yaml).
type ForgeConfig struct {
	Version       string              `mapstructure:"version" yaml:"version" json:"version"`
	ProjectType   ProjectType         `mapstructure:"projectType" yaml:"projectType" json:"projectType"`
	Paths         PathsConfig         `mapstructure:"paths" yaml:"paths" json:"paths"`
	Toolchain     ToolchainConfig     `mapstructure:"toolchain" yaml:"toolchain" json:"toolchain"`
	Timeouts      TimeoutConfig       `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Release       *ReleaseConfig      `mapstructure:"release" yaml:"release,omitempty" json:"release,omitempty"`
	Notifications *NotificationConfig `mapstructure:"notifications" yaml:"notifications,omitempty" json:"notifications,omitempty"`
	Watch         *WatchConfig        `mapstructure:"watch" yaml:"watch,omitempty" json:"watch,omitempty"`
	LogLevel      LogLevel            `mapstructure:"logLevel" yaml:"logLevel,omitempty" json:"logLevel,omitempty"`
}
