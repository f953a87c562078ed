// Package config handles configuration loading and management
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/colonise/forge/pkg/release"
	"github.com/colonise/forge/pkg/types"
)

const (
	// FileName is the config file name without extension.
	FileName = "forge.config"
	// EnvPrefix prefixes environment overrides, e.g. FORGE_LOGLEVEL.
	EnvPrefix = "FORGE"
)

var (
	// ErrConfigNotFound indicates no config file exists where one was looked for.
	ErrConfigNotFound = errors.New("config file not found")
	// ErrUnsupportedVersion indicates a config written for another schema.
	ErrUnsupportedVersion = errors.New("unsupported config version")
	// ErrUnknownProjectType indicates a project type without a preset.
	ErrUnknownProjectType = errors.New("unknown project type")
	// ErrInvalidPaths indicates conflicting or missing well-known paths.
	ErrInvalidPaths = errors.New("invalid paths")
)

// envOverrides are the keys that can be set through FORGE_* variables even
// when the config file does not mention them.
var envOverrides = []string{
	"logLevel",
	"projectType",
	"release.dryRun",
	"release.enabled",
	"release.branch",
	"release.organization",
	"release.repository",
	"notifications.enabled",
}

// Manager handles configuration operations
type Manager struct {
	configPath string
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{}
}

// ConfigPath returns the file the last successful load read, or "" when the
// configuration came from presets only.
func (m *Manager) ConfigPath() string {
	return m.configPath
}

// Find returns the config file in root, trying yaml, yml and json.
func Find(root string) (string, error) {
	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(root, FileName+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrConfigNotFound, root)
}

// Load reads the configuration for the project in root. An explicit path
// wins over discovery; a project without a config file gets the node preset.
func (m *Manager) Load(root, path string) (*types.ForgeConfig, error) {
	if path == "" {
		found, err := Find(root)
		if err != nil {
			m.configPath = ""
			return m.fromViper(viper.New(), "")
		}
		path = found
	}
	return m.LoadConfig(path)
}

// LoadConfig loads configuration from a file
func (m *Manager) LoadConfig(path string) (*types.ForgeConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, fmt.Errorf("failed to read config file: %w", statErr)
		}
		// Unknown extensions are parsed as YAML, which also covers JSON.
		raw, fallbackErr := readYAML(path)
		if fallbackErr != nil {
			return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", err)
		}
		v = viper.New()
		if err := v.MergeConfigMap(raw); err != nil {
			return nil, fmt.Errorf("failed to parse config as JSON or YAML: %w", err)
		}
	}

	cfg, err := m.fromViper(v, path)
	if err != nil {
		return nil, err
	}
	m.configPath = path
	return cfg, nil
}

func (m *Manager) fromViper(v *viper.Viper, path string) (*types.ForgeConfig, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOverrides {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	projectType := types.ProjectType(strings.ToLower(strings.TrimSpace(v.GetString("projectType"))))
	cfg, err := Preset(projectType)
	if err != nil {
		return nil, err
	}

	// Keys present in the file replace preset values; the rest are kept.
	if err := v.Unmarshal(cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	// A command given without args replaces the preset invocation.
	for key, command := range map[string]*types.CommandConfig{
		"toolchain.compiler":     &cfg.Toolchain.Compiler,
		"toolchain.linter":       &cfg.Toolchain.Linter,
		"toolchain.testRunner":   &cfg.Toolchain.TestRunner,
		"toolchain.instrumenter": &cfg.Toolchain.Instrumenter.CommandConfig,
		"toolchain.reporter":     &cfg.Toolchain.Reporter,
	} {
		if v.IsSet(key+".command") && !v.IsSet(key+".args") {
			command.Args = nil
		}
	}
	if cfg.Release != nil {
		release.ApplyDefaults(cfg.Release)
	}

	if err := m.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		enumHook(),
	)
}

var enumTypes = map[reflect.Type]bool{
	reflect.TypeOf(types.ProjectType("")): true,
	reflect.TypeOf(types.TestFormat("")):  true,
	reflect.TypeOf(types.LogLevel("")):    true,
}

// enumHook lower-cases enum-like strings before they land in typed fields.
func enumHook() mapstructure.DecodeHookFuncType {
	return func(from, to reflect.Type, data interface{}) (interface{}, error) {
		s, ok := data.(string)
		if !ok || !enumTypes[to] {
			return data, nil
		}
		return strings.ToLower(strings.TrimSpace(s)), nil
	}
}

func readYAML(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	return raw, nil
}

// ValidateConfig validates a configuration
func (m *Manager) ValidateConfig(config *types.ForgeConfig) error {
	if config.Version != CurrentVersion {
		return fmt.Errorf("%w: %s", ErrUnsupportedVersion, config.Version)
	}

	known := false
	for _, preset := range Presets {
		if config.ProjectType == preset {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownProjectType, config.ProjectType)
	}

	paths := config.Paths
	required := map[string]string{
		"build":      paths.Build,
		"coverage":   paths.Coverage,
		"distribute": paths.Distribute,
	}
	for _, name := range []string{"build", "coverage", "distribute"} {
		if strings.TrimSpace(required[name]) == "" {
			return fmt.Errorf("%w: paths.%s is required", ErrInvalidPaths, name)
		}
	}

	// Coverage output must never land on top of sources or artifacts, or
	// clean would remove them.
	if paths.Instrumented != "" {
		instrumented := filepath.Clean(paths.Instrumented)
		for _, other := range []struct{ name, path string }{
			{"build", paths.Build},
			{"source", paths.Source},
		} {
			if other.path != "" && filepath.Clean(other.path) == instrumented {
				return fmt.Errorf("%w: paths.instrumented must differ from paths.%s", ErrInvalidPaths, other.name)
			}
		}
	}
	if filepath.Clean(paths.Build) == filepath.Clean(paths.Distribute) {
		return fmt.Errorf("%w: paths.build and paths.distribute must differ", ErrInvalidPaths)
	}

	if config.Toolchain.Compiler.IsZero() {
		return fmt.Errorf("toolchain.compiler: missing command")
	}
	if config.Toolchain.Linter.IsZero() {
		return fmt.Errorf("toolchain.linter: missing command")
	}
	if config.Toolchain.TestRunner.IsZero() {
		return fmt.Errorf("toolchain.testRunner: missing command")
	}
	if config.Toolchain.Reporter.IsZero() {
		return fmt.Errorf("toolchain.reporter: missing command")
	}
	switch config.Toolchain.TestFormat {
	case types.TestFormatTAP, types.TestFormatRaw:
	default:
		return fmt.Errorf("toolchain.testFormat: unknown format %q", config.Toolchain.TestFormat)
	}

	timeouts := config.Timeouts
	for name, d := range map[string]int64{
		"compile":    int64(timeouts.Compile),
		"lint":       int64(timeouts.Lint),
		"test":       int64(timeouts.Test),
		"filesystem": int64(timeouts.Filesystem),
		"release":    int64(timeouts.Release),
	} {
		if d < 0 {
			return fmt.Errorf("timeouts.%s: must not be negative", name)
		}
	}

	switch config.LogLevel {
	case types.LogLevelDebug, types.LogLevelInfo, types.LogLevelWarn, types.LogLevelError:
	default:
		return fmt.Errorf("logLevel: unknown level %q", config.LogLevel)
	}

	return nil
}

// GetDefaultConfig returns a default configuration for a project type
func (m *Manager) GetDefaultConfig(projectType types.ProjectType) *types.ForgeConfig {
	cfg, err := Preset(projectType)
	if err != nil {
		return MustPreset(types.ProjectTypeNode)
	}
	return cfg
}

// WriteConfig writes cfg as YAML to path.
func (m *Manager) WriteConfig(path string, cfg *types.ForgeConfig) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
