package release

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/colonise/forge/pkg/toolchain"
)

const (
	npmBinaryConstant               = "npm"
	npmLogNameConstant              = "npm"
	npmPackSubcommandConstant       = "pack"
	npmPublishSubcommandConstant    = "publish"
	npmPackDestinationFlagConstant  = "--pack-destination"
	manifestFileNameConstant        = "package.json"
	lockfileFileNameConstant        = "package-lock.json"
	manifestVersionPathConstant     = "version"
	manifestNamePathConstant        = "name"
	manifestFilePermissionsConstant = 0644
)

// NPMCLI is the Registry backed by the npm command line.
type NPMCLI struct {
	runner toolchain.Runner
	dir    string
}

// NewNPMCLI creates an npm publisher working in dir.
func NewNPMCLI(runner toolchain.Runner, dir string) *NPMCLI {
	return &NPMCLI{runner: runner, dir: dir}
}

// Pack writes the tarball of dir into destDir.
func (n *NPMCLI) Pack(ctx context.Context, dir, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create tarball directory: %w", err)
	}
	result, err := n.runner.Run(ctx, toolchain.Command{
		Name:    npmBinaryConstant,
		Args:    []string{npmPackSubcommandConstant, dir, npmPackDestinationFlagConstant, destDir},
		Dir:     n.dir,
		LogName: npmLogNameConstant,
	})
	if err != nil {
		return "", fmt.Errorf("failed to pack %s: %w", dir, err)
	}

	// npm prints the tarball name last.
	lines := strings.Split(strings.TrimSpace(result.Stdout), "\n")
	name := strings.TrimSpace(lines[len(lines)-1])
	if name == "" {
		return "", fmt.Errorf("npm pack did not report a tarball for %s", dir)
	}
	return filepath.Join(destDir, name), nil
}

// Publish publishes dir to the registry.
func (n *NPMCLI) Publish(ctx context.Context, dir string) error {
	if _, err := n.runner.Run(ctx, toolchain.Command{
		Name:    npmBinaryConstant,
		Args:    []string{npmPublishSubcommandConstant, dir},
		Dir:     n.dir,
		LogName: npmLogNameConstant,
	}); err != nil {
		return fmt.Errorf("failed to publish %s: %w", dir, err)
	}
	return nil
}

// SetManifestVersion rewrites the version of a package.json or
// package-lock.json in place, leaving every other byte untouched. It reports
// false when the file does not exist.
func SetManifestVersion(path, version string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if !gjson.ValidBytes(data) {
		return false, fmt.Errorf("%s is not valid JSON", path)
	}

	if data, err = sjson.SetBytes(data, manifestVersionPathConstant, version); err != nil {
		return false, fmt.Errorf("failed to set version in %s: %w", path, err)
	}

	if err := os.WriteFile(path, data, manifestFilePermissionsConstant); err != nil {
		return false, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return true, nil
}

// ManifestName returns the "name" field of a package.json, or "".
func ManifestName(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return gjson.GetBytes(data, manifestNamePathConstant).String()
}

// manifestPaths lists the manifests whose version follows the release.
func manifestPaths(cfg Config) []string {
	return []string{
		filepath.Join(cfg.Root, manifestFileNameConstant),
		filepath.Join(cfg.Root, lockfileFileNameConstant),
		filepath.Join(cfg.PackageRoot, manifestFileNameConstant),
	}
}
