package release

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/colonise/forge/pkg/types"
)

// Configuration defaults.
const (
	DefaultPackageNameEnv = "COLONISE_PACKAGE_NAME"
	DefaultOrganization   = "Colonise"
	DefaultBranch         = "master"
	DefaultRemote         = "origin"
	DefaultHost           = "https://github.com"
	DefaultChangelogFile  = "CHANGELOG.md"
	DefaultChangelogTitle = "Changelog"
	DefaultPackageRoot    = "./distribute"
	DefaultTarballDir     = "."
	DefaultCommitMessage  = "chore(release): {{.Version}} [skip ci]\n\n{{.Notes}}"
	DefaultFailComment    = "This release from branch {{.Branch}} failed due to the following errors: {{range .Errors}}\n- {{.}}{{end}}"
	DefaultFailTitle      = "The automatic publishing of release {{.Tag}} is failing."
	DefaultSuccessComment = "This {{if .PullRequest}}pull request has been included in{{else}}issue has been resolved in{{end}} " +
		"**[release {{.Tag}}](https://github.com/{{.Organization}}/{{.Repository}}/releases/tag/{{.Tag}})**!\n\n" +
		"You can install the **[npm package](https://www.npmjs.com/package/@{{.Scope}}/{{.PackageLower}})** for {{.Tag}} " +
		"using `npm install @{{.Scope}}/{{.PackageLower}}@{{.Version}}`"
)

// Error codes reported by ConfigError.
const (
	CodeNoPackageName   = "ENOPACKAGENAME"
	CodeConfigLoadError = "ECONFIGLOADERROR"
)

// DefaultGitAssets are committed together with the release.
var DefaultGitAssets = []string{"package.json", "package-lock.json", "CHANGELOG.md"}

// DefaultAssets are uploaded to the hosting release.
var DefaultAssets = []types.ReleaseAsset{
	{
		Label: "{{.Organization}} {{.Package}} {{.Tag}} NPM package",
		Name:  "{{.Scope}}-{{.PackageLower}}-{{.Tag}}.tgz",
		Path:  "{{.Scope}}-{{.PackageLower}}-*.tgz",
	},
	{
		Label: "{{.Organization}} {{.Package}} {{.Tag}} distribution",
		Name:  "{{.Scope}}-{{.PackageLower}}-{{.Tag}}.zip",
		Path:  "./build.zip",
	},
}

// ConfigError is a fatal configuration problem found before any release
// stage touches the network.
type ConfigError struct {
	Code    string
	Message string
	Hint    string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Options are the inputs the release is resolved from. PackageName is read
// from the environment once by the caller.
type Options struct {
	Release     *types.ReleaseConfig
	PackageName string
	Root        string
	BuildDir    string
}

// PackageNameFromEnv reads the package name from the configured variable.
func PackageNameFromEnv(cfg *types.ReleaseConfig) string {
	return strings.TrimSpace(os.Getenv(PackageNameEnv(cfg)))
}

// PackageNameEnv returns the variable the package name is read from.
func PackageNameEnv(cfg *types.ReleaseConfig) string {
	if cfg == nil || cfg.PackageNameEnv == "" {
		return DefaultPackageNameEnv
	}
	return cfg.PackageNameEnv
}

// ApplyDefaults fills every unset release setting.
func ApplyDefaults(cfg *types.ReleaseConfig) {
	if cfg == nil {
		return
	}
	setDefault(&cfg.PackageNameEnv, DefaultPackageNameEnv)
	setDefault(&cfg.Organization, DefaultOrganization)
	setDefault(&cfg.Branch, DefaultBranch)
	setDefault(&cfg.Remote, DefaultRemote)
	setDefault(&cfg.Host, DefaultHost)
	setDefault(&cfg.ChangelogFile, DefaultChangelogFile)
	setDefault(&cfg.ChangelogTitle, DefaultChangelogTitle)
	setDefault(&cfg.PackageRoot, DefaultPackageRoot)
	setDefault(&cfg.TarballDir, DefaultTarballDir)
	setDefault(&cfg.CommitMessage, DefaultCommitMessage)
	setDefault(&cfg.SuccessComment, DefaultSuccessComment)
	setDefault(&cfg.FailComment, DefaultFailComment)
	setDefault(&cfg.FailTitle, DefaultFailTitle)
	if cfg.GitAssets == nil {
		cfg.GitAssets = append([]string(nil), DefaultGitAssets...)
	}
	if cfg.Assets == nil {
		cfg.Assets = append([]types.ReleaseAsset(nil), DefaultAssets...)
	}
	if cfg.Labels == nil {
		cfg.Labels = []string{"release"}
	}
	if cfg.Assignees == nil {
		cfg.Assignees = []string{"pathurs"}
	}
	if cfg.ReleasedLabels == nil {
		cfg.ReleasedLabels = []string{"released"}
	}
}

func setDefault(field *string, value string) {
	if strings.TrimSpace(*field) == "" {
		*field = value
	}
}

// AssetTemplate is a release asset whose fields are rendered per release.
type AssetTemplate struct {
	Label *template.Template
	Name  *template.Template
	Path  *template.Template
}

// Config is the validated release configuration.
type Config struct {
	PackageName  string
	Organization string
	Repository   string
	Branch       string
	Remote       string
	Host         string
	DryRun       bool

	Root           string
	BuildDir       string
	ChangelogFile  string
	ChangelogTitle string
	PackageRoot    string
	TarballDir     string
	GitAssets      []string

	CommitMessage  *template.Template
	SuccessComment *template.Template
	FailComment    *template.Template
	FailTitle      *template.Template
	Assets         []AssetTemplate

	Labels         []string
	Assignees      []string
	ReleasedLabels []string
}

// Slug returns "organization/repository".
func (c Config) Slug() string {
	return c.Organization + "/" + c.Repository
}

// ResolveConfig validates the release inputs. A missing package name yields
// ENOPACKAGENAME, a missing or unreadable release section ECONFIGLOADERROR.
func ResolveConfig(opts Options) (Config, error) {
	if opts.Release == nil {
		return Config{}, &ConfigError{
			Code:    CodeConfigLoadError,
			Message: "the release configuration could not be loaded",
			Hint:    "Add a release section to forge.config.yaml.",
		}
	}

	raw := *opts.Release
	ApplyDefaults(&raw)

	name := strings.TrimSpace(opts.PackageName)
	if name == "" {
		return Config{}, &ConfigError{
			Code:    CodeNoPackageName,
			Message: "The package name must be provided.",
			Hint:    fmt.Sprintf("Make sure to add the environment variable '%s' to the CI build.", raw.PackageNameEnv),
		}
	}

	root := opts.Root
	if root == "" {
		root = "."
	}

	cfg := Config{
		PackageName:    name,
		Organization:   raw.Organization,
		Repository:     raw.Repository,
		Branch:         raw.Branch,
		Remote:         raw.Remote,
		Host:           raw.Host,
		DryRun:         raw.DryRun,
		Root:           root,
		BuildDir:       resolvePath(root, opts.BuildDir, "build"),
		ChangelogFile:  resolvePath(root, raw.ChangelogFile, DefaultChangelogFile),
		ChangelogTitle: raw.ChangelogTitle,
		PackageRoot:    resolvePath(root, raw.PackageRoot, DefaultPackageRoot),
		TarballDir:     resolvePath(root, raw.TarballDir, DefaultTarballDir),
		GitAssets:      raw.GitAssets,
		Labels:         raw.Labels,
		Assignees:      raw.Assignees,
		ReleasedLabels: raw.ReleasedLabels,
	}
	if cfg.Repository == "" {
		cfg.Repository = name
	}

	templates := []struct {
		target **template.Template
		name   string
		text   string
	}{
		{&cfg.CommitMessage, "commitMessage", raw.CommitMessage},
		{&cfg.SuccessComment, "successComment", raw.SuccessComment},
		{&cfg.FailComment, "failComment", raw.FailComment},
		{&cfg.FailTitle, "failTitle", raw.FailTitle},
	}
	for _, t := range templates {
		parsed, err := parseTemplate(t.name, t.text)
		if err != nil {
			return Config{}, err
		}
		*t.target = parsed
	}

	for i, asset := range raw.Assets {
		var at AssetTemplate
		var err error
		if at.Label, err = parseTemplate(fmt.Sprintf("assets[%d].label", i), asset.Label); err != nil {
			return Config{}, err
		}
		if at.Name, err = parseTemplate(fmt.Sprintf("assets[%d].name", i), asset.Name); err != nil {
			return Config{}, err
		}
		if at.Path, err = parseTemplate(fmt.Sprintf("assets[%d].path", i), asset.Path); err != nil {
			return Config{}, err
		}
		cfg.Assets = append(cfg.Assets, at)
	}

	return cfg, nil
}

func parseTemplate(name, text string) (*template.Template, error) {
	t, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return nil, &ConfigError{
			Code:    CodeConfigLoadError,
			Message: fmt.Sprintf("invalid release template %s", name),
			Hint:    "Release templates use Go text/template syntax, e.g. {{.Version}}.",
			Err:     err,
		}
	}
	return t, nil
}

func resolvePath(root, p, fallback string) string {
	if p == "" {
		p = fallback
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}
