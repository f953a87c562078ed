package release

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"

	"github.com/colonise/forge/pkg/conventional"
)

// Stage names, in execution order.
const (
	StageResolveConfig  = "resolve-config"
	StageAnalyzeCommits = "analyze-commits"
	StageGenerateNotes  = "generate-notes"
	StageChangelog      = "changelog"
	StagePublishPackage = "publish-package"
	StagePublishVCS     = "publish-vcs"
)

// Stages lists the stage names in execution order.
var Stages = []string{
	StageResolveConfig,
	StageAnalyzeCommits,
	StageGenerateNotes,
	StageChangelog,
	StagePublishPackage,
	StagePublishVCS,
}

var (
	// ErrNoRun is returned when a stage runs before resolve-config started a run.
	ErrNoRun = errors.New("release run not started")

	// ErrVCSNotConfigured indicates the version control publisher was missing.
	ErrVCSNotConfigured = errors.New("release: version control publisher not configured")

	// ErrRegistryNotConfigured indicates the package registry publisher was missing.
	ErrRegistryNotConfigured = errors.New("release: package registry publisher not configured")

	// ErrHostingNotConfigured indicates the hosting publisher was missing.
	ErrHostingNotConfigured = errors.New("release: hosting publisher not configured")
)

// StageError reports the stage a release failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("release stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// State is the per-run release context. Each stage reads what earlier stages
// produced and adds its own output.
type State struct {
	Config Config

	LastTag     string
	LastVersion *semver.Version
	Commits     []conventional.Commit
	ReleaseType conventional.ReleaseType
	NextVersion *semver.Version
	Tag         string
	Notes       string
	Tarball     string

	// Skipped is set when no commit calls for a release.
	Skipped bool
	Errors  []error
}

// Version returns the next version, or "" before analyze-commits.
func (s *State) Version() string {
	if s.NextVersion == nil {
		return ""
	}
	return s.NextVersion.String()
}

// TemplateData is what commit messages, comments and asset names are
// rendered from.
type TemplateData struct {
	Package      string
	PackageLower string
	Organization string
	Repository   string
	Scope        string
	Branch       string
	Version      string
	Tag          string
	Notes        string
	PullRequest  bool
	Errors       []string
}

func (s *State) templateData() TemplateData {
	data := TemplateData{
		Package:      s.Config.PackageName,
		PackageLower: strings.ToLower(s.Config.PackageName),
		Organization: s.Config.Organization,
		Repository:   s.Config.Repository,
		Scope:        strings.ToLower(s.Config.Organization),
		Branch:       s.Config.Branch,
		Version:      s.Version(),
		Tag:          s.Tag,
		Notes:        s.Notes,
	}
	for _, err := range s.Errors {
		data.Errors = append(data.Errors, err.Error())
	}
	return data
}

func render(t *template.Template, data TemplateData) (string, error) {
	if t == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// NextVersion bumps last by level. A repository without a release tag starts
// at 1.0.0.
func NextVersion(last *semver.Version, level conventional.ReleaseType) (*semver.Version, error) {
	if level == conventional.ReleaseNone {
		return nil, fmt.Errorf("no release type to apply")
	}
	if last == nil {
		return semver.MustParse("1.0.0"), nil
	}

	var next semver.Version
	switch level {
	case conventional.ReleaseMajor:
		next = last.IncMajor()
	case conventional.ReleaseMinor:
		next = last.IncMinor()
	default:
		next = last.IncPatch()
	}
	return &next, nil
}

// ParseTag reads the version out of a "v1.2.3" tag.
func ParseTag(tag string) (*semver.Version, error) {
	version, err := semver.NewVersion(strings.TrimPrefix(strings.TrimSpace(tag), "v"))
	if err != nil {
		return nil, fmt.Errorf("invalid release tag %q: %w", tag, err)
	}
	return version, nil
}

// TagFor returns the git tag for a version.
func TagFor(version *semver.Version) string {
	return "v" + version.String()
}
