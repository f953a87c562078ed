// Package release publishes a new version: it derives the version from the
// commits since the last release, writes notes and the changelog, publishes
// the package and tags and releases it on the hosting platform.
package release

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/colonise/forge/internal/engine"
	"github.com/colonise/forge/pkg/conventional"
	"github.com/colonise/forge/pkg/fileset"
	"github.com/colonise/forge/pkg/logger"
)

const (
	releaseNodeNameConstant  = "release"
	distributionZipConstant  = "build.zip"
	noReleaseMessageConstant = "There are no relevant changes, so no new version is released"

	failureReportTimeoutConstant = time.Minute
)

// Dependencies are the publishers a release talks to.
type Dependencies struct {
	VCS      VCS
	Registry Registry
	Hosting  Hosting
	Logger   logger.Logger
	// Now stamps the release notes. Defaults to time.Now.
	Now func() time.Time
}

// Pipeline runs the six release stages.
type Pipeline struct {
	opts     Options
	vcs      VCS
	registry Registry
	hosting  Hosting
	logger   logger.Logger
	now      func() time.Time
	parser   *conventional.Parser

	mu    sync.Mutex
	state *State
}

// New creates a release pipeline. Nothing is validated against opts until
// the resolve-config stage runs.
func New(opts Options, deps Dependencies) (*Pipeline, error) {
	switch {
	case deps.VCS == nil:
		return nil, ErrVCSNotConfigured
	case deps.Registry == nil:
		return nil, ErrRegistryNotConfigured
	case deps.Hosting == nil:
		return nil, ErrHostingNotConfigured
	}

	p := &Pipeline{
		opts:     opts,
		vcs:      deps.VCS,
		registry: deps.Registry,
		hosting:  deps.Hosting,
		logger:   deps.Logger,
		now:      deps.Now,
		parser:   conventional.MustParser(conventional.DefaultParserOptions()),
	}
	if p.logger == nil {
		p.logger = logger.NewNop()
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p, nil
}

// Node returns the release as a series of its stages. Each run starts from
// fresh state in resolve-config; a node must not run concurrently with
// itself.
func (p *Pipeline) Node(timeout time.Duration) engine.Node {
	children := []engine.Node{
		engine.Task(StageResolveConfig, p.resolveConfig, engine.Description("validate release configuration")),
	}
	for _, s := range []struct {
		name        string
		description string
		fn          func(context.Context, *State) error
	}{
		{StageAnalyzeCommits, "derive the next version from commits", p.analyzeCommits},
		{StageGenerateNotes, "write release notes", p.generateNotes},
		{StageChangelog, "prepend release notes to the changelog", p.updateChangelog},
		{StagePublishPackage, "version, pack and publish the package", p.publishPackage},
		{StagePublishVCS, "commit, tag, push and publish the hosting release", p.publishVCS},
	} {
		children = append(children, engine.Task(s.name, p.stage(s.name, timeout, s.fn),
			engine.Description(s.description)))
	}
	return engine.Series(releaseNodeNameConstant, children...)
}

// Run executes every stage in order outside of a task graph.
func (p *Pipeline) Run(ctx context.Context) error {
	return engine.NewRunner(p.logger).Run(ctx, p.Node(0))
}

// State returns the state of the current or most recent run.
func (p *Pipeline) State() *State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) resolveConfig(ctx context.Context) error {
	cfg, err := ResolveConfig(p.opts)
	if err != nil {
		p.mu.Lock()
		p.state = nil
		p.mu.Unlock()
		return &StageError{Stage: StageResolveConfig, Err: err}
	}

	p.mu.Lock()
	p.state = &State{Config: cfg}
	p.mu.Unlock()

	if cfg.DryRun {
		p.logger.WithTask(StageResolveConfig).Warn("Dry run: nothing will be published")
	}
	return nil
}

// stage wraps a stage body: it fetches the run state, bounds the body by
// timeout, records a failure and reports it on the hosting platform. The
// report runs inside the task, so the runner waits for it even when the body
// timed out or the run was cancelled.
func (p *Pipeline) stage(name string, timeout time.Duration, fn func(context.Context, *State) error) engine.Func {
	return func(ctx context.Context) error {
		st := p.State()
		if st == nil {
			return &StageError{Stage: name, Err: ErrNoRun}
		}
		if err := runBounded(ctx, name, timeout, st, fn); err != nil {
			st.Errors = append(st.Errors, err)
			reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureReportTimeoutConstant)
			defer cancel()
			p.reportFailure(reportCtx, st)
			return &StageError{Stage: name, Err: err}
		}
		return nil
	}
}

func runBounded(ctx context.Context, name string, timeout time.Duration, st *State, fn func(context.Context, *State) error) error {
	if timeout <= 0 {
		return fn(ctx, st)
	}
	bounded, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(bounded, st)
	if err != nil && ctx.Err() == nil && errors.Is(bounded.Err(), context.DeadlineExceeded) {
		return &engine.TimeoutError{Task: name, Timeout: timeout}
	}
	return err
}

func (p *Pipeline) analyzeCommits(ctx context.Context, st *State) error {
	log := p.logger.WithTask(StageAnalyzeCommits)

	tag, err := p.vcs.LastTag(ctx)
	if err != nil {
		return err
	}
	st.LastTag = tag
	if tag != "" {
		if st.LastVersion, err = ParseTag(tag); err != nil {
			return err
		}
	}

	messages, err := p.vcs.Messages(ctx, tag)
	if err != nil {
		return err
	}
	if st.Commits, err = p.parser.ParseAll(messages); err != nil {
		return err
	}

	st.ReleaseType = conventional.Analyze(st.Commits, conventional.ReleaseRules...)
	log.Info(fmt.Sprintf("Analyzed %d commits since %s", len(st.Commits), describeTag(tag)),
		logger.WithField("release", st.ReleaseType.String()))

	if st.ReleaseType == conventional.ReleaseNone {
		st.Skipped = true
		log.Info(noReleaseMessageConstant)
		return nil
	}

	if st.NextVersion, err = NextVersion(st.LastVersion, st.ReleaseType); err != nil {
		return err
	}
	st.Tag = TagFor(st.NextVersion)
	log.Success(fmt.Sprintf("The next release version is %s", st.Version()))
	return nil
}

func describeTag(tag string) string {
	if tag == "" {
		return "the beginning of history"
	}
	return tag
}

func (p *Pipeline) generateNotes(ctx context.Context, st *State) error {
	if st.Skipped {
		return nil
	}
	writer := conventional.NewWriter(conventional.WriterOptions{
		Host:           st.Config.Host,
		Owner:          st.Config.Organization,
		Repository:     st.Config.Repository,
		LinkCompare:    true,
		LinkReferences: true,
	})
	notes, err := writer.Write(conventional.Context{
		Version:     st.Version(),
		PreviousTag: st.LastTag,
		CurrentTag:  st.Tag,
		Date:        p.now(),
	}, st.Commits)
	if err != nil {
		return err
	}
	st.Notes = notes

	if st.Config.DryRun {
		p.logger.WithTask(StageGenerateNotes).Info("Release notes for version " + st.Version() + ":\n" + notes)
	}
	return nil
}

func (p *Pipeline) updateChangelog(ctx context.Context, st *State) error {
	if st.Skipped || st.Config.DryRun {
		return nil
	}
	if err := PrependChangelog(st.Config.ChangelogFile, st.Config.ChangelogTitle, st.Notes); err != nil {
		return err
	}
	p.logger.WithTask(StageChangelog).Info("Updated " + filepath.Base(st.Config.ChangelogFile))
	return nil
}

func (p *Pipeline) publishPackage(ctx context.Context, st *State) error {
	if st.Skipped || st.Config.DryRun {
		return nil
	}
	log := p.logger.WithTask(StagePublishPackage)

	for _, manifest := range manifestPaths(st.Config) {
		updated, err := SetManifestVersion(manifest, st.Version())
		if err != nil {
			return err
		}
		if updated {
			log.Debug("Set manifest version", logger.WithField("file", manifest), logger.WithField("version", st.Version()))
		}
	}

	tarball, err := p.registry.Pack(ctx, st.Config.PackageRoot, st.Config.TarballDir)
	if err != nil {
		return err
	}
	st.Tarball = tarball

	if err := p.registry.Publish(ctx, st.Config.PackageRoot); err != nil {
		return err
	}
	name := ManifestName(filepath.Join(st.Config.PackageRoot, manifestFileNameConstant))
	if name == "" {
		name = st.Config.PackageName
	}
	log.Success(fmt.Sprintf("Published %s@%s", name, st.Version()))
	return nil
}

func (p *Pipeline) publishVCS(ctx context.Context, st *State) error {
	if st.Skipped || st.Config.DryRun {
		return nil
	}
	log := p.logger.WithTask(StagePublishVCS)
	data := st.templateData()

	message, err := render(st.Config.CommitMessage, data)
	if err != nil {
		return err
	}
	if err := p.vcs.Commit(ctx, message, existingAssets(ctx, st.Config)); err != nil {
		return err
	}
	if err := p.vcs.Tag(ctx, st.Tag, ""); err != nil {
		return err
	}
	if err := p.vcs.Push(ctx, st.Config.Remote, st.Config.Branch, st.Tag); err != nil {
		return err
	}

	if err := fileset.Zip(ctx, st.Config.BuildDir, filepath.Join(st.Config.Root, distributionZipConstant)); err != nil {
		return fmt.Errorf("failed to archive the build: %w", err)
	}
	if err := p.hosting.CreateRelease(ctx, st.Tag, st.Notes); err != nil {
		return err
	}

	assets, err := p.resolveAssets(ctx, st, data)
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if err := p.hosting.UploadAsset(ctx, st.Tag, asset); err != nil {
			return err
		}
	}
	log.Success(fmt.Sprintf("Published release %s", st.Tag))

	p.announce(ctx, st)
	return nil
}

func existingAssets(ctx context.Context, cfg Config) []string {
	var files []string
	for _, asset := range cfg.GitAssets {
		set, err := fileset.NewSet(asset)
		if err != nil {
			continue
		}
		matched, err := fileset.Select(ctx, cfg.Root, set)
		if err != nil {
			continue
		}
		files = append(files, fileset.Paths(matched)...)
	}
	return files
}

func (p *Pipeline) resolveAssets(ctx context.Context, st *State, data TemplateData) ([]Asset, error) {
	var assets []Asset
	for _, tmpl := range st.Config.Assets {
		pattern, err := render(tmpl.Path, data)
		if err != nil {
			return nil, err
		}
		set, err := fileset.NewSet(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid asset path %q: %w", pattern, err)
		}
		matched, err := fileset.Select(ctx, st.Config.Root, set)
		if err != nil {
			return nil, err
		}
		if len(matched) == 0 {
			p.logger.WithTask(StagePublishVCS).Warn(fmt.Sprintf("No file matches release asset %s", pattern))
			continue
		}

		name, err := render(tmpl.Name, data)
		if err != nil {
			return nil, err
		}
		label, err := render(tmpl.Label, data)
		if err != nil {
			return nil, err
		}
		for _, file := range matched {
			asset := Asset{Path: filepath.Join(st.Config.Root, filepath.FromSlash(file.Path)), Name: name, Label: label}
			if len(matched) > 1 || name == "" {
				asset.Name = filepath.Base(file.Path)
			}
			assets = append(assets, asset)
		}
	}
	return assets, nil
}

// announce comments on every issue and pull request the released commits
// reference and labels them. Failures are logged; the release already
// happened.
func (p *Pipeline) announce(ctx context.Context, st *State) {
	log := p.logger.WithTask(StagePublishVCS)

	for _, number := range referencedIssues(st.Commits) {
		data := st.templateData()
		pr, err := p.hosting.IsPullRequest(ctx, number)
		if err != nil {
			log.Warn("Could not look up referenced issue", logger.WithField("issue", number), logger.WithField("error", err))
			continue
		}
		data.PullRequest = pr

		body, err := render(st.Config.SuccessComment, data)
		if err != nil {
			log.Warn("Could not render success comment", logger.WithField("error", err))
			return
		}
		if err := p.hosting.Comment(ctx, number, body); err != nil {
			log.Warn("Could not comment on referenced issue", logger.WithField("issue", number), logger.WithField("error", err))
			continue
		}
		if err := p.hosting.AddLabels(ctx, number, st.Config.ReleasedLabels); err != nil {
			log.Warn("Could not label referenced issue", logger.WithField("issue", number), logger.WithField("error", err))
		}
	}
}

// referencedIssues lists issue numbers of this repository referenced by the
// released commits, in first-seen order.
func referencedIssues(commits []conventional.Commit) []string {
	var numbers []string
	seen := map[string]bool{}
	for _, c := range conventional.FilterReverted(commits) {
		for _, ref := range c.References {
			if ref.Owner != "" || seen[ref.Issue] {
				continue
			}
			seen[ref.Issue] = true
			numbers = append(numbers, ref.Issue)
		}
	}
	return numbers
}

// reportFailure opens an issue describing the failed release, or comments on
// the one already open. It never fails the release itself.
func (p *Pipeline) reportFailure(ctx context.Context, st *State) {
	if st.Config.DryRun {
		return
	}
	log := p.logger.WithTask(releaseNodeNameConstant)
	data := st.templateData()

	title, err := render(st.Config.FailTitle, data)
	if err != nil {
		log.Error("Could not render failure title", logger.WithField("error", err))
		return
	}
	body, err := render(st.Config.FailComment, data)
	if err != nil {
		log.Error("Could not render failure comment", logger.WithField("error", err))
		return
	}
	title = strings.TrimSpace(title)

	existing, err := p.hosting.FindIssue(ctx, title)
	if err != nil {
		log.Error("Could not report release failure", logger.WithField("error", err))
		return
	}
	if existing != "" {
		if err := p.hosting.Comment(ctx, existing, body); err != nil {
			log.Error("Could not report release failure", logger.WithField("error", err))
		}
		return
	}

	number, err := p.hosting.OpenIssue(ctx, Issue{
		Title:     title,
		Body:      body,
		Labels:    st.Config.Labels,
		Assignees: st.Config.Assignees,
	})
	if err != nil {
		log.Error("Could not report release failure", logger.WithField("error", err))
		return
	}
	log.Warn(fmt.Sprintf("Release failure reported in issue #%s", number))
}
