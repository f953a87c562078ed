package release

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/colonise/forge/pkg/fileset"
	"github.com/colonise/forge/pkg/toolchain"
)

const (
	ghBinaryConstant                  = "gh"
	ghLogNameConstant                 = "gh"
	ghReleaseSubcommandConstant       = "release"
	ghIssueSubcommandConstant         = "issue"
	ghAPISubcommandConstant           = "api"
	ghCreateSubcommandConstant        = "create"
	ghUploadSubcommandConstant        = "upload"
	ghListSubcommandConstant          = "list"
	ghRepoFlagConstant                = "--repo"
	ghTitleFlagConstant               = "--title"
	ghNotesFlagConstant               = "--notes"
	ghBodyFlagConstant                = "--body"
	ghLabelFlagConstant               = "--label"
	ghAssigneeFlagConstant            = "--assignee"
	ghStateFlagConstant               = "--state"
	ghSearchFlagConstant              = "--search"
	ghJSONFlagConstant                = "--json"
	ghVerifyTagFlagConstant           = "--verify-tag"
	ghClobberFlagConstant             = "--clobber"
	ghMethodFlagConstant              = "-X"
	ghFieldFlagConstant               = "-f"
	ghOpenStateConstant               = "open"
	ghIssueJSONFieldsConstant         = "number,title"
	ghIssueEndpointTemplateConstant   = "repos/%s/issues/%s"
	ghCommentEndpointTemplateConstant = "repos/%s/issues/%s/comments"
	ghLabelsEndpointTemplateConstant  = "repos/%s/issues/%s/labels"
	ghHTTPMethodPostConstant          = "POST"
)

// GitHubCLI is the Hosting backed by the gh command line.
type GitHubCLI struct {
	runner     toolchain.Runner
	dir        string
	repository string
}

// NewGitHubCLI creates a hosting publisher for repository ("owner/name").
func NewGitHubCLI(runner toolchain.Runner, dir, repository string) *GitHubCLI {
	return &GitHubCLI{runner: runner, dir: dir, repository: repository}
}

func (g *GitHubCLI) run(ctx context.Context, args ...string) (toolchain.Result, error) {
	return g.runner.Run(ctx, toolchain.Command{
		Name:    ghBinaryConstant,
		Args:    args,
		Dir:     g.dir,
		LogName: ghLogNameConstant,
	})
}

// CreateRelease publishes a release for an already pushed tag.
func (g *GitHubCLI) CreateRelease(ctx context.Context, tag, notes string) error {
	if _, err := g.run(ctx, ghReleaseSubcommandConstant, ghCreateSubcommandConstant, tag,
		ghRepoFlagConstant, g.repository,
		ghTitleFlagConstant, tag,
		ghNotesFlagConstant, notes,
		ghVerifyTagFlagConstant,
	); err != nil {
		return fmt.Errorf("failed to create release %s: %w", tag, err)
	}
	return nil
}

// UploadAsset attaches a file to the release. The file is uploaded under
// asset.Name with asset.Label as its display label.
func (g *GitHubCLI) UploadAsset(ctx context.Context, tag string, asset Asset) error {
	upload := asset.Path
	if asset.Name != "" && asset.Name != filepath.Base(asset.Path) {
		staging, err := os.MkdirTemp("", "forge-asset-")
		if err != nil {
			return fmt.Errorf("failed to stage asset %s: %w", asset.Name, err)
		}
		defer os.RemoveAll(staging)

		upload = filepath.Join(staging, asset.Name)
		if _, err := fileset.CopyFile(asset.Path, upload); err != nil {
			return fmt.Errorf("failed to stage asset %s: %w", asset.Name, err)
		}
	}
	if asset.Label != "" {
		upload += "#" + asset.Label
	}

	if _, err := g.run(ctx, ghReleaseSubcommandConstant, ghUploadSubcommandConstant, tag, upload,
		ghRepoFlagConstant, g.repository,
		ghClobberFlagConstant,
	); err != nil {
		return fmt.Errorf("failed to upload %s to release %s: %w", asset.Name, tag, err)
	}
	return nil
}

// IsPullRequest reports whether number is a pull request rather than an issue.
func (g *GitHubCLI) IsPullRequest(ctx context.Context, number string) (bool, error) {
	result, err := g.run(ctx, ghAPISubcommandConstant, fmt.Sprintf(ghIssueEndpointTemplateConstant, g.repository, number))
	if err != nil {
		return false, fmt.Errorf("failed to look up #%s: %w", number, err)
	}
	return gjson.Get(result.Stdout, "pull_request").Exists(), nil
}

// Comment posts body on an issue or pull request.
func (g *GitHubCLI) Comment(ctx context.Context, number, body string) error {
	if _, err := g.run(ctx, ghAPISubcommandConstant,
		ghMethodFlagConstant, ghHTTPMethodPostConstant,
		fmt.Sprintf(ghCommentEndpointTemplateConstant, g.repository, number),
		ghFieldFlagConstant, "body="+body,
	); err != nil {
		return fmt.Errorf("failed to comment on #%s: %w", number, err)
	}
	return nil
}

// AddLabels adds labels to an issue or pull request.
func (g *GitHubCLI) AddLabels(ctx context.Context, number string, labels []string) error {
	if len(labels) == 0 {
		return nil
	}
	args := []string{ghAPISubcommandConstant,
		ghMethodFlagConstant, ghHTTPMethodPostConstant,
		fmt.Sprintf(ghLabelsEndpointTemplateConstant, g.repository, number),
	}
	for _, label := range labels {
		args = append(args, ghFieldFlagConstant, "labels[]="+label)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return fmt.Errorf("failed to label #%s: %w", number, err)
	}
	return nil
}

// FindIssue returns the number of the open issue titled exactly title.
func (g *GitHubCLI) FindIssue(ctx context.Context, title string) (string, error) {
	result, err := g.run(ctx, ghIssueSubcommandConstant, ghListSubcommandConstant,
		ghRepoFlagConstant, g.repository,
		ghStateFlagConstant, ghOpenStateConstant,
		ghSearchFlagConstant, title+" in:title",
		ghJSONFlagConstant, ghIssueJSONFieldsConstant,
	)
	if err != nil {
		return "", fmt.Errorf("failed to search issues: %w", err)
	}

	var number string
	gjson.Parse(result.Stdout).ForEach(func(_, issue gjson.Result) bool {
		if issue.Get("title").String() == title {
			number = issue.Get("number").String()
			return false
		}
		return true
	})
	return number, nil
}

// OpenIssue creates an issue and returns its number.
func (g *GitHubCLI) OpenIssue(ctx context.Context, issue Issue) (string, error) {
	args := []string{ghIssueSubcommandConstant, ghCreateSubcommandConstant,
		ghRepoFlagConstant, g.repository,
		ghTitleFlagConstant, issue.Title,
		ghBodyFlagConstant, issue.Body,
	}
	for _, label := range issue.Labels {
		args = append(args, ghLabelFlagConstant, label)
	}
	for _, assignee := range issue.Assignees {
		args = append(args, ghAssigneeFlagConstant, assignee)
	}

	result, err := g.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("failed to open issue %q: %w", issue.Title, err)
	}
	// gh prints the new issue URL.
	return path.Base(strings.TrimSpace(result.Stdout)), nil
}
