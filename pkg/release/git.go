package release

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/colonise/forge/pkg/toolchain"
)

const (
	gitBinaryConstant                           = "git"
	gitLogNameConstant                          = "git"
	gitDescribeSubcommandConstant               = "describe"
	gitLogSubcommandConstant                    = "log"
	gitStatusSubcommandConstant                 = "status"
	gitAddSubcommandConstant                    = "add"
	gitCommitSubcommandConstant                 = "commit"
	gitTagSubcommandConstant                    = "tag"
	gitPushSubcommandConstant                   = "push"
	gitTagAnnotatedFlagConstant                 = "-a"
	gitMessageFlagConstant                      = "-m"
	gitPorcelainFlagConstant                    = "--porcelain"
	gitPathSeparatorConstant                    = "--"
	gitTerminalPromptEnvironmentNameConstant    = "GIT_TERMINAL_PROMPT"
	gitTerminalPromptEnvironmentDisableConstant = "0"
	commitSeparatorConstant                     = "------------------------ >8 ------------------------"
	commitLogFormatConstant                     = "--format=%B%n-hash-%n%H%n-committerDate-%n%cI%n" + commitSeparatorConstant
)

// GitCLI is the VCS backed by the git command line.
type GitCLI struct {
	runner toolchain.Runner
	dir    string
}

// NewGitCLI creates a git publisher working in dir.
func NewGitCLI(runner toolchain.Runner, dir string) *GitCLI {
	return &GitCLI{runner: runner, dir: dir}
}

func (g *GitCLI) run(ctx context.Context, args ...string) (toolchain.Result, error) {
	return g.runner.Run(ctx, toolchain.Command{
		Name:    gitBinaryConstant,
		Args:    args,
		Dir:     g.dir,
		Env:     map[string]string{gitTerminalPromptEnvironmentNameConstant: gitTerminalPromptEnvironmentDisableConstant},
		LogName: gitLogNameConstant,
	})
}

// LastTag returns the newest "v*" tag reachable from HEAD.
func (g *GitCLI) LastTag(ctx context.Context) (string, error) {
	result, err := g.run(ctx, gitDescribeSubcommandConstant, "--tags", "--abbrev=0", "--match", "v[0-9]*")
	if err != nil {
		var failed *toolchain.CommandFailedError
		if errors.As(err, &failed) {
			// describe exits non-zero when no tag matches.
			return "", nil
		}
		return "", fmt.Errorf("failed to read last release tag: %w", err)
	}
	return strings.TrimSpace(result.Stdout), nil
}

// Messages returns the commit messages after since, each followed by its hash
// and committer date fields.
func (g *GitCLI) Messages(ctx context.Context, since string) ([]string, error) {
	revision := "HEAD"
	if since != "" {
		revision = since + "..HEAD"
	}
	result, err := g.run(ctx, gitLogSubcommandConstant, commitLogFormatConstant, revision)
	if err != nil {
		return nil, fmt.Errorf("failed to read commits since %q: %w", since, err)
	}

	var messages []string
	for _, chunk := range strings.Split(result.Stdout, commitSeparatorConstant) {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			messages = append(messages, chunk)
		}
	}
	return messages, nil
}

// Commit stages files and commits them. Nothing is committed when none of
// the files changed.
func (g *GitCLI) Commit(ctx context.Context, message string, files []string) error {
	if len(files) == 0 {
		return nil
	}

	status, err := g.run(ctx, append([]string{gitStatusSubcommandConstant, gitPorcelainFlagConstant, gitPathSeparatorConstant}, files...)...)
	if err != nil {
		return fmt.Errorf("failed to read working tree status: %w", err)
	}
	if strings.TrimSpace(status.Stdout) == "" {
		return nil
	}

	if _, err := g.run(ctx, append([]string{gitAddSubcommandConstant, gitPathSeparatorConstant}, files...)...); err != nil {
		return fmt.Errorf("failed to stage release assets: %w", err)
	}
	if _, err := g.run(ctx, gitCommitSubcommandConstant, gitMessageFlagConstant, message); err != nil {
		return fmt.Errorf("failed to commit release assets: %w", err)
	}
	return nil
}

// Tag creates an annotated tag on HEAD.
func (g *GitCLI) Tag(ctx context.Context, tag, message string) error {
	if message == "" {
		message = fmt.Sprintf("Release %s", tag)
	}
	if _, err := g.run(ctx, gitTagSubcommandConstant, gitTagAnnotatedFlagConstant, tag, gitMessageFlagConstant, message); err != nil {
		return fmt.Errorf("failed to create tag %q: %w", tag, err)
	}
	return nil
}

// Push pushes HEAD to branch and then the tag.
func (g *GitCLI) Push(ctx context.Context, remote, branch, tag string) error {
	if _, err := g.run(ctx, gitPushSubcommandConstant, remote, "HEAD:refs/heads/"+branch); err != nil {
		return fmt.Errorf("failed to push %s to %s: %w", branch, remote, err)
	}
	if tag == "" {
		return nil
	}
	if _, err := g.run(ctx, gitPushSubcommandConstant, remote, "refs/tags/"+tag); err != nil {
		return fmt.Errorf("failed to push tag %q to %s: %w", tag, remote, err)
	}
	return nil
}
