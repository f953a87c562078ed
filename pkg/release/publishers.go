package release

import "context"

//go:generate mockgen -destination=../mocks/release_mocks.go -package=mocks github.com/colonise/forge/pkg/release VCS,Registry,Hosting

// VCS reads history from and publishes to version control.
type VCS interface {
	// LastTag returns the most recent release tag, or "" when none exists.
	LastTag(ctx context.Context) (string, error)
	// Messages returns the raw messages of commits after since, newest first.
	Messages(ctx context.Context, since string) ([]string, error)
	Commit(ctx context.Context, message string, files []string) error
	Tag(ctx context.Context, tag, message string) error
	Push(ctx context.Context, remote, branch, tag string) error
}

// Registry packs and publishes the package.
type Registry interface {
	// Pack writes a tarball of dir into destDir and returns its path.
	Pack(ctx context.Context, dir, destDir string) (string, error)
	Publish(ctx context.Context, dir string) error
}

// Asset is a file attached to a hosting release.
type Asset struct {
	Path  string
	Name  string
	Label string
}

// Issue is a new issue on the hosting platform.
type Issue struct {
	Title     string
	Body      string
	Labels    []string
	Assignees []string
}

// Hosting publishes releases and talks to issues on the hosting platform.
type Hosting interface {
	CreateRelease(ctx context.Context, tag, notes string) error
	UploadAsset(ctx context.Context, tag string, asset Asset) error
	IsPullRequest(ctx context.Context, number string) (bool, error)
	Comment(ctx context.Context, number, body string) error
	AddLabels(ctx context.Context, number string, labels []string) error
	// FindIssue returns the number of the open issue titled title, or "".
	FindIssue(ctx context.Context, title string) (string, error)
	OpenIssue(ctx context.Context, issue Issue) (string, error)
}
