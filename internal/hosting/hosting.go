// Package hosting defines the version-control host boundary. docsync
// talks to hosts only through the Host interface so the refinement state
// machine can be exercised against a fake in tests.
package hosting

import "context"

// PullRequestInfo carries the metadata used to confirm a pull request is
// DocSync-originated and to resolve its working branch.
type PullRequestInfo struct {
	ID           string
	Title        string
	State        string
	Labels       []string
	SourceBranch string
	TargetBranch string
	WebURL       string
}

// PullRequestRef identifies a pull request created by the sync flow.
type PullRequestRef struct {
	ID     string
	Number int
	WebURL string
}

// CommitRef identifies one commit produced by CommitFile.
type CommitRef struct {
	SHA    string
	WebURL string
}

// NewPullRequest describes a documentation pull request to open.
type NewPullRequest struct {
	Title      string
	Body       string
	HeadBranch string
	BaseBranch string
	Labels     []string
}

// Host is the version-control hosting API consumed by docsync. Pull
// request identifiers use the "owner/repo/number" form throughout.
type Host interface {
	// GetPullRequestInfo returns title, labels and branches for a pull request.
	GetPullRequestInfo(ctx context.Context, prID string) (*PullRequestInfo, error)

	// GetPullRequestDiff returns the unified diff of the pull request.
	GetPullRequestDiff(ctx context.Context, prID string) (string, error)

	// GetFileContent returns the raw content of a file at a ref.
	GetFileContent(ctx context.Context, prID, path, ref string) (string, error)

	// CommitFile writes content to a path on a branch as a single commit.
	CommitFile(ctx context.Context, prID, path, content, branch, message string) (CommitRef, error)

	// PostComment posts a reply on the pull request's comment thread.
	PostComment(ctx context.Context, prID, text string) error

	// CreateBranch creates a branch from a ref in the pull request's repository.
	CreateBranch(ctx context.Context, repo, name, fromRef string) error

	// CreatePullRequest opens a pull request in the repository.
	CreatePullRequest(ctx context.Context, repo string, pr NewPullRequest) (*PullRequestRef, error)

	// Name returns the provider's name.
	Name() string
}
