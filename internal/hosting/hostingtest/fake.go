// Package hostingtest provides an in-memory Host for exercising the
// coordinator and syncer without a network.
package hostingtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/docsync/internal/hosting"
)

// FakeHost implements hosting.Host against in-memory maps. Zero value is
// not usable; call NewFakeHost.
type FakeHost struct {
	mu sync.Mutex

	Infos    map[string]*hosting.PullRequestInfo // prID -> info
	Files    map[string]string                   // path -> content (branch-agnostic)
	Diffs    map[string]string                   // prID -> diff
	Comments []string
	Commits  []CommittedFile
	Branches []string
	Created  []hosting.NewPullRequest

	// Error hooks let tests force failures at specific operations.
	CommitErr  error
	CommentErr error
	InfoErr    error
}

// CommittedFile records one CommitFile call.
type CommittedFile struct {
	PRID    string
	Path    string
	Content string
	Branch  string
	Message string
}

func NewFakeHost() *FakeHost {
	return &FakeHost{
		Infos: make(map[string]*hosting.PullRequestInfo),
		Files: make(map[string]string),
		Diffs: make(map[string]string),
	}
}

func (f *FakeHost) Name() string { return "fake" }

func (f *FakeHost) GetPullRequestInfo(_ context.Context, prID string) (*hosting.PullRequestInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InfoErr != nil {
		return nil, f.InfoErr
	}
	info, ok := f.Infos[prID]
	if !ok {
		return nil, fmt.Errorf("unknown pull request %s", prID)
	}
	return info, nil
}

func (f *FakeHost) GetPullRequestDiff(_ context.Context, prID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Diffs[prID], nil
}

func (f *FakeHost) GetFileContent(_ context.Context, _, path, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.Files[path]
	if !ok {
		return "", fmt.Errorf("file not found: %s", path)
	}
	return content, nil
}

func (f *FakeHost) CommitFile(_ context.Context, prID, path, content, branch, message string) (hosting.CommitRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommitErr != nil {
		return hosting.CommitRef{}, f.CommitErr
	}
	f.Files[path] = content
	f.Commits = append(f.Commits, CommittedFile{PRID: prID, Path: path, Content: content, Branch: branch, Message: message})
	return hosting.CommitRef{SHA: fmt.Sprintf("sha-%d", len(f.Commits))}, nil
}

func (f *FakeHost) PostComment(_ context.Context, _, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CommentErr != nil {
		return f.CommentErr
	}
	f.Comments = append(f.Comments, text)
	return nil
}

func (f *FakeHost) CreateBranch(_ context.Context, _, name, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Branches = append(f.Branches, name)
	return nil
}

func (f *FakeHost) CreatePullRequest(_ context.Context, repo string, pr hosting.NewPullRequest) (*hosting.PullRequestRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, pr)
	n := len(f.Created)
	return &hosting.PullRequestRef{
		ID:     fmt.Sprintf("%s/%d", repo, 1000+n),
		Number: 1000 + n,
		WebURL: fmt.Sprintf("https://example.test/%s/pull/%d", repo, 1000+n),
	}, nil
}

// LastComment returns the most recent reply, or "".
func (f *FakeHost) LastComment() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Comments) == 0 {
		return ""
	}
	return f.Comments[len(f.Comments)-1]
}
