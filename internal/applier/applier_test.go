package applier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/hosting/hostingtest"
)

func newPR(host *hostingtest.FakeHost, prID, branch string) {
	host.Infos[prID] = &hosting.PullRequestInfo{
		ID:           prID,
		SourceBranch: branch,
		TargetBranch: "main",
	}
}

func TestApplyCommitsToSourceBranch(t *testing.T) {
	host := hostingtest.NewFakeHost()
	newPR(host, "o/r/1", "docsync/update-readme")

	a := New(host)
	ref, err := a.Apply(context.Background(), "o/r/1", "README.md", "# New", "docs: refine README")
	require.NoError(t, err)
	assert.NotEmpty(t, ref.SHA)

	require.Len(t, host.Commits, 1)
	assert.Equal(t, "docsync/update-readme", host.Commits[0].Branch)
	assert.Equal(t, "README.md", host.Commits[0].Path)
	assert.Equal(t, "# New", host.Files["README.md"])
}

func TestApplyRejectsForbiddenFile(t *testing.T) {
	host := hostingtest.NewFakeHost()
	newPR(host, "o/r/2", "main")

	a := New(host)
	_, err := a.Apply(context.Background(), "o/r/2", "config.toml", "x", "msg")
	var forbidden *ForbiddenFileError
	require.ErrorAs(t, err, &forbidden)
	assert.Equal(t, "config.toml", forbidden.Path)
	assert.Empty(t, host.Commits)
}

func TestApplyAllowListIsCaseSensitive(t *testing.T) {
	host := hostingtest.NewFakeHost()
	newPR(host, "o/r/3", "main")

	a := New(host)
	_, err := a.Apply(context.Background(), "o/r/3", "readme.md", "x", "msg")
	var forbidden *ForbiddenFileError
	assert.ErrorAs(t, err, &forbidden)
}

func TestApplyWrapsHostFailure(t *testing.T) {
	host := hostingtest.NewFakeHost()
	newPR(host, "o/r/4", "main")
	host.CommitErr = errors.New("503 service unavailable")

	a := New(host)
	_, err := a.Apply(context.Background(), "o/r/4", "README.md", "x", "msg")
	var applyErr *ApplyError
	require.ErrorAs(t, err, &applyErr)
	assert.Empty(t, host.Commits)
}

func TestWithAllowList(t *testing.T) {
	host := hostingtest.NewFakeHost()
	newPR(host, "o/r/5", "main")

	a := New(host).WithAllowList([]string{"docs/guide.md"})
	assert.True(t, a.Allowed("docs/guide.md"))
	assert.False(t, a.Allowed("README.md"))
}
