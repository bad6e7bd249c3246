package syncer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/classify"
	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/hosting/hostingtest"
)

type stubGenerator struct {
	content string
	err     error
	calls   int
}

func (g *stubGenerator) Generate(context.Context, ai.Request) (string, error) {
	g.calls++
	return g.content, g.err
}

func (g *stubGenerator) Configure(map[string]interface{}) error { return nil }
func (g *stubGenerator) Name() string                           { return "stub" }

const mergedPR = "owner/repo/7"

const mergedDiff = `diff --git a/cmd/serve.go b/cmd/serve.go
--- a/cmd/serve.go
+++ b/cmd/serve.go
+func ServeCommand() {}
+func a() {}
+func b() {}
-func c() {}
-func d() {}
`

func newHost() *hostingtest.FakeHost {
	host := hostingtest.NewFakeHost()
	host.Infos[mergedPR] = &hosting.PullRequestInfo{
		ID:           mergedPR,
		Title:        "feat: new serve command",
		State:        "merged",
		SourceBranch: "feature/serve",
		TargetBranch: "main",
	}
	host.Files["README.md"] = "# Project\n\nOld usage.\n"
	host.Files["CLAUDE.md"] = "# Agent notes\n"
	host.Diffs[mergedPR] = mergedDiff
	return host
}

func TestRunOpensDocumentationPullRequest(t *testing.T) {
	host := newHost()
	gen := &stubGenerator{content: "# Project\n\nNew usage with serve command.\n"}
	s := New(host, gen, classify.New(nil))

	ref, err := s.Run(context.Background(), mergedPR, "")
	require.NoError(t, err)
	require.NotNil(t, ref)

	require.Len(t, host.Branches, 1)
	assert.True(t, strings.HasPrefix(host.Branches[0], "docsync/sync-"))

	require.Len(t, host.Created, 1)
	created := host.Created[0]
	assert.Equal(t, "docs: sync documentation for #7", created.Title)
	assert.Equal(t, host.Branches[0], created.HeadBranch)
	assert.Equal(t, "main", created.BaseBranch)
	assert.Contains(t, created.Labels, "docsync")

	require.NotEmpty(t, host.Commits)
	for _, c := range host.Commits {
		assert.Equal(t, host.Branches[0], c.Branch)
	}
}

func TestRunSkipsInsignificantMerge(t *testing.T) {
	host := newHost()
	host.Diffs[mergedPR] = "diff --git a/main.go b/main.go\n+tweak\n"
	gen := &stubGenerator{content: "irrelevant"}
	s := New(host, gen, classify.New(nil))

	ref, err := s.Run(context.Background(), mergedPR, "")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Empty(t, host.Branches)
	assert.Empty(t, host.Created)
	assert.Equal(t, 0, gen.calls)
}

func TestRunSkipsWhenNothingChanged(t *testing.T) {
	host := newHost()
	// Generator echoes the current content back for every file.
	gen := &stubGenerator{content: "# Project\n\nOld usage.\n"}
	s := New(host, gen, classify.New(nil), WithFiles([]string{"README.md"}))

	ref, err := s.Run(context.Background(), mergedPR, "")
	require.NoError(t, err)
	assert.Nil(t, ref)
	assert.Empty(t, host.Commits)
	assert.Empty(t, host.Created)
}

func TestRunOnlyTouchesMaintainedFiles(t *testing.T) {
	host := newHost()
	gen := &stubGenerator{content: "updated content"}
	s := New(host, gen, classify.New(nil), WithFiles([]string{"README.md"}))

	_, err := s.Run(context.Background(), mergedPR, "")
	require.NoError(t, err)
	require.Len(t, host.Commits, 1)
	assert.Equal(t, "README.md", host.Commits[0].Path)
}

func TestRunGeneratorFailureAborts(t *testing.T) {
	host := newHost()
	gen := &stubGenerator{err: errors.New("model unavailable")}
	s := New(host, gen, classify.New(nil))

	_, err := s.Run(context.Background(), mergedPR, "")
	assert.Error(t, err)
	assert.Empty(t, host.Created)
}

func TestSplitPRID(t *testing.T) {
	repo, number := splitPRID("owner/repo/42")
	assert.Equal(t, "owner/repo", repo)
	assert.Equal(t, "42", number)

	repo, number = splitPRID("group/sub/repo/9")
	assert.Equal(t, "group/sub/repo", repo)
	assert.Equal(t, "9", number)
}
