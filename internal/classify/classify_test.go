package classify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
	called   bool
}

func (s *stubCompleter) Complete(context.Context, string) (string, error) {
	s.called = true
	return s.response, s.err
}

const codeDiff = `diff --git a/cmd/serve.go b/cmd/serve.go
--- a/cmd/serve.go
+++ b/cmd/serve.go
+func ServeCommand() *cli.Command {
+	return &cli.Command{Name: "serve"}
+}
+func init() {}
-func old() {}
-func older() {}
`

func TestEmptyDiffNotSignificant(t *testing.T) {
	model := &stubCompleter{}
	v, err := New(model).Classify(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, v.Significant)
	assert.False(t, model.called, "empty diffs never reach the model")
}

func TestDocsOnlyDiffNotSignificant(t *testing.T) {
	diff := "diff --git a/README.md b/README.md\n--- a/README.md\n+++ b/README.md\n+new line\n+another\n+more\n+again\n+fifth\n"
	model := &stubCompleter{}
	v, err := New(model).Classify(context.Background(), diff)
	require.NoError(t, err)
	assert.False(t, v.Significant)
	assert.Equal(t, "documentation-only change", v.Reason)
	assert.False(t, model.called)
}

func TestTinyDiffNotSignificant(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n--- a/main.go\n+++ b/main.go\n+one line\n"
	model := &stubCompleter{}
	v, err := New(model).Classify(context.Background(), diff)
	require.NoError(t, err)
	assert.False(t, v.Significant)
	assert.False(t, model.called)
}

func TestModelVerdictParsed(t *testing.T) {
	model := &stubCompleter{response: `{"significant": true, "reason": "new CLI command", "files": ["README.md"]}`}
	v, err := New(model).Classify(context.Background(), codeDiff)
	require.NoError(t, err)
	assert.True(t, model.called)
	assert.True(t, v.Significant)
	assert.Equal(t, "new CLI command", v.Reason)
	assert.Equal(t, []string{"README.md"}, v.Files)
}

func TestFencedVerdictParsed(t *testing.T) {
	model := &stubCompleter{response: "```json\n{\"significant\": false, \"reason\": \"refactor\"}\n```"}
	v, err := New(model).Classify(context.Background(), codeDiff)
	require.NoError(t, err)
	assert.False(t, v.Significant)
}

func TestBrokenVerdictRepaired(t *testing.T) {
	// Trailing comma and single quotes, the usual LLM JSON damage.
	model := &stubCompleter{response: `{'significant': true, 'reason': 'api change',}`}
	v, err := New(model).Classify(context.Background(), codeDiff)
	require.NoError(t, err)
	assert.True(t, v.Significant)
}

func TestUnparseableVerdictFailsOpen(t *testing.T) {
	model := &stubCompleter{response: "I think this is probably significant"}
	v, err := New(model).Classify(context.Background(), codeDiff)
	require.NoError(t, err)
	assert.True(t, v.Significant, "garbage verdicts must not drop real changes")
}

func TestModelErrorPropagates(t *testing.T) {
	model := &stubCompleter{err: errors.New("rate limited")}
	_, err := New(model).Classify(context.Background(), codeDiff)
	assert.Error(t, err)
}

func TestNilModelAssumesSignificant(t *testing.T) {
	v, err := New(nil).Classify(context.Background(), codeDiff)
	require.NoError(t, err)
	assert.True(t, v.Significant)
}

func TestChangedFiles(t *testing.T) {
	diff := "diff --git a/main.go b/main.go\n+x\ndiff --git a/docs/guide.md b/docs/guide.md\n+y\n"
	assert.Equal(t, []string{"main.go", "docs/guide.md"}, ChangedFiles(diff))
}
