// Package classify decides whether a merged pull request's changes are
// significant enough to warrant a documentation update. Cheap structural
// checks run first; only ambiguous diffs reach the AI.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/rs/zerolog/log"
)

// MinDiffLines is the smallest diff (added plus removed lines) worth
// asking the model about. Below this the change is noise as far as docs
// are concerned.
const MinDiffLines = 5

// Verdict is the classifier's decision for one diff.
type Verdict struct {
	Significant bool     `json:"significant"`
	Reason      string   `json:"reason"`
	Files       []string `json:"files"` // doc files the model thinks need updating
}

// Completer runs one free-form prompt. The langchain generator
// implements it; tests use a stub.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Classifier combines the heuristic pre-filter with an LLM verdict.
type Classifier struct {
	model        Completer
	minDiffLines int
}

// New creates a Classifier. model may be nil, in which case every diff
// that passes the heuristics is treated as significant.
func New(model Completer) *Classifier {
	return &Classifier{model: model, minDiffLines: MinDiffLines}
}

// Classify returns the verdict for a unified diff.
func (c *Classifier) Classify(ctx context.Context, diff string) (Verdict, error) {
	if v, decided := c.prefilter(diff); decided {
		return v, nil
	}
	if c.model == nil {
		return Verdict{Significant: true, Reason: "no classifier model configured"}, nil
	}

	raw, err := c.model.Complete(ctx, buildPrompt(diff))
	if err != nil {
		return Verdict{}, fmt.Errorf("classification failed: %w", err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		// An unparseable verdict must not silently drop a real change.
		log.Warn().Err(err).Msg("unparseable classifier verdict, assuming significant")
		return Verdict{Significant: true, Reason: "classifier output unparseable"}, nil
	}
	return verdict, nil
}

// prefilter handles the cases that need no model: empty diffs, tiny
// diffs, and merges that only touch documentation themselves.
func (c *Classifier) prefilter(diff string) (Verdict, bool) {
	if strings.TrimSpace(diff) == "" {
		return Verdict{Significant: false, Reason: "empty diff"}, true
	}

	files := ChangedFiles(diff)
	if len(files) > 0 && allDocs(files) {
		return Verdict{Significant: false, Reason: "documentation-only change"}, true
	}

	if changedLines(diff) < c.minDiffLines {
		return Verdict{Significant: false, Reason: "diff too small"}, true
	}

	return Verdict{}, false
}

// ChangedFiles extracts the paths touched by a unified diff.
func ChangedFiles(diff string) []string {
	var files []string
	seen := make(map[string]struct{})
	for _, line := range strings.Split(diff, "\n") {
		if !strings.HasPrefix(line, "diff --git ") {
			continue
		}
		// "diff --git a/path b/path"; take the b/ side.
		parts := strings.Fields(line)
		if len(parts) < 4 {
			continue
		}
		path := strings.TrimPrefix(parts[3], "b/")
		if _, dup := seen[path]; dup {
			continue
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}
	return files
}

func allDocs(files []string) bool {
	for _, f := range files {
		lowered := strings.ToLower(f)
		if !strings.HasSuffix(lowered, ".md") && !strings.HasSuffix(lowered, ".rst") && !strings.HasSuffix(lowered, ".txt") {
			return false
		}
	}
	return true
}

func changedLines(diff string) int {
	n := 0
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---") {
			continue
		}
		if strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-") {
			n++
		}
	}
	return n
}

func buildPrompt(diff string) string {
	var sb strings.Builder
	sb.WriteString("You review merged code changes and decide whether the project's user-facing documentation needs an update.\n\n")
	sb.WriteString("Respond with ONLY a JSON object of the form:\n")
	sb.WriteString(`{"significant": true|false, "reason": "<one sentence>", "files": ["README.md"]}` + "\n\n")
	sb.WriteString("A change is significant when it alters installation steps, configuration, public APIs, CLI flags, or documented behavior. Refactors, test-only changes, and internal cleanups are not significant.\n\n")
	sb.WriteString("Diff:\n```diff\n")
	sb.WriteString(diff)
	sb.WriteString("\n```\n")
	return sb.String()
}

// parseVerdict decodes the model's JSON, repairing it when the model
// wrapped it in fences or produced slightly broken JSON.
func parseVerdict(raw string) (Verdict, error) {
	cleaned := stripFences(raw)

	var v Verdict
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		return v, nil
	}

	repaired, err := jsonrepair.JSONRepair(cleaned)
	if err != nil {
		return Verdict{}, fmt.Errorf("verdict is not valid JSON: %w", err)
	}
	if err := json.Unmarshal([]byte(repaired), &v); err != nil {
		return Verdict{}, fmt.Errorf("repaired verdict still invalid: %w", err)
	}
	return v, nil
}

func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.IndexByte(s, '\n'); idx >= 0 {
			s = s[idx+1:]
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
