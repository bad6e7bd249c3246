// Package syncer implements the merge-triggered documentation sync: a
// merged pull request's diff is classified for significance and, when it
// matters, the affected documentation files are regenerated on a fresh
// branch and opened as a DocSync pull request.
package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/applier"
	"github.com/docsync/internal/classify"
	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/notify"
)

// Syncer runs one documentation sync end to end.
type Syncer struct {
	host       hosting.Host
	generator  ai.Generator
	classifier *classify.Classifier
	notifier   *notify.Notifier
	files      []string
	label      string
}

// Option adjusts a Syncer.
type Option func(*Syncer)

// WithFiles overrides the documentation files the sync flow maintains.
func WithFiles(files []string) Option {
	return func(s *Syncer) {
		if len(files) > 0 {
			s.files = files
		}
	}
}

// WithNotifier installs the status-message channel.
func WithNotifier(n *notify.Notifier) Option {
	return func(s *Syncer) { s.notifier = n }
}

// WithLabel overrides the label stamped on created pull requests.
func WithLabel(label string) Option {
	return func(s *Syncer) {
		if label != "" {
			s.label = label
		}
	}
}

// New creates a Syncer. The generator should be wrapped with retry
// (ai.WithRetry); no human is watching a sync run.
func New(host hosting.Host, generator ai.Generator, classifier *classify.Classifier, opts ...Option) *Syncer {
	s := &Syncer{
		host:       host,
		generator:  generator,
		classifier: classifier,
		files:      append([]string(nil), applier.DefaultAllowList...),
		label:      "docsync",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run syncs documentation for one merged pull request. It returns nil
// without error when the change is not significant or produces no
// documentation edits.
func (s *Syncer) Run(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error) {
	runID := uuid.NewString()
	logger := log.With().Str("run_id", runID).Str("pr", prID).Logger()

	info, err := s.host.GetPullRequestInfo(ctx, prID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up merged pull request: %w", err)
	}

	diff := diffSummary
	if diff == "" {
		diff, err = s.host.GetPullRequestDiff(ctx, prID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch diff: %w", err)
		}
	}

	verdict, err := s.classifier.Classify(ctx, diff)
	if err != nil {
		return nil, err
	}
	if !verdict.Significant {
		logger.Info().Str("reason", verdict.Reason).Msg("merge does not need a documentation update")
		return nil, nil
	}
	logger.Info().Str("reason", verdict.Reason).Msg("merge classified as significant")

	repo, number := splitPRID(prID)
	branch := fmt.Sprintf("docsync/sync-%s", runID[:8])
	if err := s.host.CreateBranch(ctx, repo, branch, info.TargetBranch); err != nil {
		return nil, fmt.Errorf("failed to create sync branch: %w", err)
	}

	updated, err := s.regenerate(ctx, prID, branch, diff, verdict)
	if err != nil {
		return nil, err
	}
	if len(updated) == 0 {
		logger.Info().Msg("generator produced no documentation changes")
		return nil, nil
	}

	ref, err := s.host.CreatePullRequest(ctx, repo, hosting.NewPullRequest{
		Title:      fmt.Sprintf("docs: sync documentation for #%s", number),
		Body:       syncBody(prID, info, verdict, updated),
		HeadBranch: branch,
		BaseBranch: info.TargetBranch,
		Labels:     []string{s.label},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open documentation pull request: %w", err)
	}

	logger.Info().Str("docs_pr", ref.ID).Msg("documentation pull request opened")
	s.notifier.Notify(ctx, fmt.Sprintf("📚 DocSync opened %s for %s (%s)", ref.WebURL, prID, verdict.Reason))
	return ref, nil
}

// regenerate rewrites each maintained file against the merged diff and
// commits those that actually changed to the sync branch.
func (s *Syncer) regenerate(ctx context.Context, prID, branch, diff string, verdict classify.Verdict) ([]string, error) {
	targets := s.files
	if len(verdict.Files) > 0 {
		targets = intersect(s.files, verdict.Files)
		if len(targets) == 0 {
			targets = s.files
		}
	}

	var updated []string
	for _, path := range targets {
		current, err := s.host.GetFileContent(ctx, prID, path, branch)
		if err != nil {
			// A maintained file may simply not exist yet in this repo.
			log.Debug().Err(err).Str("file", path).Msg("skipping unreadable documentation file")
			continue
		}

		content, err := s.generator.Generate(ctx, ai.Request{
			Instruction:    "Update this documentation so it accurately reflects the merged code changes. Keep unrelated sections untouched.",
			Target:         verdict.Reason,
			FilePath:       path,
			CurrentContent: current,
			Diff:           diff,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to regenerate %s: %w", path, err)
		}
		if strings.TrimSpace(content) == strings.TrimSpace(current) {
			continue
		}

		if _, err := s.host.CommitFile(ctx, prID, path, content, branch,
			fmt.Sprintf("docs: update %s after merge", path)); err != nil {
			return nil, fmt.Errorf("failed to commit %s: %w", path, err)
		}
		updated = append(updated, path)
	}
	return updated, nil
}

func syncBody(prID string, info *hosting.PullRequestInfo, verdict classify.Verdict, updated []string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Automated documentation update for `%s`", prID))
	if info.Title != "" {
		sb.WriteString(fmt.Sprintf(" (%s)", info.Title))
	}
	sb.WriteString(".\n\n")
	sb.WriteString("**Why**: " + verdict.Reason + "\n\n**Updated files**:\n")
	for _, f := range updated {
		sb.WriteString("- `" + f + "`\n")
	}
	sb.WriteString("\nReview the changes and use `@docbot` commands on this pull request to refine them.\n")
	return sb.String()
}

// splitPRID separates "owner/repo/number" into repository and number.
func splitPRID(prID string) (repo, number string) {
	idx := strings.LastIndex(prID, "/")
	if idx < 0 {
		return prID, ""
	}
	return prID[:idx], prID[idx+1:]
}

func intersect(a, b []string) []string {
	set := make(map[string]struct{}, len(b))
	for _, x := range b {
		set[x] = struct{}{}
	}
	var out []string
	for _, x := range a {
		if _, ok := set[x]; ok {
			out = append(out, x)
		}
	}
	return out
}
