// Package applier commits approved documentation changes to a pull
// request's branch. It is the only component allowed to write through
// the host, and it refuses anything outside the documentation allow-list.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/docsync/internal/hosting"
)

// DefaultAllowList is the fixed set of files the bot may modify.
// Matching is case-sensitive and exact.
var DefaultAllowList = []string{"README.md", "CLAUDE.md"}

// DefaultCommitTimeout bounds the host commit call.
const DefaultCommitTimeout = 30 * time.Second

// ForbiddenFileError is returned when a change targets a file outside
// the allow-list. This check fails closed: unknown paths are forbidden.
type ForbiddenFileError struct {
	Path string
}

func (e *ForbiddenFileError) Error() string {
	return fmt.Sprintf("file %q is not in the documentation allow-list", e.Path)
}

// ApplyError wraps a host-side commit failure. The session must not be
// marked applied when this is returned; no partial state was written.
type ApplyError struct {
	Cause error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply change: %v", e.Cause)
}

func (e *ApplyError) Unwrap() error {
	return e.Cause
}

// Applier performs allow-listed single-commit writes.
type Applier struct {
	host      hosting.Host
	allowList []string
	timeout   time.Duration
}

// New creates an applier with the default allow-list.
func New(host hosting.Host) *Applier {
	return &Applier{
		host:      host,
		allowList: DefaultAllowList,
		timeout:   DefaultCommitTimeout,
	}
}

// WithAllowList overrides the permitted file set.
func (a *Applier) WithAllowList(files []string) *Applier {
	if len(files) > 0 {
		a.allowList = files
	}
	return a
}

// Allowed reports whether filePath may be modified.
func (a *Applier) Allowed(filePath string) bool {
	for _, f := range a.allowList {
		if f == filePath {
			return true
		}
	}
	return false
}

// Apply commits newContent to filePath on the pull request's source
// branch as a single commit.
func (a *Applier) Apply(ctx context.Context, prID, filePath, newContent, message string) (hosting.CommitRef, error) {
	if !a.Allowed(filePath) {
		return hosting.CommitRef{}, &ForbiddenFileError{Path: filePath}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	info, err := a.host.GetPullRequestInfo(ctx, prID)
	if err != nil {
		return hosting.CommitRef{}, &ApplyError{Cause: fmt.Errorf("failed to resolve branch: %w", err)}
	}

	ref, err := a.host.CommitFile(ctx, prID, filePath, newContent, info.SourceBranch, message)
	if err != nil {
		return hosting.CommitRef{}, &ApplyError{Cause: err}
	}

	log.Info().
		Str("pr", prID).
		Str("file", filePath).
		Str("commit", ref.SHA).
		Msg("applied documentation change")
	return ref, nil
}
