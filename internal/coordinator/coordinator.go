// Package coordinator drives the per-pull-request refinement state
// machine: sanitize → parse → generate → await approval → apply. All
// errors are converted into posted replies here; nothing propagates
// past this boundary for a single bad comment.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/docsync/internal/ai"
	"github.com/docsync/internal/applier"
	"github.com/docsync/internal/command"
	"github.com/docsync/internal/hosting"
	"github.com/docsync/internal/sanitize"
	"github.com/docsync/internal/session"
)

// DocSync-originated pull requests carry this label, or a title starting
// with the marker prefix, depending on which the host supports.
const (
	DefaultMarkerLabel = "docsync"
	DefaultTitleMarker = "docs:"
)

// ErrNoHistory is returned for revert on a session without applied changes.
var ErrNoHistory = errors.New("no applied changes to revert")

// ContextError marks a command on a pull request the bot does not own.
type ContextError struct {
	PRID string
}

func (e *ContextError) Error() string {
	return fmt.Sprintf("pull request %s is not a DocSync pull request", e.PRID)
}

// GenerationError wraps a failed or timed-out AI call. The session's
// pending change keeps its prior value.
type GenerationError struct {
	Cause error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("content generation failed: %v", e.Cause)
}

func (e *GenerationError) Unwrap() error {
	return e.Cause
}

// SyncRunner handles merge-triggered documentation syncs. The jobqueue
// implementation enqueues and returns no ref; a direct runner executes
// inline and returns the created pull request.
type SyncRunner interface {
	Run(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error)
}

// Coordinator wires the sanitizer, parser, store, generator and applier
// together. Construct with New; all collaborators are injected so tests
// can use fakes.
type Coordinator struct {
	store       session.Store
	host        hosting.Host
	generator   ai.Generator
	applier     *applier.Applier
	syncRunner  SyncRunner
	markerLabel string
	titleMarker string
	defaultFile string
	genTimeout  time.Duration
}

// Option adjusts a Coordinator.
type Option func(*Coordinator)

// WithSyncRunner installs the merge-event handler.
func WithSyncRunner(r SyncRunner) Option {
	return func(c *Coordinator) { c.syncRunner = r }
}

// WithMarkers overrides the DocSync-origin label and title marker.
func WithMarkers(label, titleMarker string) Option {
	return func(c *Coordinator) {
		if label != "" {
			c.markerLabel = label
		}
		if titleMarker != "" {
			c.titleMarker = strings.ToLower(titleMarker)
		}
	}
}

// WithDefaultFile sets the file targeted when a command names none.
func WithDefaultFile(path string) Option {
	return func(c *Coordinator) {
		if path != "" {
			c.defaultFile = path
		}
	}
}

// WithGenerationTimeout bounds the AI call for comment commands.
func WithGenerationTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.genTimeout = d
		}
	}
}

// New creates a Coordinator.
func New(store session.Store, host hosting.Host, generator ai.Generator, app *applier.Applier, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		host:        host,
		generator:   generator,
		applier:     app,
		markerLabel: DefaultMarkerLabel,
		titleMarker: DefaultTitleMarker,
		defaultFile: "README.md",
		genTimeout:  ai.DefaultGenerationTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// HandleCommentEvent processes one inbound comment. The returned string
// is the reply posted to the thread; it is empty only for non-command
// comments, which are ignored without a reply.
func (c *Coordinator) HandleCommentEvent(ctx context.Context, prID, commentText, author string) (string, error) {
	sanitized, err := sanitize.Sanitize(commentText)
	if err != nil {
		var rej *sanitize.RejectionError
		if errors.As(err, &rej) {
			// Non-commands that merely trip a blocked pattern are still
			// ignored silently; only bot-addressed text earns a reply.
			if !looksLikeCommand(commentText) {
				return "", nil
			}
			reply := rejectionReply(rej)
			c.post(ctx, prID, reply)
			return reply, nil
		}
		return "", err
	}

	cmd, err := command.Parse(sanitized)
	if err != nil {
		if errors.Is(err, command.ErrNotACommand) {
			return "", nil
		}
		return "", err
	}

	log.Info().
		Str("pr", prID).
		Str("author", author).
		Str("action", cmd.Action.String()).
		Msg("processing bot command")

	var reply string
	mutErr := c.store.Mutate(ctx, prID, func(s *session.Session) error {
		switch cmd.Action {
		case command.ActionApprove:
			reply = c.handleApprove(ctx, s)
		case command.ActionReject:
			reply = c.handleReject(s)
		case command.ActionRevert:
			reply = c.handleRevert(ctx, s)
		default:
			reply = c.handleProposal(ctx, s, cmd)
		}
		return nil
	})
	if mutErr != nil {
		return "", fmt.Errorf("failed to update session: %w", mutErr)
	}

	c.post(ctx, prID, reply)
	return reply, nil
}

// HandleMergeEvent forwards a merged pull request to the sync flow.
func (c *Coordinator) HandleMergeEvent(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error) {
	if c.syncRunner == nil {
		return nil, nil
	}
	return c.syncRunner.Run(ctx, prID, diffSummary)
}

// handleProposal covers every generative command: validate context,
// invoke the generator, stage the result as the pending change.
func (c *Coordinator) handleProposal(ctx context.Context, s *session.Session, cmd command.Command) string {
	info, err := c.host.GetPullRequestInfo(ctx, s.PullRequestID)
	if err != nil {
		return errorReply(fmt.Errorf("failed to look up pull request: %w", err))
	}
	if !c.isDocSyncOriginated(info) {
		return contextReply(&ContextError{PRID: s.PullRequestID})
	}

	filePath := c.defaultFile
	current, err := c.host.GetFileContent(ctx, s.PullRequestID, filePath, info.SourceBranch)
	if err != nil {
		return errorReply(fmt.Errorf("failed to read %s: %w", filePath, err))
	}

	diff, err := c.host.GetPullRequestDiff(ctx, s.PullRequestID)
	if err != nil {
		// Diff is context, not a requirement; generate without it.
		log.Warn().Err(err).Str("pr", s.PullRequestID).Msg("proceeding without pull request diff")
		diff = ""
	}

	genCtx, cancel := context.WithTimeout(ctx, c.genTimeout)
	defer cancel()
	content, err := c.generator.Generate(genCtx, ai.Request{
		Instruction:    cmd.RawText,
		Target:         cmd.Target,
		FilePath:       filePath,
		CurrentContent: current,
		Diff:           diff,
	})
	if err != nil {
		// Pending change keeps its prior value; the human can retry.
		return generationReply(&GenerationError{Cause: err})
	}

	replaced := s.PendingChange != nil
	s.PendingChange = &session.PendingChange{
		FilePath:    filePath,
		NewContent:  content,
		Instruction: cmd.RawText,
		ProposedAt:  time.Now(),
	}
	s.ApprovalState = session.StateAwaitingApproval

	return proposalReply(cmd, filePath, current, content, replaced)
}

func (c *Coordinator) handleApprove(ctx context.Context, s *session.Session) string {
	if s.PendingChange == nil {
		return nothingPendingReply()
	}

	pc := s.PendingChange

	// Capture the pre-approval content first: the revert round-trip must
	// restore it byte for byte, and after the commit it is gone.
	prior, err := c.priorContent(ctx, s, pc.FilePath)
	if err != nil {
		return applyFailureReply(&applier.ApplyError{Cause: fmt.Errorf("failed to read current content: %w", err)})
	}

	ref, err := c.applier.Apply(ctx, s.PullRequestID, pc.FilePath, pc.NewContent,
		fmt.Sprintf("docs: apply approved update to %s", pc.FilePath))
	if err != nil {
		// Session stays AwaitingApproval so the human can retry approve.
		return applyFailureReply(err)
	}

	s.History = append(s.History, session.HistoryEntry{
		FilePath:     pc.FilePath,
		PriorContent: prior,
		NewContent:   pc.NewContent,
		CommitRef:    ref.SHA,
		AppliedAt:    time.Now(),
	})
	s.PendingChange = nil
	s.ApprovalState = session.StateApplied

	return appliedReply(pc.FilePath, ref)
}

// priorContent resolves what the file contains right now, before the
// approved commit lands: the latest history entry for the file, or a
// host read from the source branch when the bot has not touched it yet.
func (c *Coordinator) priorContent(ctx context.Context, s *session.Session, filePath string) (string, error) {
	for i := len(s.History) - 1; i >= 0; i-- {
		if s.History[i].FilePath == filePath {
			return s.History[i].NewContent, nil
		}
	}
	info, err := c.host.GetPullRequestInfo(ctx, s.PullRequestID)
	if err != nil {
		return "", err
	}
	return c.host.GetFileContent(ctx, s.PullRequestID, filePath, info.SourceBranch)
}

func (c *Coordinator) handleReject(s *session.Session) string {
	if s.PendingChange == nil {
		return nothingPendingReply()
	}
	filePath := s.PendingChange.FilePath
	s.PendingChange = nil
	s.ApprovalState = session.StateDiscarded
	return rejectedReply(filePath)
}

func (c *Coordinator) handleRevert(ctx context.Context, s *session.Session) string {
	last := s.LastHistory()
	if last == nil {
		return noHistoryReply()
	}

	ref, err := c.applier.Apply(ctx, s.PullRequestID, last.FilePath, last.PriorContent,
		fmt.Sprintf("docs: revert last change to %s", last.FilePath))
	if err != nil {
		return applyFailureReply(err)
	}

	s.History = append(s.History, session.HistoryEntry{
		FilePath:     last.FilePath,
		PriorContent: last.NewContent,
		NewContent:   last.PriorContent,
		CommitRef:    ref.SHA,
		Reverted:     true,
		AppliedAt:    time.Now(),
	})
	// A revert resolves whatever was pending alongside it.
	s.PendingChange = nil
	s.ApprovalState = session.StateApplied

	return revertedReply(last.FilePath, ref)
}

func (c *Coordinator) isDocSyncOriginated(info *hosting.PullRequestInfo) bool {
	for _, l := range info.Labels {
		if strings.EqualFold(l, c.markerLabel) {
			return true
		}
	}
	return strings.HasPrefix(strings.ToLower(info.Title), c.titleMarker)
}

// post sends the reply; a failed reply is logged but never escalated,
// the command outcome already happened.
func (c *Coordinator) post(ctx context.Context, prID, reply string) {
	if reply == "" {
		return
	}
	if err := c.host.PostComment(ctx, prID, reply); err != nil {
		log.Error().Err(err).Str("pr", prID).Msg("failed to post reply")
	}
}

// looksLikeCommand checks for either bot prefix in raw (pre-sanitizer)
// text, so blocked-pattern rejections only reply when the bot was
// actually addressed.
func looksLikeCommand(raw string) bool {
	lowered := strings.ToLower(raw)
	return strings.Contains(lowered, "@docbot") ||
		strings.Contains(lowered, "docsync:") ||
		strings.Contains(lowered, "@docsync")
}
