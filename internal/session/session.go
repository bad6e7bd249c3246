// Package session holds per-pull-request refinement state: the staged
// proposal awaiting approval and the append-only history used for revert.
package session

import (
	"context"
	"time"
)

// ApprovalState tracks where a session sits in the approval loop.
type ApprovalState string

const (
	StateNone             ApprovalState = "none"
	StateAwaitingApproval ApprovalState = "awaiting_approval"
	StateApplied          ApprovalState = "applied"
	StateDiscarded        ApprovalState = "discarded"
)

// PendingChange is a generated but not-yet-committed content proposal.
// At most one exists per session; a newer proposal replaces it.
type PendingChange struct {
	FilePath    string    `json:"file_path"`
	NewContent  string    `json:"new_content"`
	Instruction string    `json:"instruction"`
	ProposedAt  time.Time `json:"proposed_at"`
}

// HistoryEntry records one applied change. Entries are immutable once
// appended; a revert appends an inverse entry instead of deleting.
type HistoryEntry struct {
	FilePath     string    `json:"file_path"`
	PriorContent string    `json:"prior_content"`
	NewContent   string    `json:"new_content"`
	CommitRef    string    `json:"commit_ref"`
	Reverted     bool      `json:"reverted"` // true when this entry itself is a reversal
	AppliedAt    time.Time `json:"applied_at"`
}

// Session is the mutable state scoped to one pull request. It is created
// on the first recognized command and never explicitly destroyed; it
// simply goes inert once the pull request closes.
type Session struct {
	PullRequestID string         `json:"pull_request_id"`
	PendingChange *PendingChange `json:"pending_change,omitempty"`
	History       []HistoryEntry `json:"history"`
	ApprovalState ApprovalState  `json:"approval_state"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// NewSession returns an empty session for a pull request.
func NewSession(pullRequestID string) *Session {
	return &Session{
		PullRequestID: pullRequestID,
		ApprovalState: StateNone,
	}
}

// LastHistory returns the most recent history entry, or nil.
func (s *Session) LastHistory() *HistoryEntry {
	if len(s.History) == 0 {
		return nil
	}
	return &s.History[len(s.History)-1]
}

// Store persists sessions keyed by pull-request identifier.
//
// Get creates an empty session when none exists. Mutate runs fn under a
// per-pull-request lock with read-modify-write semantics: concurrent
// comments on the same pull request serialize, different pull requests
// proceed independently. The session is persisted only when fn returns
// nil; on error the stored record is left untouched.
type Store interface {
	Get(ctx context.Context, pullRequestID string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	AppendHistory(ctx context.Context, pullRequestID string, entry HistoryEntry) error
	Mutate(ctx context.Context, pullRequestID string, fn func(*Session) error) error
}
