package session

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions in Postgres so state survives between
// separate webhook activations. Per-pull-request serialization rides on
// a row lock: Mutate opens a transaction and takes SELECT ... FOR UPDATE
// on the session row, so two comments on the same pull request queue up
// while different pull requests proceed in parallel.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Get loads the session for a pull request, creating an empty row when
// none exists yet.
func (p *PostgresStore) Get(ctx context.Context, pullRequestID string) (*Session, error) {
	if err := p.ensureRow(ctx, p.pool, pullRequestID); err != nil {
		return nil, err
	}
	return p.loadSession(ctx, p.pool, pullRequestID, "")
}

// querier covers both pool and transaction handles.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (p *PostgresStore) ensureRow(ctx context.Context, q querier, pullRequestID string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO sessions (pull_request_id) VALUES ($1)
		 ON CONFLICT (pull_request_id) DO NOTHING`, pullRequestID)
	if err != nil {
		return fmt.Errorf("failed to ensure session row: %w", err)
	}
	return nil
}

// loadSession reads the session row plus its history. lockClause is
// appended to the row query ("FOR UPDATE" inside Mutate transactions).
func (p *PostgresStore) loadSession(ctx context.Context, q querier, pullRequestID, lockClause string) (*Session, error) {
	s := NewSession(pullRequestID)

	var (
		state       string
		filePath    *string
		content     *string
		instruction *string
		proposedAt  *time.Time
	)
	row := q.QueryRow(ctx,
		`SELECT approval_state, pending_file_path, pending_content,
		        pending_instruction, pending_proposed_at, updated_at
		 FROM sessions WHERE pull_request_id = $1 `+lockClause, pullRequestID)
	if err := row.Scan(&state, &filePath, &content, &instruction, &proposedAt, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	s.ApprovalState = ApprovalState(state)
	if filePath != nil && content != nil {
		pc := PendingChange{FilePath: *filePath, NewContent: *content}
		if instruction != nil {
			pc.Instruction = *instruction
		}
		if proposedAt != nil {
			pc.ProposedAt = *proposedAt
		}
		s.PendingChange = &pc
	}

	rows, err := q.Query(ctx,
		`SELECT file_path, prior_content, new_content, commit_ref, reverted, applied_at
		 FROM session_history WHERE pull_request_id = $1 ORDER BY id`, pullRequestID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session history: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.FilePath, &e.PriorContent, &e.NewContent, &e.CommitRef, &e.Reverted, &e.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		s.History = append(s.History, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history rows: %w", err)
	}

	return s, nil
}

// Save replaces the stored session row. History entries are written only
// through AppendHistory or Mutate, never rewritten here.
func (p *PostgresStore) Save(ctx context.Context, s *Session) error {
	return p.saveRow(ctx, p.pool, s)
}

func (p *PostgresStore) saveRow(ctx context.Context, q querier, s *Session) error {
	var (
		filePath    *string
		content     *string
		instruction *string
		proposedAt  *time.Time
	)
	if pc := s.PendingChange; pc != nil {
		filePath = &pc.FilePath
		content = &pc.NewContent
		instruction = &pc.Instruction
		proposedAt = &pc.ProposedAt
	}

	_, err := q.Exec(ctx,
		`INSERT INTO sessions (pull_request_id, approval_state, pending_file_path,
		                       pending_content, pending_instruction, pending_proposed_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())
		 ON CONFLICT (pull_request_id) DO UPDATE SET
		   approval_state = EXCLUDED.approval_state,
		   pending_file_path = EXCLUDED.pending_file_path,
		   pending_content = EXCLUDED.pending_content,
		   pending_instruction = EXCLUDED.pending_instruction,
		   pending_proposed_at = EXCLUDED.pending_proposed_at,
		   updated_at = now()`,
		s.PullRequestID, string(s.ApprovalState), filePath, content, instruction, proposedAt)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// AppendHistory adds one immutable entry to the session's history.
func (p *PostgresStore) AppendHistory(ctx context.Context, pullRequestID string, entry HistoryEntry) error {
	if err := p.ensureRow(ctx, p.pool, pullRequestID); err != nil {
		return err
	}
	return p.appendHistoryRow(ctx, p.pool, pullRequestID, entry)
}

func (p *PostgresStore) appendHistoryRow(ctx context.Context, q querier, pullRequestID string, entry HistoryEntry) error {
	appliedAt := entry.AppliedAt
	if appliedAt.IsZero() {
		appliedAt = time.Now()
	}
	_, err := q.Exec(ctx,
		`INSERT INTO session_history (pull_request_id, file_path, prior_content,
		                              new_content, commit_ref, reverted, applied_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		pullRequestID, entry.FilePath, entry.PriorContent, entry.NewContent,
		entry.CommitRef, entry.Reverted, appliedAt)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// Mutate serializes read-modify-write per pull request using a row lock.
func (p *PostgresStore) Mutate(ctx context.Context, pullRequestID string, fn func(*Session) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := p.ensureRow(ctx, tx, pullRequestID); err != nil {
		return err
	}

	s, err := p.loadSession(ctx, tx, pullRequestID, "FOR UPDATE")
	if err != nil {
		return err
	}

	before := len(s.History)
	if err := fn(s); err != nil {
		return err
	}

	if err := p.saveRow(ctx, tx, s); err != nil {
		return err
	}
	// New entries appended by fn are persisted individually; existing
	// entries are immutable and never rewritten.
	for _, e := range s.History[before:] {
		if err := p.appendHistoryRow(ctx, tx, pullRequestID, e); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit tx: %w", err)
	}
	return nil
}
