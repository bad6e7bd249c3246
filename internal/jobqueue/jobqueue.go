// Package jobqueue provides a River-based job queue for documentation
// sync runs. The doc_sync queue runs with a single worker so syncs never
// overlap; a second merge landing mid-run waits its turn.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/docsync/internal/hosting"
)

// QueueDocSync is the serialized queue for documentation sync jobs.
const QueueDocSync = "doc_sync"

// JobTimeout bounds one sync run; a stuck LLM call must not wedge the
// queue forever.
const JobTimeout = 10 * time.Minute

// Runner executes one documentation sync. *syncer.Syncer implements it.
type Runner interface {
	Run(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error)
}

// SyncJobArgs are the arguments for one documentation sync job.
type SyncJobArgs struct {
	PRID        string `json:"pr_id"`
	DiffSummary string `json:"diff_summary"`
}

// Kind returns the job kind for River.
func (SyncJobArgs) Kind() string { return "doc_sync" }

// InsertOpts routes sync jobs onto the serialized queue with a small
// retry budget; a sync that fails three times needs a human.
func (SyncJobArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       QueueDocSync,
		MaxAttempts: 3,
	}
}

// SyncWorker runs documentation sync jobs.
type SyncWorker struct {
	river.WorkerDefaults[SyncJobArgs]
	runner Runner
}

// Timeout bounds a single job execution.
func (w *SyncWorker) Timeout(*river.Job[SyncJobArgs]) time.Duration {
	return JobTimeout
}

// Work executes one sync run.
func (w *SyncWorker) Work(ctx context.Context, job *river.Job[SyncJobArgs]) error {
	log.Info().
		Str("pr", job.Args.PRID).
		Int("attempt", job.Attempt).
		Msg("starting documentation sync job")

	ref, err := w.runner.Run(ctx, job.Args.PRID, job.Args.DiffSummary)
	if err != nil {
		return fmt.Errorf("sync run failed: %w", err)
	}
	if ref != nil {
		log.Info().Str("pr", job.Args.PRID).Str("docs_pr", ref.ID).Msg("documentation sync job finished")
	}
	return nil
}

// JobQueue manages the River client and workers.
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewJobQueue creates a job queue backed by the given pool.
func NewJobQueue(pool *pgxpool.Pool, runner Runner) (*JobQueue, error) {
	workers := river.NewWorkers()
	river.AddWorker(workers, &SyncWorker{runner: runner})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			QueueDocSync: {MaxWorkers: 1},
		},
		Workers: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool}, nil
}

// Start starts the job queue workers.
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers.
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}

// EnqueueSync queues a documentation sync for a merged pull request.
func (jq *JobQueue) EnqueueSync(ctx context.Context, prID, diffSummary string) error {
	_, err := jq.client.Insert(ctx, SyncJobArgs{PRID: prID, DiffSummary: diffSummary}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue sync job: %w", err)
	}
	return nil
}

// Run satisfies the coordinator's SyncRunner by enqueueing; the created
// pull request reference is not known at enqueue time.
func (jq *JobQueue) Run(ctx context.Context, prID, diffSummary string) (*hosting.PullRequestRef, error) {
	if err := jq.EnqueueSync(ctx, prID, diffSummary); err != nil {
		return nil, err
	}
	return nil, nil
}
