package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, project_id, model, quality, status, cost_credits, finished_at, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	var job domain.Job
	if err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.Model,
		&job.Quality,
		&job.Status,
		&job.CostCredits,
		&job.FinishedAt,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// NextQueuedID returns the oldest queued job id. SKIP LOCKED steers
// concurrently polling workers onto different rows; the conditional
// MarkRunning transition still decides the winner for any stale read.
func (r *JobRepositoryPG) NextQueuedID(ctx context.Context) (string, error) {
	query := `
SELECT id
FROM jobs
WHERE status = 'queued'
ORDER BY created_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED;
`
	var id string
	if err := r.pool.QueryRow(ctx, query).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", domain.ErrNotFound
		}
		return "", err
	}
	return id, nil
}

// MarkRunning transitions queued -> running. The status guard makes redelivery
// of an already-claimed job a no-op.
func (r *JobRepositoryPG) MarkRunning(ctx context.Context, jobID string) (bool, error) {
	query := `
UPDATE jobs
SET status = 'running', updated_at = NOW()
WHERE id = $1 AND status = 'queued';
`
	tag, err := r.pool.Exec(ctx, query, jobID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MarkSucceeded finalizes a successful job with its cost and finish time.
func (r *JobRepositoryPG) MarkSucceeded(ctx context.Context, jobID string, costCredits int, finishedAt time.Time) error {
	query := `
UPDATE jobs
SET status = 'succeeded', cost_credits = $2, finished_at = $3, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, costCredits, finishedAt)
	return err
}

// MarkFailed finalizes a failed job.
func (r *JobRepositoryPG) MarkFailed(ctx context.Context, jobID string, finishedAt time.Time) error {
	query := `
UPDATE jobs
SET status = 'failed', finished_at = $2, updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, finishedAt)
	return err
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
