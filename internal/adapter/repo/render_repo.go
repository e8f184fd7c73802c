package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// RenderRepositoryPG implements domain.RenderRepository.
type RenderRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewRenderRepository creates a new render repository backed by PostgreSQL.
func NewRenderRepository(pool *pgxpool.Pool) *RenderRepositoryPG {
	return &RenderRepositoryPG{pool: pool}
}

// Create inserts a render row for one output image.
func (r *RenderRepositoryPG) Create(ctx context.Context, render *domain.Render) error {
	query := `
INSERT INTO renders (id, job_id, variant, path)
VALUES ($1, $2, $3, $4);
`
	_, err := r.pool.Exec(ctx, query, render.ID, render.JobID, render.Variant, render.Path)
	return err
}

// DeleteByJobID removes all render rows for a job. Used by compensating
// cleanup when render persistence fails partway.
func (r *RenderRepositoryPG) DeleteByJobID(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM renders WHERE job_id = $1`, jobID)
	return err
}

var _ domain.RenderRepository = (*RenderRepositoryPG)(nil)
