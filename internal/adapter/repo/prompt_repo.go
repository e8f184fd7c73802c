package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// PromptRepositoryPG implements domain.PromptRepository.
type PromptRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewPromptRepository creates a new prompt repository backed by PostgreSQL.
func NewPromptRepository(pool *pgxpool.Pool) *PromptRepositoryPG {
	return &PromptRepositoryPG{pool: pool}
}

// GetByProjectID fetches the prompt attached to a project.
func (r *PromptRepositoryPG) GetByProjectID(ctx context.Context, projectID string) (*domain.Prompt, error) {
	query := `
SELECT project_id, headline, subtext, vibe, copy_target, refs
FROM prompts
WHERE project_id = $1;
`
	row := r.pool.QueryRow(ctx, query, projectID)
	var prompt domain.Prompt
	if err := row.Scan(
		&prompt.ProjectID,
		&prompt.Headline,
		&prompt.Subtext,
		&prompt.Vibe,
		&prompt.CopyTarget,
		&prompt.Refs,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &prompt, nil
}

var _ domain.PromptRepository = (*PromptRepositoryPG)(nil)
