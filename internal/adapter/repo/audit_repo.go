package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// AuditRepositoryPG implements domain.AuditRepository.
type AuditRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit repository backed by PostgreSQL.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepositoryPG {
	return &AuditRepositoryPG{pool: pool}
}

// Append inserts one ledger entry. The audit table is append-only.
func (r *AuditRepositoryPG) Append(ctx context.Context, record *domain.AuditRecord) error {
	meta, err := json.Marshal(record.Meta)
	if err != nil {
		return fmt.Errorf("marshal audit meta: %w", err)
	}
	query := `
INSERT INTO audit (id, user_id, action, delta_credits, meta)
VALUES ($1, $2, $3, $4, $5);
`
	_, err = r.pool.Exec(ctx, query, record.ID, record.UserID, record.Action, record.DeltaCredits, meta)
	return err
}

var _ domain.AuditRepository = (*AuditRepositoryPG)(nil)
