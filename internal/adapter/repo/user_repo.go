package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/domain"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(pool *pgxpool.Pool) *UserRepositoryPG {
	return &UserRepositoryPG{pool: pool}
}

// GetByID fetches a user by its identifier.
func (r *UserRepositoryPG) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, credits FROM users WHERE id = $1`, userID)
	var u domain.User
	if err := row.Scan(&u.ID, &u.Credits); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// DebitCredits subtracts amount from the balance in one conditional update.
// The balance guard runs inside the statement, so two concurrent debits for
// the same user cannot both pass the check and overdraw.
func (r *UserRepositoryPG) DebitCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `
UPDATE users
SET credits = credits - $2
WHERE id = $1 AND credits >= $2
RETURNING credits;
`
	var balance int
	if err := r.pool.QueryRow(ctx, query, userID, amount).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the user is missing or the balance does not cover the
			// amount; distinguish so callers report the right failure.
			if _, lookupErr := r.GetByID(ctx, userID); lookupErr != nil {
				return 0, lookupErr
			}
			return 0, domain.ErrInsufficientCredits
		}
		return 0, err
	}
	return balance, nil
}

// RefundCredits adds amount back to the balance.
func (r *UserRepositoryPG) RefundCredits(ctx context.Context, userID string, amount int) (int, error) {
	query := `
UPDATE users
SET credits = credits + $2
WHERE id = $1
RETURNING credits;
`
	var balance int
	if err := r.pool.QueryRow(ctx, query, userID, amount).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

var _ domain.UserRepository = (*UserRepositoryPG)(nil)
