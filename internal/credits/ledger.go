package credits

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"server/internal/domain"
	"server/internal/infra"
)

// Base cost per quality tier. Unknown tiers price as standard.
var baseCost = map[string]int{
	domain.QualityDraft:    1,
	domain.QualityStandard: 2,
	domain.Quality4K:       4,
}

const copyModeSurcharge = 1

// Per-model surcharge. Models not listed carry no surcharge.
var providerSurcharge = map[string]int{
	"seedream":        1,
	"gpt_image":       2,
	"nano_banana_pro": 1,
}

// Calculate prices a job from its quality tier, project mode, and model.
// It is the single source of truth for both the pre-flight balance check and
// the cost_credits stored on the finished job.
func Calculate(quality string, mode domain.ProjectMode, model string) int {
	cost, ok := baseCost[quality]
	if !ok {
		cost = baseCost[domain.QualityStandard]
	}
	if mode == domain.ModeCopy {
		cost += copyModeSurcharge
	}
	cost += providerSurcharge[model]
	return cost
}

// Ledger performs debit/refund operations against a user balance and keeps
// the append-only audit trail in step with them.
type Ledger struct {
	users  domain.UserRepository
	audit  domain.AuditRepository
	logger infra.Logger
}

// NewLedger constructs a Ledger over the given repositories.
func NewLedger(users domain.UserRepository, audit domain.AuditRepository, logger infra.Logger) *Ledger {
	return &Ledger{users: users, audit: audit, logger: logger}
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (int, error) {
	user, err := l.users.GetByID(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("load user %s: %w", userID, err)
	}
	return user.Credits, nil
}

// Debit subtracts amount from the user's balance and appends the matching
// deduct_credits record. If the audit append fails the debit is reversed
// directly, so a job either has a complete deduction on record or none.
func (l *Ledger) Debit(ctx context.Context, userID, jobID string, amount int) (int, error) {
	balance, err := l.users.DebitCredits(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	record := &domain.AuditRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       domain.ActionDeductCredits,
		DeltaCredits: -amount,
		Meta:         map[string]any{"job_id": jobID, "reason": "thumbnail_generation"},
	}
	if err := l.audit.Append(ctx, record); err != nil {
		if _, revertErr := l.users.RefundCredits(ctx, userID, amount); revertErr != nil {
			l.logger.Error().Err(revertErr).
				Str("job_id", jobID).
				Str("user_id", userID).
				Msg("credits: revert after audit failure did not apply")
		}
		return 0, fmt.Errorf("append deduct audit: %w", err)
	}
	return balance, nil
}

// Refund returns amount to the user's balance and appends the matching
// refund_credits record. Refunds are best-effort compensation: failures are
// logged and never propagate to the caller.
func (l *Ledger) Refund(ctx context.Context, userID, jobID string, amount int) {
	if _, err := l.users.RefundCredits(ctx, userID, amount); err != nil {
		l.logger.Error().Err(err).
			Str("job_id", jobID).
			Str("user_id", userID).
			Int("amount", amount).
			Msg("credits: refund failed")
		return
	}
	record := &domain.AuditRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		Action:       domain.ActionRefundCredits,
		DeltaCredits: amount,
		Meta:         map[string]any{"job_id": jobID, "reason": "generation_failed"},
	}
	if err := l.audit.Append(ctx, record); err != nil {
		l.logger.Error().Err(err).
			Str("job_id", jobID).
			Str("user_id", userID).
			Msg("credits: append refund audit failed")
	}
}
