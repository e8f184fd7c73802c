package domain

import "time"

// AuditAction enumerates ledger actions recorded in the audit trail.
type AuditAction string

const (
	ActionDeductCredits AuditAction = "deduct_credits"
	ActionRefundCredits AuditAction = "refund_credits"
)

// AuditRecord is an append-only ledger entry. DeltaCredits is signed:
// negative for deductions, positive for refunds.
type AuditRecord struct {
	ID           string
	UserID       string
	Action       AuditAction
	DeltaCredits int
	Meta         map[string]any
	CreatedAt    time.Time
}
