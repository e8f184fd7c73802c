package domain

import (
	"context"
	"time"
)

// JobRepository defines persistence for job entities.
type JobRepository interface {
	GetByID(ctx context.Context, jobID string) (*Job, error)
	// NextQueuedID returns the oldest queued job id, or ErrNotFound when the
	// queue is empty. Delivery is at-least-once; MarkRunning arbitrates.
	NextQueuedID(ctx context.Context) (string, error)
	// MarkRunning transitions queued -> running. It reports false when the
	// job was not in the queued state, which callers treat as a redelivery.
	MarkRunning(ctx context.Context, jobID string) (bool, error)
	MarkSucceeded(ctx context.Context, jobID string, costCredits int, finishedAt time.Time) error
	MarkFailed(ctx context.Context, jobID string, finishedAt time.Time) error
}

// ProjectRepository defines read access to projects.
type ProjectRepository interface {
	GetByID(ctx context.Context, projectID string) (*Project, error)
}

// PromptRepository defines read access to prompts.
type PromptRepository interface {
	GetByProjectID(ctx context.Context, projectID string) (*Prompt, error)
}

// RenderRepository handles persistence for generated renders.
type RenderRepository interface {
	Create(ctx context.Context, render *Render) error
	DeleteByJobID(ctx context.Context, jobID string) error
}

// UserRepository exposes the credit balance operations the ledger builds on.
type UserRepository interface {
	GetByID(ctx context.Context, userID string) (*User, error)
	// DebitCredits atomically subtracts amount when the balance covers it and
	// returns the new balance, or ErrInsufficientCredits. The conditional
	// update serializes concurrent debits for the same user.
	DebitCredits(ctx context.Context, userID string, amount int) (int, error)
	// RefundCredits adds amount back and returns the new balance.
	RefundCredits(ctx context.Context, userID string, amount int) (int, error)
}

// AuditRepository appends ledger entries.
type AuditRepository interface {
	Append(ctx context.Context, record *AuditRecord) error
}

// AssetRepository defines read access to uploaded reference assets.
type AssetRepository interface {
	GetByID(ctx context.Context, assetID string) (*Asset, error)
}
