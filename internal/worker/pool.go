package worker

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"server/internal/domain"
	"server/internal/infra"
)

// Pool runs a fixed number of claim loops against the job queue. Each loop
// pulls the oldest queued job id and hands it to the orchestrator; the
// conditional claim inside Execute resolves races between loops, so the pull
// itself does not need to lock anything.
type Pool struct {
	jobs         domain.JobRepository
	orchestrator *Orchestrator
	workers      int
	pollInterval time.Duration
	logger       infra.Logger
}

// PoolOptions wires a Pool.
type PoolOptions struct {
	Jobs         domain.JobRepository
	Orchestrator *Orchestrator
	Workers      int
	PollInterval time.Duration
	Logger       infra.Logger
}

// NewPool constructs a Pool, clamping workers to at least one.
func NewPool(opts PoolOptions) *Pool {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}
	pollInterval := opts.PollInterval
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &Pool{
		jobs:         opts.Jobs,
		orchestrator: opts.Orchestrator,
		workers:      workers,
		pollInterval: pollInterval,
		logger:       opts.Logger,
	}
}

// Run blocks until ctx is cancelled, then waits for in-flight jobs to finish.
// It returns ctx.Err() on shutdown.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info().Int("workers", p.workers).Msg("worker: pool started")

	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		group.Go(func() error {
			return p.loop(ctx)
		})
	}
	return group.Wait()
}

func (p *Pool) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		jobID, err := p.jobs.NextQueuedID(ctx)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				p.logger.Error().Err(err).Msg("worker: poll queue failed")
			}
			if sleepErr := p.sleep(ctx); sleepErr != nil {
				return sleepErr
			}
			continue
		}

		// Shutdown cancellation stops the claim loop only. A claimed job runs
		// detached so it reaches a terminal state and its refund path still
		// has a live context.
		result := p.orchestrator.Execute(context.WithoutCancel(ctx), jobID)
		if result.ErrorKind != "" {
			p.logger.Warn().
				Str("job_id", result.JobID).
				Str("error_kind", result.ErrorKind).
				Msg("worker: job did not succeed")
		}
	}
}

func (p *Pool) sleep(ctx context.Context) error {
	timer := time.NewTimer(p.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
