package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"server/internal/domain"
	"server/internal/providers"
)

func TestPoolDrainsQueueAndStopsOnCancel(t *testing.T) {
	env := newTestEnv(t)
	env.generator.images = []providers.Image{b64Image("a")}
	env.jobs.byID["job-2"] = &domain.Job{
		ID: "job-2", ProjectID: "proj-1", Model: "nano_banana", Quality: "draft", Status: domain.JobStatusQueued,
	}
	env.jobs.queue = []string{"job-1", "job-2"}

	pool := NewPool(PoolOptions{
		Jobs:         env.jobs,
		Orchestrator: env.orch,
		Workers:      2,
		PollInterval: time.Millisecond,
		Logger:       env.orch.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for {
		job1, _ := env.jobs.GetByID(context.Background(), "job-1")
		job2, _ := env.jobs.GetByID(context.Background(), "job-2")
		if job1.Terminal() && job2.Terminal() {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("queue not drained: job-1=%s job-2=%s", job1.Status, job2.Status)
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	job1, _ := env.jobs.GetByID(context.Background(), "job-1")
	job2, _ := env.jobs.GetByID(context.Background(), "job-2")
	if job1.Status != domain.JobStatusSucceeded || job2.Status != domain.JobStatusSucceeded {
		t.Fatalf("statuses = %s / %s, want succeeded", job1.Status, job2.Status)
	}
}

type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
}

func (g *blockingGenerator) GenerateFromText(context.Context, string, providers.Sizing) ([]providers.Image, error) {
	close(g.started)
	<-g.release
	return nil, &providers.GenerationError{Provider: "gemini", Model: "gemini-2.0-flash", Message: "upstream 500"}
}

func (g *blockingGenerator) GenerateFromTextAndReferences(context.Context, string, [][]byte, providers.Sizing) ([]providers.Image, error) {
	return nil, providers.ErrUnsupported
}

func TestPoolShutdownLetsInFlightJobFinish(t *testing.T) {
	env := newTestEnv(t)
	gen := &blockingGenerator{started: make(chan struct{}), release: make(chan struct{})}
	env.registry.Register(providers.ModelNanoBanana, gen)
	env.jobs.queue = []string{"job-1"}

	pool := NewPool(PoolOptions{
		Jobs:         env.jobs,
		Orchestrator: env.orch,
		Workers:      1,
		PollInterval: time.Millisecond,
		Logger:       env.orch.logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	select {
	case <-gen.started:
	case <-time.After(2 * time.Second):
		t.Fatal("job never reached the provider call")
	}

	// Shutdown arrives while the provider call is in flight. The job must
	// still run to a terminal state with its debit compensated.
	cancel()
	close(gen.release)

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pool did not stop after cancel")
	}

	job, err := env.jobs.GetByID(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if job.Status != domain.JobStatusFailed {
		t.Fatalf("job status = %s, want failed", job.Status)
	}
	if env.users.credits["u1"] != 10 {
		t.Fatalf("balance = %d, want 10 (debit refunded)", env.users.credits["u1"])
	}
	deducts := env.audit.byAction(domain.ActionDeductCredits)
	refunds := env.audit.byAction(domain.ActionRefundCredits)
	if len(deducts) != 1 || len(refunds) != 1 {
		t.Fatalf("records = %d deduct / %d refund, want 1/1", len(deducts), len(refunds))
	}
}

func TestPoolClampsWorkerCount(t *testing.T) {
	pool := NewPool(PoolOptions{Workers: 0})
	if pool.workers != 1 {
		t.Fatalf("workers = %d, want 1", pool.workers)
	}
	if pool.pollInterval != 2*time.Second {
		t.Fatalf("pollInterval = %s, want 2s", pool.pollInterval)
	}
}
