package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"server/internal/composer"
	"server/internal/credits"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/providers"
)

// Error kinds reported in the structured execution result.
const (
	KindNotFound            = "not_found"
	KindInsufficientCredits = "insufficient_credits"
	KindDispatch            = "dispatch_error"
	KindGeneration          = "generation_error"
	KindEmptyResult         = "empty_result"
	KindPersistence         = "persistence_error"
)

// Result is the structured outcome of one Execute call.
type Result struct {
	JobID       string
	Status      domain.JobStatus
	ErrorKind   string
	CostCredits int
}

// RenderStore is the slice of the object store used for output images.
type RenderStore interface {
	Write(ctx context.Context, key string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// ReferenceResolver fetches the raw bytes of a reference asset.
type ReferenceResolver interface {
	Resolve(ctx context.Context, assetID string) ([]byte, error)
}

// Options wires an Orchestrator. All collaborators are injected; the
// orchestrator owns no global state.
type Options struct {
	Jobs            domain.JobRepository
	Projects        domain.ProjectRepository
	Prompts         domain.PromptRepository
	Renders         domain.RenderRepository
	Ledger          *credits.Ledger
	Resolver        ReferenceResolver
	Registry        *providers.Registry
	RenderStore     RenderStore
	HTTPClient      *http.Client
	ProviderTimeout time.Duration
	Logger          infra.Logger
	Now             func() time.Time
}

// Orchestrator executes one generation job at a time: load, claim, debit,
// resolve references, compile the prompt, invoke the provider adapter,
// persist renders, finalize. Any failure after the debit triggers a
// compensating refund.
type Orchestrator struct {
	jobs            domain.JobRepository
	projects        domain.ProjectRepository
	prompts         domain.PromptRepository
	renders         domain.RenderRepository
	ledger          *credits.Ledger
	resolver        ReferenceResolver
	registry        *providers.Registry
	renderStore     RenderStore
	httpClient      *http.Client
	providerTimeout time.Duration
	logger          infra.Logger
	now             func() time.Time
}

// New constructs an Orchestrator from Options, applying defaults for the
// HTTP client, provider timeout, and clock.
func New(opts Options) *Orchestrator {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	timeout := opts.ProviderTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		jobs:            opts.Jobs,
		projects:        opts.Projects,
		prompts:         opts.Prompts,
		renders:         opts.Renders,
		ledger:          opts.Ledger,
		resolver:        opts.Resolver,
		registry:        opts.Registry,
		renderStore:     opts.RenderStore,
		httpClient:      httpClient,
		providerTimeout: timeout,
		logger:          opts.Logger,
		now:             now,
	}
}

// Execute runs the job with the given id to a terminal state and returns the
// structured outcome. It is safe to call again with the same id: the
// queued -> running transition is conditional, so a redelivered job that is
// already running or terminal becomes a no-op.
func (o *Orchestrator) Execute(ctx context.Context, jobID string) Result {
	log := o.logger.With().Str("job_id", jobID).Logger()

	job, err := o.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Error().Msg("worker: job not found")
			return Result{JobID: jobID, ErrorKind: KindNotFound}
		}
		log.Error().Err(err).Msg("worker: load job failed")
		return Result{JobID: jobID, ErrorKind: KindPersistence}
	}

	claimed, err := o.jobs.MarkRunning(ctx, jobID)
	if err != nil {
		log.Error().Err(err).Msg("worker: claim transition failed")
		return Result{JobID: jobID, Status: job.Status, ErrorKind: KindPersistence}
	}
	if !claimed {
		log.Info().Str("status", string(job.Status)).Msg("worker: skipping redelivered job")
		return Result{JobID: jobID, Status: job.Status}
	}

	project, err := o.projects.GetByID(ctx, job.ProjectID)
	if err != nil {
		return o.fail(ctx, log, jobID, classify(err, KindPersistence), fmt.Errorf("load project %s: %w", job.ProjectID, err))
	}
	prompt, err := o.prompts.GetByProjectID(ctx, project.ID)
	if err != nil {
		return o.fail(ctx, log, jobID, classify(err, KindPersistence), fmt.Errorf("load prompt for project %s: %w", project.ID, err))
	}

	// Dispatch is settled before any credits move so an unknown model never
	// costs a debit/refund round trip.
	generator, model, err := o.registry.Resolve(job.Model)
	if err != nil {
		return o.fail(ctx, log, jobID, KindDispatch, err)
	}
	log = log.With().Str("model", string(model)).Logger()

	required := credits.Calculate(job.Quality, project.Mode, job.Model)

	balance, err := o.ledger.Balance(ctx, project.UserID)
	if err != nil {
		return o.fail(ctx, log, jobID, classify(err, KindPersistence), err)
	}
	if balance < required {
		return o.fail(ctx, log, jobID, KindInsufficientCredits,
			fmt.Errorf("need %d credits but only have %d: %w", required, balance, domain.ErrInsufficientCredits))
	}

	if _, err := o.ledger.Debit(ctx, project.UserID, jobID, required); err != nil {
		return o.fail(ctx, log, jobID, classify(err, KindPersistence), fmt.Errorf("debit credits: %w", err))
	}
	// Credits are committed. Every failure from here on must refund.

	references := make([][]byte, 0, len(prompt.Refs))
	for _, assetID := range prompt.Refs {
		data, err := o.resolver.Resolve(ctx, assetID)
		if err != nil {
			return o.refundAndFail(ctx, log, jobID, project.UserID, required, classify(err, KindPersistence),
				fmt.Errorf("resolve reference: %w", err))
		}
		references = append(references, data)
	}

	text := composer.Compile(project, prompt)
	sizing := providers.Sizing{Width: project.Width, Height: project.Height}

	genCtx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	var images []providers.Image
	if len(references) > 0 {
		images, err = generator.GenerateFromTextAndReferences(genCtx, text, references, sizing)
	} else {
		images, err = generator.GenerateFromText(genCtx, text, sizing)
	}
	if err != nil {
		return o.refundAndFail(ctx, log, jobID, project.UserID, required, classify(err, KindGeneration), err)
	}
	if len(images) == 0 {
		return o.refundAndFail(ctx, log, jobID, project.UserID, required, KindEmptyResult, domain.ErrEmptyResult)
	}

	raw := make([][]byte, len(images))
	for i, img := range images {
		data, err := o.normalize(genCtx, img)
		if err != nil {
			return o.refundAndFail(ctx, log, jobID, project.UserID, required, KindGeneration,
				fmt.Errorf("normalize image %d: %w", i, err))
		}
		raw[i] = data
	}

	// Persisting renders is the last step before success so a later failure
	// cannot strand committed artifacts.
	written := make([]string, 0, len(raw))
	for variant, data := range raw {
		key, err := o.renderStore.Write(ctx, renderKey(jobID, variant), data)
		if err != nil {
			o.cleanupRenders(ctx, log, jobID, written)
			return o.refundAndFail(ctx, log, jobID, project.UserID, required, KindPersistence,
				fmt.Errorf("store render %d: %w", variant, err))
		}
		written = append(written, key)
		render := &domain.Render{
			ID:      uuid.NewString(),
			JobID:   jobID,
			Variant: variant,
			Path:    key,
		}
		if err := o.renders.Create(ctx, render); err != nil {
			o.cleanupRenders(ctx, log, jobID, written)
			return o.refundAndFail(ctx, log, jobID, project.UserID, required, KindPersistence,
				fmt.Errorf("save render %d: %w", variant, err))
		}
	}

	if err := o.jobs.MarkSucceeded(ctx, jobID, required, o.now()); err != nil {
		o.cleanupRenders(ctx, log, jobID, written)
		return o.refundAndFail(ctx, log, jobID, project.UserID, required, KindPersistence,
			fmt.Errorf("finalize job: %w", err))
	}

	log.Info().Int("renders", len(raw)).Int("cost_credits", required).Msg("worker: job succeeded")
	return Result{JobID: jobID, Status: domain.JobStatusSucceeded, CostCredits: required}
}

// fail marks the job failed without touching credits. Used for failures
// before the debit committed.
func (o *Orchestrator) fail(ctx context.Context, log infra.Logger, jobID, kind string, cause error) Result {
	log.Error().Err(cause).Str("error_kind", kind).Msg("worker: job failed")
	if err := o.jobs.MarkFailed(ctx, jobID, o.now()); err != nil {
		log.Error().Err(err).Msg("worker: mark failed did not apply")
	}
	return Result{JobID: jobID, Status: domain.JobStatusFailed, ErrorKind: kind}
}

// refundAndFail compensates a committed debit, then marks the job failed.
// The refund is best-effort and never changes the outcome.
func (o *Orchestrator) refundAndFail(ctx context.Context, log infra.Logger, jobID, userID string, amount int, kind string, cause error) Result {
	o.ledger.Refund(ctx, userID, jobID, amount)
	return o.fail(ctx, log, jobID, kind, cause)
}

// cleanupRenders removes partially persisted output so a failed job leaves no
// renders behind. Best-effort: cleanup errors are logged only.
func (o *Orchestrator) cleanupRenders(ctx context.Context, log infra.Logger, jobID string, keys []string) {
	for _, key := range keys {
		if err := o.renderStore.Delete(ctx, key); err != nil {
			log.Error().Err(err).Str("key", key).Msg("worker: cleanup render object failed")
		}
	}
	if err := o.renders.DeleteByJobID(ctx, jobID); err != nil {
		log.Error().Err(err).Msg("worker: cleanup render rows failed")
	}
}

// normalize turns a provider image into raw bytes regardless of whether the
// adapter produced bytes, a base64 payload, or a URL.
func (o *Orchestrator) normalize(ctx context.Context, img providers.Image) ([]byte, error) {
	switch {
	case len(img.Data) > 0:
		return img.Data, nil
	case img.B64 != "":
		data, err := base64.StdEncoding.DecodeString(img.B64)
		if err != nil {
			return nil, fmt.Errorf("decode base64 payload: %w", err)
		}
		return data, nil
	case img.URL != "":
		return o.download(ctx, img.URL)
	default:
		return nil, errors.New("image payload is empty")
	}
}

func (o *Orchestrator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("download image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read image body: %w", err)
	}
	return data, nil
}

// renderKey derives the deterministic storage key for one output variant.
func renderKey(jobID string, variant int) string {
	return fmt.Sprintf("renders/%s_%d.png", jobID, variant)
}

// classify maps an error onto the result taxonomy, falling back to the given
// kind when no sentinel matches.
func classify(err error, fallback string) string {
	var genErr *providers.GenerationError
	switch {
	case errors.Is(err, domain.ErrInsufficientCredits):
		return KindInsufficientCredits
	case errors.Is(err, domain.ErrUnknownModel):
		return KindDispatch
	case errors.Is(err, domain.ErrEmptyResult):
		return KindEmptyResult
	case errors.As(err, &genErr):
		return KindGeneration
	case errors.Is(err, domain.ErrNotFound):
		return KindNotFound
	default:
		return fallback
	}
}
