package domain

// Render is one output image artifact produced by a job. Variants are
// contiguous starting at 0 and follow the provider's return order. Renders
// are created only by the orchestrator and never mutated.
type Render struct {
	ID      string
	JobID   string
	Variant int
	Path    string
}
