package domain

// ProjectMode selects the thumbnail workflow.
type ProjectMode string

const (
	ModeDesign ProjectMode = "design"
	ModeCopy   ProjectMode = "copy"
)

// Project holds the output settings a job renders against. The orchestrator
// only ever reads projects.
type Project struct {
	ID       string
	UserID   string
	Platform string
	Width    int
	Height   int
	Mode     ProjectMode
}
