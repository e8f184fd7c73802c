package domain

// Prompt carries the structured fields the compiler turns into the final
// generation prompt. Refs is an ordered list of asset ids used as visual
// references.
type Prompt struct {
	ProjectID  string
	Headline   string
	Subtext    string
	Vibe       string
	CopyTarget string
	Refs       []string
}
