package composer

import (
	"fmt"
	"strings"

	"server/internal/domain"
)

// Compile builds the final generation prompt from the project settings and
// the structured prompt fields. The output is deterministic and identical
// for every provider.
func Compile(project *domain.Project, prompt *domain.Prompt) string {
	parts := []string{fmt.Sprintf("Create a %s thumbnail.", project.Platform)}
	if headline := strings.TrimSpace(prompt.Headline); headline != "" {
		parts = append(parts, "Title: "+headline)
	}
	if subtext := strings.TrimSpace(prompt.Subtext); subtext != "" {
		parts = append(parts, "Subtext: "+subtext)
	}
	if vibe := strings.TrimSpace(prompt.Vibe); vibe != "" {
		parts = append(parts, "Vibe: "+vibe)
	}
	if project.Mode == domain.ModeCopy {
		if target := strings.TrimSpace(prompt.CopyTarget); target != "" {
			parts = append(parts, "Preserve the likeness of: "+target+".")
		}
	}
	if project.Width > 0 && project.Height > 0 {
		parts = append(parts, fmt.Sprintf("Target size: %dx%d.", project.Width, project.Height))
	}
	return strings.Join(parts, "\n")
}
