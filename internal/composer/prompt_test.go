package composer

import (
	"strings"
	"testing"

	"server/internal/domain"
)

func TestCompile(t *testing.T) {
	project := &domain.Project{
		Platform: "youtube",
		Width:    1280,
		Height:   720,
		Mode:     domain.ModeCopy,
	}
	prompt := &domain.Prompt{
		Headline:   "I Tried Every Ramen In Tokyo",
		Subtext:    "47 bowls, 5 days",
		Vibe:       "bold, saturated",
		CopyTarget: "the channel host",
	}

	got := Compile(project, prompt)

	checks := []string{
		"Create a youtube thumbnail.",
		"Title: I Tried Every Ramen In Tokyo",
		"Subtext: 47 bowls, 5 days",
		"Vibe: bold, saturated",
		"Preserve the likeness of: the channel host.",
		"Target size: 1280x720.",
	}
	for _, expect := range checks {
		if !strings.Contains(got, expect) {
			t.Fatalf("prompt missing %q: %s", expect, got)
		}
	}

	if again := Compile(project, prompt); again != got {
		t.Fatal("Compile is not deterministic")
	}
}

func TestCompileSkipsCopyTargetInDesignMode(t *testing.T) {
	project := &domain.Project{Platform: "tiktok", Mode: domain.ModeDesign}
	prompt := &domain.Prompt{Headline: "Headline", CopyTarget: "someone"}

	got := Compile(project, prompt)
	if strings.Contains(got, "likeness") {
		t.Fatalf("copy target leaked into design mode prompt: %s", got)
	}
}

func TestCompileOmitsEmptyFields(t *testing.T) {
	project := &domain.Project{Platform: "youtube"}
	prompt := &domain.Prompt{Headline: "  "}

	got := Compile(project, prompt)
	if strings.Contains(got, "Title:") {
		t.Fatalf("blank headline rendered: %s", got)
	}
	if !strings.HasPrefix(got, "Create a youtube thumbnail.") {
		t.Fatalf("unexpected prompt: %s", got)
	}
}
