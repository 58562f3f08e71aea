package prompts

import (
	"strings"
	"testing"

	"github.com/dossier-ai/dossier-agent/internal/catalog"
)

func TestBuildHumanPromptContainsInstructionsInOrder(t *testing.T) {
	prompt, unknown := BuildHumanPrompt(
		Profile{Name: "Jane Diplomat", Country: "Atlantis"},
		[]catalog.Name{catalog.Education, catalog.Career},
	)

	if len(unknown) != 0 {
		t.Fatalf("unexpected unknown sections: %v", unknown)
	}
	if !strings.Contains(prompt, "Jane Diplomat") || !strings.Contains(prompt, "Atlantis") {
		t.Error("prompt missing profile identity")
	}

	eduIdx := strings.Index(prompt, "education section")
	careerIdx := strings.Index(prompt, "career section")
	if eduIdx < 0 || careerIdx < 0 {
		t.Fatal("prompt missing section instructions")
	}
	if eduIdx > careerIdx {
		t.Error("section instructions out of requested order")
	}

	// The sample format should carry the education skeleton.
	if !strings.Contains(prompt, `"label": "Education"`) {
		t.Error("prompt missing education output template")
	}
}

func TestBuildHumanPromptSkipsAndReportsUnknown(t *testing.T) {
	prompt, unknown := BuildHumanPrompt(
		Profile{Name: "X", Country: "Y"},
		[]catalog.Name{catalog.Reference, "hobbies"},
	)

	if len(unknown) != 1 || unknown[0] != "hobbies" {
		t.Errorf("unknown = %v, want [hobbies]", unknown)
	}
	if strings.Contains(prompt, "hobbies") {
		t.Error("unknown section leaked into prompt")
	}
	if !strings.Contains(prompt, `"label": "Reference"`) {
		t.Error("valid section missing from prompt")
	}
}

func TestBuildHumanPromptDesignation(t *testing.T) {
	withDes, _ := BuildHumanPrompt(
		Profile{Name: "X", Country: "Y", Designation: "Ambassador"},
		catalog.DefaultSet(),
	)
	if !strings.Contains(withDes, "with designation Ambassador") {
		t.Error("designation missing from prompt")
	}

	without, _ := BuildHumanPrompt(Profile{Name: "X", Country: "Y"}, catalog.DefaultSet())
	if strings.Contains(without, "with designation") {
		t.Error("empty designation should render nothing")
	}
}

func TestSystemPromptStable(t *testing.T) {
	s := SystemPrompt()
	if !strings.Contains(s, "foreign service officers") {
		t.Error("system prompt content changed unexpectedly")
	}
	if s != SystemPrompt() {
		t.Error("system prompt not stable across calls")
	}
}
