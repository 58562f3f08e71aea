package catalog

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestAllNamesHaveTemplateAndInstruction(t *testing.T) {
	for _, n := range All() {
		if _, ok := Template(n); !ok {
			t.Errorf("no template for %q", n)
		}
		if Instruction(n) == "none" {
			t.Errorf("no instruction for %q", n)
		}
	}
}

func TestDefaultSetOmitsOptInSections(t *testing.T) {
	for _, n := range DefaultSet() {
		if n == Remarks || n == Languages {
			t.Errorf("default set should not include %q", n)
		}
		if !n.Valid() {
			t.Errorf("default set contains unknown section %q", n)
		}
	}
	if len(DefaultSet()) != 5 {
		t.Errorf("default set size = %d, want 5", len(DefaultSet()))
	}
}

func TestTemplatesSkipsUnknown(t *testing.T) {
	sections, unknown := Templates([]Name{Education, "biography", Career})
	if len(sections) != 2 {
		t.Fatalf("got %d sections, want 2", len(sections))
	}
	if sections[0].Label != "Education" || sections[1].Label != "Career" {
		t.Errorf("order not preserved: %q, %q", sections[0].Label, sections[1].Label)
	}
	if len(unknown) != 1 || unknown[0] != "biography" {
		t.Errorf("unknown = %v, want [biography]", unknown)
	}
}

func TestTemplateReturnsCopy(t *testing.T) {
	s, _ := Template(MainParticulars)
	s.Fields[0].Value = "mutated"

	again, _ := Template(MainParticulars)
	if again.Fields[0].Value == "mutated" {
		t.Error("Template returned shared backing slice")
	}
}

func TestTemplatesJSONShape(t *testing.T) {
	out, unknown, err := TemplatesJSON([]Name{MainParticulars})
	if err != nil {
		t.Fatalf("TemplatesJSON: %v", err)
	}
	if len(unknown) != 0 {
		t.Fatalf("unexpected unknown names: %v", unknown)
	}

	var sections []Section
	if err := json.Unmarshal([]byte(out), &sections); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if sections[0].Type != SectionTab {
		t.Errorf("type = %q, want TAB", sections[0].Type)
	}
	if sections[0].Fields[3].Type != FieldDate {
		t.Errorf("birth date field type = %q, want DTT", sections[0].Fields[3].Type)
	}
	if !strings.Contains(out, `"label": "Main Particulars"`) {
		t.Errorf("output missing label: %s", out)
	}
}

func TestInstructionUnknownName(t *testing.T) {
	if got := Instruction("nope"); got != "none" {
		t.Errorf("Instruction(nope) = %q, want none", got)
	}
}

func TestParseNames(t *testing.T) {
	names := ParseNames([]string{"education", "bogus"})
	if names[0] != Education {
		t.Errorf("names[0] = %q", names[0])
	}
	if names[1].Valid() {
		t.Error("bogus should not be valid")
	}
}
