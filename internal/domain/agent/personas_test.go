package agent

import (
	"strings"
	"testing"
)

func TestAllPersonasCoversSevenPersonas(t *testing.T) {
	all := AllPersonas()
	if len(all) != 7 {
		t.Fatalf("Expected 7 personas, got %d", len(all))
	}

	want := []string{"therapist", "logical", "planner", "coder", "brainstormer", "debater", "teacher"}
	for i, name := range want {
		if all[i].Name != name {
			t.Errorf("Persona[%d] = %s, want %s", i, all[i].Name, name)
		}
	}
}

func TestLookupPersona(t *testing.T) {
	p, ok := LookupPersona("coder")
	if !ok {
		t.Fatal("coder persona should exist")
	}

	if !strings.Contains(p.SystemPrompt, "expert programmer") {
		t.Errorf("Unexpected coder prompt: %s", p.SystemPrompt)
	}

	if _, ok := LookupPersona("oracle"); ok {
		t.Error("Unknown persona should not be found")
	}
}

func TestPersonaToolEntitlements(t *testing.T) {
	tests := []struct {
		persona string
		tools   []string
	}{
		{"therapist", []string{}},
		{"logical", []string{ToolWebSearch}},
		{"planner", []string{}},
		{"coder", []string{ToolFileSystem}},
		{"brainstormer", []string{ToolWebSearch}},
		{"debater", []string{ToolWebSearch}},
		{"teacher", []string{ToolWebSearch}},
	}

	for _, tt := range tests {
		t.Run(tt.persona, func(t *testing.T) {
			p, ok := LookupPersona(tt.persona)
			if !ok {
				t.Fatalf("Persona %s should exist", tt.persona)
			}
			if len(p.Tools) != len(tt.tools) {
				t.Fatalf("Tools = %v, want %v", p.Tools, tt.tools)
			}
			for i := range tt.tools {
				if p.Tools[i] != tt.tools[i] {
					t.Errorf("Tools[%d] = %s, want %s", i, p.Tools[i], tt.tools[i])
				}
			}
		})
	}
}

func TestPersonaHasTool(t *testing.T) {
	coder, _ := LookupPersona("coder")

	if !coder.HasTool(ToolFileSystem) {
		t.Error("coder should have file_system")
	}
	if coder.HasTool(ToolWebSearch) {
		t.Error("coder should not have web_search")
	}
}

func TestEveryPersonaPromptIsNonEmpty(t *testing.T) {
	for _, p := range AllPersonas() {
		if strings.TrimSpace(p.SystemPrompt) == "" {
			t.Errorf("Persona %s has empty system prompt", p.Name)
		}
	}
}

func TestIsPersona(t *testing.T) {
	if !IsPersona("debater") {
		t.Error("debater should be a persona")
	}
	if IsPersona("DEBATER") {
		t.Error("Persona names are lowercase")
	}
	if IsPersona("") {
		t.Error("Empty name is not a persona")
	}
}
