package debugreport

import (
	"strings"
	"testing"

	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/llm"
)

func TestRender_FullPayload(t *testing.T) {
	settings := config.Defaults()
	settings.Model = "local-model"
	settings.MaxTokens = 4096

	out := Render(Payload{
		Settings: &settings,
		Budget: &budget.Budget{
			MaxTokens:           4096,
			SystemTokens:        300,
			MemoryTokens:        150,
			Buffer:              50,
			AvailableForHistory: 3596,
		},
		ScoreTrace:   []string{"Chunk m-1: Base = 0.8000, Boost = 0.5000, Total = 1.3000"},
		SelectedIDs:  []string{"m-1"},
		HistoryKept:  4,
		HistoryTotal: 10,
	})

	for _, want := range []string{
		"Model: local-model",
		"Max Tokens: 4096",
		"System: 300",
		"Memories: 150",
		"Available for history: 3596",
		"History turns kept: 4 of 10",
		"Total = 1.3000",
		"Count: 1",
		"- m-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestRender_EmptyPayload(t *testing.T) {
	out := Render(Payload{})
	if !strings.Contains(out, "(not available)") {
		t.Errorf("missing placeholders:\n%s", out)
	}
	if !strings.Contains(out, "Count: 0") {
		t.Errorf("missing empty selection count:\n%s", out)
	}
}

func TestRenderAdvanced(t *testing.T) {
	history := []llm.Message{{Role: llm.RoleUser, Content: "earlier turn"}}
	payload := []llm.Message{
		{Role: llm.RoleSystem, Content: "You are Bob."},
		{Role: llm.RoleUser, Content: "hello"},
	}
	out := RenderAdvanced(Payload{}, history, payload)

	for _, want := range []string{
		"Rolling History",
		"user: earlier turn",
		"Final Payload",
		`"role": "system"`,
		`"content": "You are Bob."`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("advanced report missing %q:\n%s", want, out)
		}
	}
}

func TestRenderAdvanced_EmptySections(t *testing.T) {
	out := RenderAdvanced(Payload{}, nil, nil)
	if c := strings.Count(out, "(not available)"); c < 4 {
		t.Errorf("placeholders = %d, want one per empty section:\n%s", c, out)
	}
}

func TestRender_UnlimitedBudget(t *testing.T) {
	settings := config.Defaults()
	settings.NoTokenLimit = true
	out := Render(Payload{
		Settings: &settings,
		Budget:   &budget.Budget{Unlimited: true},
	})
	if !strings.Contains(out, "Max Tokens: unlimited") {
		t.Errorf("settings section missing unlimited marker:\n%s", out)
	}
	if !strings.Contains(out, "Budget: unlimited") {
		t.Errorf("budget section missing unlimited marker:\n%s", out)
	}
}
