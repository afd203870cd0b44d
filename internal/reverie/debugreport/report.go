// Package debugreport renders retrieval and budget internals as a readable
// text block. Pure formatting: it tolerates missing fields with placeholders
// and never fails.
package debugreport

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/llm"
)

// Payload bundles whatever turn state is available for the report. Any field
// may be zero; missing sections render as placeholders.
type Payload struct {
	Settings    *config.Settings
	Budget      *budget.Budget
	ScoreTrace  []string
	SelectedIDs []string

	// HistoryKept and HistoryTotal describe the trimming outcome.
	HistoryKept  int
	HistoryTotal int
}

const placeholder = "(not available)"

// Render formats the payload into the debug block shown alongside a reply.
func Render(p Payload) string {
	var b strings.Builder

	b.WriteString("=== DEBUG REPORT ===\n")

	b.WriteString("\n--- Generation Settings ---\n")
	if p.Settings != nil {
		s := p.Settings
		fmt.Fprintf(&b, "Model: %s\n", orPlaceholder(s.Model))
		fmt.Fprintf(&b, "Temperature: %g\n", s.Temperature)
		fmt.Fprintf(&b, "Frequency Penalty: %g\n", s.FrequencyPenalty)
		fmt.Fprintf(&b, "Presence Penalty: %g\n", s.PresencePenalty)
		if s.Unlimited() {
			b.WriteString("Max Tokens: unlimited\n")
		} else {
			fmt.Fprintf(&b, "Max Tokens: %d\n", s.MaxTokens)
		}
		fmt.Fprintf(&b, "Compression: %v\n", s.CompressContext)
	} else {
		b.WriteString(placeholder + "\n")
	}

	b.WriteString("\n--- Token Usage ---\n")
	if p.Budget != nil {
		tb := p.Budget
		if tb.Unlimited {
			b.WriteString("Budget: unlimited\n")
		} else {
			fmt.Fprintf(&b, "Budget: %d\n", tb.MaxTokens)
		}
		fmt.Fprintf(&b, "System: %d\n", tb.SystemTokens)
		fmt.Fprintf(&b, "Scenario: %d\n", tb.ScenarioTokens)
		fmt.Fprintf(&b, "Prefix: %d\n", tb.PrefixTokens)
		fmt.Fprintf(&b, "Memories: %d\n", tb.MemoryTokens)
		fmt.Fprintf(&b, "Buffer: %d\n", tb.Buffer)
		fmt.Fprintf(&b, "Available for history: %d\n", tb.AvailableForHistory)
		fmt.Fprintf(&b, "History turns kept: %d of %d\n", p.HistoryKept, p.HistoryTotal)
	} else {
		b.WriteString(placeholder + "\n")
	}

	b.WriteString("\n--- Memory Scoring ---\n")
	if len(p.ScoreTrace) > 0 {
		for _, line := range p.ScoreTrace {
			b.WriteString(line)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(placeholder + "\n")
	}

	b.WriteString("\n--- Selected Memories ---\n")
	if len(p.SelectedIDs) > 0 {
		fmt.Fprintf(&b, "Count: %d\n", len(p.SelectedIDs))
		for _, id := range p.SelectedIDs {
			fmt.Fprintf(&b, "- %s\n", id)
		}
	} else {
		b.WriteString("Count: 0\n")
	}

	return b.String()
}

// RenderAdvanced extends Render with the trimmed rolling history and the
// exact message payload sent to the completion endpoint, as indented JSON.
func RenderAdvanced(p Payload, history []llm.Message, payload []llm.Message) string {
	var b strings.Builder
	b.WriteString(Render(p))

	b.WriteString("\n--- Rolling History (trimmed) ---\n")
	if len(history) > 0 {
		for _, m := range history {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
		}
	} else {
		b.WriteString(placeholder + "\n")
	}

	b.WriteString("\n--- Final Payload ---\n")
	if len(payload) > 0 {
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			b.WriteString(placeholder + "\n")
		} else {
			b.Write(data)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(placeholder + "\n")
	}

	return b.String()
}

func orPlaceholder(s string) string {
	if s == "" {
		return placeholder
	}
	return s
}
