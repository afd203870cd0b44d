// Package budget accounts for the token cost of a prompt and trims rolling
// conversation history to fit what remains of the model's context window.
package budget

import (
	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/llm"
	"github.com/bcraddock/reverie/internal/reverie/memory"
)

// Budget is the per-turn accounting record. It is recomputed every turn and
// never persisted.
type Budget struct {
	MaxTokens      int
	Unlimited      bool
	SystemTokens   int
	ScenarioTokens int
	PrefixTokens   int
	MemoryTokens   int
	Buffer         int

	// AvailableForHistory is what remains for rolling history after all
	// reserved overhead, floored at zero.
	AvailableForHistory int
}

// Overhead is the total reserved token count before history.
func (b Budget) Overhead() int {
	return b.SystemTokens + b.ScenarioTokens + b.PrefixTokens + b.MemoryTokens + b.Buffer
}

// Compute reserves tokens for the fixed prompt parts and the selected
// memories, then derives the history allowance. The counter never fails, so
// neither does Compute.
func Compute(counter Counter, systemText, scenarioText, prefixText string, memories []memory.Record, settings config.Settings) Budget {
	b := Budget{
		MaxTokens:      settings.EffectiveMaxTokens(),
		Unlimited:      settings.Unlimited(),
		SystemTokens:   counter.Count(systemText),
		ScenarioTokens: counter.Count(scenarioText),
		PrefixTokens:   counter.Count(prefixText),
		Buffer:         settings.TokenBuffer,
	}
	for _, m := range memories {
		// Count PromptText fresh rather than trusting the precomputed
		// token_count field: alias clarifications appended at retrieval
		// time would make the stored count stale.
		b.MemoryTokens += counter.Count(m.PromptText)
	}

	available := b.MaxTokens - b.Overhead()
	if available < 0 {
		available = 0
	}
	b.AvailableForHistory = available
	return b
}

// TrimHistory walks history newest to oldest, keeping turns until the next
// one would exceed the budget's history allowance. The most recent turn is
// always kept, even when it alone overflows the allowance. The returned
// slice is in chronological order.
func TrimHistory(counter Counter, history []llm.Message, b Budget) []llm.Message {
	if len(history) == 0 {
		return nil
	}
	if b.Unlimited {
		out := make([]llm.Message, len(history))
		copy(out, history)
		return out
	}

	kept := 0
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		cost := counter.Count(history[i].Content)
		if used+cost > b.AvailableForHistory && kept > 0 {
			break
		}
		used += cost
		kept++
	}

	out := make([]llm.Message, kept)
	copy(out, history[len(history)-kept:])
	return out
}
