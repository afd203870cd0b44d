package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bcraddock/reverie/internal/reverie/assemble"
	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/debugreport"
	"github.com/bcraddock/reverie/internal/reverie/llm"
	"github.com/bcraddock/reverie/internal/reverie/memory"
)

// ErrTurnInFlight is returned when a new turn is submitted while the
// previous one is still running. The caller must disable submission until
// the pending result arrives; turns are never queued.
var ErrTurnInFlight = fmt.Errorf("session: a turn is already in flight")

// TurnResult is delivered on the result channel when a turn completes.
// Completion failures are carried in Reply as inline error text, never as a
// separate error: the conversation log must stay coherent.
type TurnResult struct {
	Reply       string
	Selected    []memory.Record
	Budget      budget.Budget
	DebugReport string
}

// Runner executes chat turns one at a time on a background goroutine:
// retrieval, budget accounting, assembly, completion. Shared state (the
// session history) is mutated only between turns.
type Runner struct {
	Session   *Session
	Retriever *memory.Retriever
	Counter   budget.Counter
	Client    *llm.Client
	Parts     assemble.SystemParts
	Settings  config.Settings

	// Compressor enables the compressed-context assembly variant when
	// Settings.CompressContext is set. Optional otherwise.
	Compressor *llm.Compressor

	Logger *slog.Logger

	mu       sync.Mutex
	inFlight bool
}

// Send submits a user message and returns a channel that yields exactly one
// TurnResult. The user turn is appended to the session history before the
// worker goroutine starts, so the worker reads a stable snapshot.
func (r *Runner) Send(ctx context.Context, userMessage string) (<-chan TurnResult, error) {
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	r.inFlight = true

	// History before this turn's user message: everything already in the
	// session. The new user turn is appended now, before the goroutine is
	// spawned, so no other mutation can race with the snapshot.
	history := append([]llm.Message(nil), r.Session.History...)
	r.Session.AppendUser(userMessage)
	r.mu.Unlock()

	results := make(chan TurnResult, 1)
	go func() {
		result := r.runTurn(ctx, userMessage, history)

		r.mu.Lock()
		r.Session.AppendAssistant(result.Reply)
		r.Session.Cap(r.Settings.ChatHistoryLength)
		r.inFlight = false
		r.mu.Unlock()

		results <- result
	}()
	return results, nil
}

// InFlight reports whether a turn is currently running.
func (r *Runner) InFlight() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inFlight
}

func (r *Runner) runTurn(ctx context.Context, userMessage string, history []llm.Message) TurnResult {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var (
		selected []memory.Record
		trace    []string
	)
	if r.Retriever != nil {
		selected, trace = r.Retriever.Retrieve(ctx, userMessage, r.Settings)
	}

	// Scenario, prefix, and memories are accounted separately, so the
	// system share covers only the persona identity blocks.
	personaText := assemble.SystemText(assemble.SystemParts{
		CharacterName: r.Parts.CharacterName,
		CharacterInfo: r.Parts.CharacterInfo,
		UserName:      r.Parts.UserName,
		UserInfo:      r.Parts.UserInfo,
	}, nil)
	b := budget.Compute(r.Counter, personaText, r.Parts.Scenario, r.Parts.Prefix, selected, r.Settings)
	trimmed := budget.TrimHistory(r.Counter, history, b)

	var messages []llm.Message
	if r.Settings.CompressContext && r.Compressor != nil {
		messages = assemble.CompressedMessages(ctx, r.Compressor, r.Parts, selected, trimmed, userMessage)
	} else {
		messages = assemble.Messages(r.Parts, selected, trimmed, userMessage)
	}

	reply, err := r.Client.Complete(ctx, messages, llm.Sampling{
		Temperature:      r.Settings.Temperature,
		FrequencyPenalty: r.Settings.FrequencyPenalty,
		PresencePenalty:  r.Settings.PresencePenalty,
	})
	if err != nil {
		logger.Warn("session: completion failed, surfacing as reply", "err", err)
		reply = fmt.Sprintf("[Error: %v]", err)
	}

	result := TurnResult{Reply: reply, Selected: selected, Budget: b}
	if r.Settings.DebugMode {
		ids := make([]string, len(selected))
		for i, m := range selected {
			ids[i] = m.MemoryID
		}
		payload := debugreport.Payload{
			Settings:     &r.Settings,
			Budget:       &b,
			ScoreTrace:   trace,
			SelectedIDs:  ids,
			HistoryKept:  len(trimmed),
			HistoryTotal: len(history),
		}
		if r.Settings.DebugVerbose {
			result.DebugReport = debugreport.RenderAdvanced(payload, trimmed, messages)
		} else {
			result.DebugReport = debugreport.Render(payload)
		}
	}

	logger.Debug("session: turn complete",
		"session_id", r.Session.ID,
		"memories", len(selected),
		"history_kept", len(trimmed),
		"reply_len", len(reply),
	)
	return result
}
