// Package assemble composes the final ordered message list sent to the chat
// completion endpoint: one system message, the trimmed history, and the
// current user turn.
package assemble

import (
	"context"
	"fmt"
	"strings"

	"github.com/bcraddock/reverie/internal/reverie/llm"
	"github.com/bcraddock/reverie/internal/reverie/memory"
)

// SystemParts are the fixed prompt components concatenated into the single
// system message. Empty fields are skipped.
type SystemParts struct {
	// Prefix is the persona and style instruction block.
	Prefix string

	CharacterName string
	CharacterInfo string

	UserName string
	UserInfo string

	Scenario string
}

const memoriesHeader = "--- Retrieved Memories ---"

// SystemText builds the system message content: prefix, acting character,
// user character, scenario, then the retrieved-memories block. The memories
// header is emitted only when at least one memory survived selection.
func SystemText(parts SystemParts, memories []memory.Record) string {
	var b strings.Builder

	add := func(s string) {
		if s == "" {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(s)
	}

	add(parts.Prefix)
	if parts.CharacterName != "" || parts.CharacterInfo != "" {
		add(labeled("You are "+parts.CharacterName+".", parts.CharacterInfo))
	}
	if parts.UserName != "" || parts.UserInfo != "" {
		add(labeled("You are talking to "+parts.UserName+".", parts.UserInfo))
	}
	add(parts.Scenario)

	if len(memories) > 0 {
		var mb strings.Builder
		mb.WriteString(memoriesHeader)
		for _, m := range memories {
			mb.WriteString("\n- ")
			mb.WriteString(strings.TrimSpace(m.PromptText))
		}
		add(mb.String())
	}

	return b.String()
}

func labeled(heading, body string) string {
	if body == "" {
		return heading
	}
	return heading + "\n" + body
}

// Messages builds the standard prompt: the system message, each trimmed
// history turn in order, and the current user turn last.
func Messages(parts SystemParts, memories []memory.Record, history []llm.Message, userMessage string) []llm.Message {
	out := make([]llm.Message, 0, len(history)+2)
	out = append(out, llm.Message{Role: llm.RoleSystem, Content: SystemText(parts, memories)})
	out = append(out, history...)
	out = append(out, llm.Message{Role: llm.RoleUser, Content: userMessage})
	return out
}

// Compressor shrinks a text blob; llm.Compressor satisfies this.
type Compressor interface {
	Compress(ctx context.Context, text string) string
}

// CompressedMessages builds the compressed-context variant: memories and
// history are each flattened to a raw blob, independently compressed, and
// carried as labeled blocks inside the user turn instead of being inlined
// raw. The system message keeps only the persona parts.
func CompressedMessages(ctx context.Context, comp Compressor, parts SystemParts, memories []memory.Record, history []llm.Message, userMessage string) []llm.Message {
	var content strings.Builder

	if len(memories) > 0 {
		var raw strings.Builder
		for i, m := range memories {
			if i > 0 {
				raw.WriteString("\n")
			}
			raw.WriteString(strings.TrimSpace(m.PromptText))
		}
		content.WriteString("MEMORY MONOLOGUE:\n")
		content.WriteString(comp.Compress(ctx, raw.String()))
		content.WriteString("\n\n")
	}

	if len(history) > 0 {
		var raw strings.Builder
		for i, turn := range history {
			if i > 0 {
				raw.WriteString("\n")
			}
			fmt.Fprintf(&raw, "%s: %s", turn.Role, turn.Content)
		}
		content.WriteString("ROLLING HISTORY SUMMARY:\n")
		content.WriteString(comp.Compress(ctx, raw.String()))
		content.WriteString("\n\n")
	}

	content.WriteString(userMessage)

	return []llm.Message{
		{Role: llm.RoleSystem, Content: SystemText(parts, nil)},
		{Role: llm.RoleUser, Content: content.String()},
	}
}
