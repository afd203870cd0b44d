package assemble

import (
	"context"
	"strings"
	"testing"

	"github.com/bcraddock/reverie/internal/reverie/llm"
	"github.com/bcraddock/reverie/internal/reverie/memory"
)

func testParts() SystemParts {
	return SystemParts{
		Prefix:        "Stay in character at all times.",
		CharacterName: "Bob",
		CharacterInfo: "A gruff fisherman with a soft heart.",
		UserName:      "Alice",
		UserInfo:      "A traveling merchant.",
		Scenario:      "A rainy evening at the village tavern.",
	}
}

func TestSystemText_Order(t *testing.T) {
	mems := []memory.Record{
		{PromptText: "Bob lost his boat in the storm."},
		{PromptText: "Bob owes Alice three silver."},
	}
	text := SystemText(testParts(), mems)

	markers := []string{
		"Stay in character",
		"You are Bob.",
		"A gruff fisherman",
		"You are talking to Alice.",
		"A traveling merchant.",
		"A rainy evening",
		"--- Retrieved Memories ---",
		"- Bob lost his boat in the storm.",
		"- Bob owes Alice three silver.",
	}
	last := -1
	for _, m := range markers {
		idx := strings.Index(text, m)
		if idx < 0 {
			t.Fatalf("system text missing %q:\n%s", m, text)
		}
		if idx < last {
			t.Errorf("%q appears out of order", m)
		}
		last = idx
	}
}

func TestSystemText_NoMemoriesOmitsHeader(t *testing.T) {
	text := SystemText(testParts(), nil)
	if strings.Contains(text, "Retrieved Memories") {
		t.Errorf("header emitted with no memories:\n%s", text)
	}
}

func TestSystemText_EmptyPartsSkipped(t *testing.T) {
	text := SystemText(SystemParts{Scenario: "Only a scenario."}, nil)
	if text != "Only a scenario." {
		t.Errorf("text = %q", text)
	}
}

func TestMessages_Shape(t *testing.T) {
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	msgs := Messages(testParts(), nil, history, "new message")

	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem {
		t.Errorf("first role = %s, want system", msgs[0].Role)
	}
	if msgs[1].Content != "earlier question" || msgs[2].Content != "earlier answer" {
		t.Errorf("history out of order: %+v", msgs[1:3])
	}
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleUser || last.Content != "new message" {
		t.Errorf("last = %+v, want the current user turn", last)
	}
}

func TestMessages_ExactlyOneSystemMessage(t *testing.T) {
	msgs := Messages(testParts(), nil, nil, "hi")
	var systems int
	for _, m := range msgs {
		if m.Role == llm.RoleSystem {
			systems++
		}
	}
	if systems != 1 {
		t.Errorf("system messages = %d, want 1", systems)
	}
}

type fakeCompressor struct {
	inputs []string
}

func (f *fakeCompressor) Compress(_ context.Context, text string) string {
	f.inputs = append(f.inputs, text)
	return "[compressed]"
}

func TestCompressedMessages(t *testing.T) {
	mems := []memory.Record{
		{PromptText: "Bob lost his boat."},
		{PromptText: "Bob owes Alice three silver."},
	}
	history := []llm.Message{
		{Role: llm.RoleUser, Content: "What happened to your boat?"},
		{Role: llm.RoleAssistant, Content: "Gone in the storm."},
	}
	comp := &fakeCompressor{}

	msgs := CompressedMessages(context.Background(), comp, testParts(), mems, history, "Tell me more.")
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2 (system + user)", len(msgs))
	}
	if strings.Contains(msgs[0].Content, "Retrieved Memories") {
		t.Error("compressed variant must not inline raw memories in the system message")
	}

	user := msgs[1].Content
	if !strings.Contains(user, "MEMORY MONOLOGUE:") || !strings.Contains(user, "ROLLING HISTORY SUMMARY:") {
		t.Errorf("user content missing labeled blocks:\n%s", user)
	}
	if !strings.HasSuffix(user, "Tell me more.") {
		t.Errorf("user message must come last:\n%s", user)
	}

	// Memories and history are compressed independently.
	if len(comp.inputs) != 2 {
		t.Fatalf("compressor calls = %d, want 2", len(comp.inputs))
	}
	if !strings.Contains(comp.inputs[0], "Bob lost his boat.") {
		t.Errorf("first blob should be the memories: %q", comp.inputs[0])
	}
	if !strings.Contains(comp.inputs[1], "user: What happened to your boat?") {
		t.Errorf("second blob should be the history: %q", comp.inputs[1])
	}
}

func TestCompressedMessages_EmptyBlocksOmitted(t *testing.T) {
	comp := &fakeCompressor{}
	msgs := CompressedMessages(context.Background(), comp, testParts(), nil, nil, "Hi.")
	user := msgs[1].Content
	if strings.Contains(user, "MONOLOGUE") || strings.Contains(user, "SUMMARY") {
		t.Errorf("labels emitted for empty blocks:\n%s", user)
	}
	if len(comp.inputs) != 0 {
		t.Errorf("compressor called %d times for empty blocks", len(comp.inputs))
	}
}
