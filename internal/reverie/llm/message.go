package llm

// Message is one chat turn in the OpenAI-compatible wire format. The same
// struct serves as the in-memory conversation turn: history is an ordered,
// append-only slice of these.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)
