// Package session holds the live conversation state, its JSON persistence,
// the sealed-session archive, and the background worker that runs one chat
// turn through retrieval, budgeting, assembly, and completion.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bcraddock/reverie/internal/reverie/llm"
)

// Session is one conversation with a character. History is append-only
// during a turn; the cap trims oldest turns between turns.
type Session struct {
	ID            string        `json:"id"`
	CharacterName string        `json:"character_name"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	History       []llm.Message `json:"history"`
}

// New creates an empty session for the named character.
func New(characterName string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            uuid.NewString(),
		CharacterName: characterName,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// AppendUser adds a user turn.
func (s *Session) AppendUser(content string) {
	s.History = append(s.History, llm.Message{Role: llm.RoleUser, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// AppendAssistant adds an assistant turn.
func (s *Session) AppendAssistant(content string) {
	s.History = append(s.History, llm.Message{Role: llm.RoleAssistant, Content: content})
	s.UpdatedAt = time.Now().UTC()
}

// Cap trims history to the most recent pairs user/assistant exchanges
// (2*pairs messages). Non-positive pairs leaves history untouched.
func (s *Session) Cap(pairs int) {
	if pairs <= 0 {
		return
	}
	max := pairs * 2
	if len(s.History) > max {
		s.History = append([]llm.Message(nil), s.History[len(s.History)-max:]...)
	}
}

// RetryLast drops the trailing assistant turn and returns the user message
// to resubmit. Returns false when there is nothing to retry.
func (s *Session) RetryLast() (string, bool) {
	n := len(s.History)
	if n >= 2 && s.History[n-1].Role == llm.RoleAssistant && s.History[n-2].Role == llm.RoleUser {
		user := s.History[n-2].Content
		s.History = s.History[:n-2]
		return user, true
	}
	if n >= 1 && s.History[n-1].Role == llm.RoleUser {
		user := s.History[n-1].Content
		s.History = s.History[:n-1]
		return user, true
	}
	return "", false
}

// DropLastExchange removes the most recent user turn and any reply to it,
// so an edited version can be resubmitted. Returns false when there is no
// user turn to drop.
func (s *Session) DropLastExchange() bool {
	_, ok := s.RetryLast()
	return ok
}

// Save writes the session as <dir>/<id>.json, creating dir as needed.
func (s *Session) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("session: create dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	path := filepath.Join(dir, s.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("session: write %s: %w", path, err)
	}
	return nil
}

// Load reads a session by ID from dir.
func Load(dir, id string) (*Session, error) {
	path := filepath.Join(dir, id+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", path, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("session: parse %s: %w", path, err)
	}
	return &s, nil
}

// List returns the session IDs found in dir, most recently updated first.
// A missing directory yields an empty list.
func List(dir string) ([]*Session, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: read dir %s: %w", dir, err)
	}

	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		s, err := Load(dir, strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}
