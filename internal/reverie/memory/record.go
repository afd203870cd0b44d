// Package memory implements character memory records and the relevance
// scorer that selects them for a chat turn.
//
// Records are produced by the offline finalize pass and persisted as a JSON
// mapping array whose positions join 1:1 with rows in the vector index. At
// retrieval time records are treated as immutable; the only mutation is the
// alias-clarification line appended to a copy of the top-ranked selection.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// Importance is the author-assigned weight of a memory. Informational only;
// it does not participate in scoring.
type Importance string

const (
	ImportanceLow    Importance = "Low"
	ImportanceMedium Importance = "Medium"
	ImportanceHigh   Importance = "High"
)

// ParseImportance normalizes an importance string, defaulting to Medium.
func ParseImportance(s string) Importance {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return ImportanceLow
	case "high":
		return ImportanceHigh
	default:
		return ImportanceMedium
	}
}

// Perspective describes how the character knows a memory.
type Perspective string

const (
	PerspectiveFirstHand  Perspective = "First Hand"
	PerspectiveSecondHand Perspective = "Second Hand"
	PerspectiveLore       Perspective = "Lore"
	PerspectiveUnknown    Perspective = "Unknown"
)

// ParsePerspective normalizes a perspective string, defaulting to Unknown.
func ParsePerspective(s string) Perspective {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "first hand", "firsthand", "first-hand":
		return PerspectiveFirstHand
	case "second hand", "secondhand", "second-hand":
		return PerspectiveSecondHand
	case "lore":
		return PerspectiveLore
	default:
		return PerspectiveUnknown
	}
}

// perspectiveMarker matches the [PERSPECTIVE: ...] line the finalizer embeds
// in prompt text.
var perspectiveMarker = regexp.MustCompile(`\[PERSPECTIVE:\s*([^\]]+)\]`)

// Record is one persisted chunk of character backstory.
type Record struct {
	MemoryID    string      `json:"memory_id"`
	PromptText  string      `json:"prompt_text"`
	SearchText  string      `json:"search_text"`
	Tags        []string    `json:"tags"`
	Importance  Importance  `json:"importance"`
	Perspective Perspective `json:"perspective,omitempty"`
	TokenCount  int         `json:"token_count"`
}

// EffectivePerspective returns the explicit perspective field when set, and
// otherwise parses the [PERSPECTIVE: ...] marker from the prompt text.
func (r Record) EffectivePerspective() Perspective {
	if r.Perspective != "" {
		return ParsePerspective(string(r.Perspective))
	}
	if m := perspectiveMarker.FindStringSubmatch(r.PromptText); m != nil {
		return ParsePerspective(m[1])
	}
	return PerspectiveUnknown
}

// LoadMapping reads the mapping JSON array that joins index rows to records.
func LoadMapping(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("memory: read mapping %s: %w", path, err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("memory: parse mapping %s: %w", path, err)
	}
	return records, nil
}

// SaveMapping writes the mapping JSON array. Used by the finalize pass.
func SaveMapping(path string, records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("memory: marshal mapping: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("memory: write mapping %s: %w", path, err)
	}
	return nil
}
