package finalize

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/character"
	"github.com/bcraddock/reverie/internal/reverie/memory"
	"github.com/bcraddock/reverie/internal/reverie/vectorindex"
)

type stubEmbedder struct {
	calls []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	s.calls = append(s.calls, text)
	return []float32{float32(len(text)), 1, 0}, nil
}

func writeJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupFolder(t *testing.T) *character.Folder {
	t.Helper()
	folder, err := character.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	writeJSON(t, filepath.Join(folder.TemplatesDir(), "person.json"), Template{
		Name: "person",
		Fields: []TemplateField{
			{Name: "summary", Usage: UsageBoth, Required: true},
			{Name: "detail", Usage: UsagePrompt},
			{Name: "keywords", Usage: UsageSearch},
		},
	})
	return folder
}

func newFinalizer(folder *character.Folder) (*Finalizer, *stubEmbedder) {
	emb := &stubEmbedder{}
	return &Finalizer{Folder: folder, Embedder: emb, Counter: budget.Heuristic{}}, emb
}

func TestFinalize_IndexesValidMemories(t *testing.T) {
	folder := setupFolder(t)
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "bob.json"), map[string]any{
		"template":   "person",
		"memory_id":  "m-bob",
		"tags":       []string{"Bob"},
		"importance": "High",
		"fields": map[string]any{
			"summary":  "Bob is a fisherman.",
			"detail":   "He lost his boat in the storm.",
			"keywords": "bob fisherman boat",
		},
	})

	fin, emb := newFinalizer(folder)
	res, err := fin.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Indexed != 1 || res.Skipped != 0 {
		t.Fatalf("result = %+v, want 1 indexed", res)
	}

	records, err := memory.LoadMapping(folder.MappingPath())
	if err != nil {
		t.Fatalf("LoadMapping: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("mapping = %d records, want 1", len(records))
	}
	rec := records[0]
	if rec.MemoryID != "m-bob" {
		t.Errorf("memory_id = %q", rec.MemoryID)
	}
	if rec.PromptText != "Bob is a fisherman. He lost his boat in the storm." {
		t.Errorf("prompt_text = %q", rec.PromptText)
	}
	if rec.SearchText != "Bob is a fisherman. bob fisherman boat" {
		t.Errorf("search_text = %q", rec.SearchText)
	}
	if rec.Importance != memory.ImportanceHigh {
		t.Errorf("importance = %q", rec.Importance)
	}
	if rec.TokenCount == 0 {
		t.Error("token_count not precomputed")
	}
	if len(emb.calls) != 1 || emb.calls[0] != rec.SearchText {
		t.Errorf("embedded %v, want the search text", emb.calls)
	}

	index, err := vectorindex.ReadFile(folder.IndexPath())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if index.Len() != len(records) {
		t.Errorf("index rows = %d, mapping = %d; must match", index.Len(), len(records))
	}
}

func TestFinalize_PerspectiveMarker(t *testing.T) {
	folder := setupFolder(t)
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "tale.json"), map[string]any{
		"template":    "person",
		"perspective": "lore",
		"fields":      map[string]any{"summary": "An old tale of the mill."},
	})

	fin, _ := newFinalizer(folder)
	if _, err := fin.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	records, err := memory.LoadMapping(folder.MappingPath())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(records[0].PromptText, "[PERSPECTIVE: Lore] ") {
		t.Errorf("prompt_text = %q, want perspective marker prefix", records[0].PromptText)
	}
	if records[0].EffectivePerspective() != memory.PerspectiveLore {
		t.Errorf("perspective = %q", records[0].EffectivePerspective())
	}
}

func TestFinalize_GeneratesMemoryID(t *testing.T) {
	folder := setupFolder(t)
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "anon.json"), map[string]any{
		"template": "person",
		"fields":   map[string]any{"summary": "No id authored."},
	})

	fin, _ := newFinalizer(folder)
	if _, err := fin.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	records, err := memory.LoadMapping(folder.MappingPath())
	if err != nil {
		t.Fatal(err)
	}
	if len(records[0].MemoryID) != 26 {
		t.Errorf("memory_id = %q, want a generated ULID", records[0].MemoryID)
	}
}

func TestFinalize_SkipsInvalidMemories(t *testing.T) {
	folder := setupFolder(t)
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "a_good.json"), map[string]any{
		"template": "person",
		"fields":   map[string]any{"summary": "Valid."},
	})
	// Missing the required summary field.
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "b_invalid.json"), map[string]any{
		"template": "person",
		"fields":   map[string]any{"detail": "No summary."},
	})
	// References a template that does not exist.
	writeJSON(t, filepath.Join(folder.MemoriesDir(), "c_unknown.json"), map[string]any{
		"template": "creature",
		"fields":   map[string]any{"summary": "Orphaned."},
	})
	if err := os.WriteFile(filepath.Join(folder.MemoriesDir(), "d_garbage.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	fin, _ := newFinalizer(folder)
	res, err := fin.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Indexed != 1 || res.Skipped != 3 {
		t.Errorf("result = %+v, want 1 indexed and 3 skipped", res)
	}
}

func TestFinalize_EmptyFolder(t *testing.T) {
	folder := setupFolder(t)
	fin, _ := newFinalizer(folder)
	res, err := fin.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Indexed != 0 {
		t.Errorf("result = %+v, want nothing indexed", res)
	}
	if _, err := os.Stat(folder.IndexPath()); !os.IsNotExist(err) {
		t.Error("index file written for an empty folder")
	}
}
