// Package finalize builds the retrieval artifacts for a character folder:
// it validates every memory file against its template, composes search and
// prompt text, embeds the search text, and writes the vector index and the
// parallel mapping file.
package finalize

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/character"
	"github.com/bcraddock/reverie/internal/reverie/memory"
	"github.com/bcraddock/reverie/internal/reverie/vectorindex"
)

// memoryFile is the authored shape of one memory JSON document.
type memoryFile struct {
	Template    string         `json:"template"`
	MemoryID    string         `json:"memory_id,omitempty"`
	Tags        []string       `json:"tags,omitempty"`
	Importance  string         `json:"importance,omitempty"`
	Perspective string         `json:"perspective,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// Finalizer runs the offline indexing pass over a character folder.
type Finalizer struct {
	Folder   *character.Folder
	Embedder memory.Embedder
	Counter  budget.Counter
	Logger   *slog.Logger
}

// Result summarizes one finalize run.
type Result struct {
	Indexed int
	Skipped int
}

// Run validates and indexes every memory in the folder, then writes
// memory_index.bin and memory_mapping.json side by side. Invalid memories
// are skipped with a warning; embedding failure aborts the run since a
// partial index would desync from the mapping.
func (f *Finalizer) Run(ctx context.Context) (Result, error) {
	logger := f.Logger
	if logger == nil {
		logger = slog.Default()
	}

	templates, err := LoadTemplates(f.Folder.TemplatesDir())
	if err != nil {
		return Result{}, err
	}

	paths, err := memoryPaths(f.Folder.MemoriesDir())
	if err != nil {
		return Result{}, err
	}

	var (
		result  Result
		records []memory.Record
		vectors [][]float32
	)
	for _, path := range paths {
		rec, vec, err := f.indexOne(ctx, path, templates)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			logger.Warn("finalize: skipping memory", "path", path, "err", err)
			result.Skipped++
			continue
		}
		records = append(records, rec)
		vectors = append(vectors, vec)
		result.Indexed++
	}

	if len(records) == 0 {
		logger.Warn("finalize: no valid memories, nothing written")
		return result, nil
	}

	index := vectorindex.NewFlat(len(vectors[0]))
	for i, vec := range vectors {
		if err := index.Add(vec); err != nil {
			return Result{}, fmt.Errorf("finalize: add vector for %s: %w", records[i].MemoryID, err)
		}
	}

	// The mapping length must equal the index row count; write both or
	// neither.
	if err := index.WriteFile(f.Folder.IndexPath()); err != nil {
		return Result{}, err
	}
	if err := memory.SaveMapping(f.Folder.MappingPath(), records); err != nil {
		return Result{}, err
	}

	logger.Info("finalize: index written",
		"indexed", result.Indexed, "skipped", result.Skipped, "dim", index.Dim())
	return result, nil
}

func (f *Finalizer) indexOne(ctx context.Context, path string, templates map[string]*Template) (memory.Record, []float32, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return memory.Record{}, nil, fmt.Errorf("read: %w", err)
	}
	var mf memoryFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return memory.Record{}, nil, fmt.Errorf("parse: %w", err)
	}

	tmpl, ok := templates[mf.Template]
	if !ok {
		return memory.Record{}, nil, fmt.Errorf("unknown template %q", mf.Template)
	}
	if err := tmpl.Validate(mf.Fields); err != nil {
		return memory.Record{}, nil, err
	}

	searchText := tmpl.SearchText(mf.Fields)
	promptText := tmpl.PromptText(mf.Fields)
	if searchText == "" {
		return memory.Record{}, nil, fmt.Errorf("memory has no searchable text")
	}

	perspective := memory.ParsePerspective(mf.Perspective)
	if mf.Perspective != "" {
		promptText = fmt.Sprintf("[PERSPECTIVE: %s] %s", perspective, promptText)
	}

	id := mf.MemoryID
	if id == "" {
		id = ulid.Make().String()
	}

	vec, err := f.Embedder.Embed(ctx, searchText)
	if err != nil {
		return memory.Record{}, nil, fmt.Errorf("embed: %w", err)
	}
	if len(vec) == 0 {
		return memory.Record{}, nil, fmt.Errorf("embedder returned no vector")
	}

	rec := memory.Record{
		MemoryID:   id,
		PromptText: promptText,
		SearchText: searchText,
		Tags:       mf.Tags,
		Importance: memory.ParseImportance(mf.Importance),
		TokenCount: f.Counter.Count(promptText),
	}
	if mf.Perspective != "" {
		rec.Perspective = perspective
	}
	return rec, vec, nil
}

// memoryPaths lists the memory JSON files in dir, sorted by name so index
// row order is deterministic across runs. A missing directory is empty.
func memoryPaths(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize: read memories dir %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
