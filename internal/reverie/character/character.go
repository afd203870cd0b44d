// Package character reads and writes a character folder: the JSON config,
// the alias map and stopword list, the memory files, and the retrieval
// index artifacts produced by the finalize pass.
package character

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bcraddock/reverie/internal/reverie/lexicon"
)

// Config is the character_config.json document. Authored by an external
// editor; the core only reads it.
type Config struct {
	CharacterName        string `json:"character_name"`
	CharacterDescription string `json:"character_description"`
	UserName             string `json:"user_name"`
	UserDescription      string `json:"user_description"`
	Scenario             string `json:"scenario"`

	// Prefix is the persona and style instruction block placed first in
	// the system message.
	Prefix string `json:"prefix"`
}

// Folder is a character directory on disk. All paths hang off Root.
type Folder struct {
	Root string
}

// Open returns a Folder for dir after checking the directory exists.
func Open(dir string) (*Folder, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("character: open folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("character: %s is not a directory", dir)
	}
	return &Folder{Root: dir}, nil
}

func (f *Folder) ConfigPath() string    { return filepath.Join(f.Root, "character_config.json") }
func (f *Folder) AliasMapPath() string  { return filepath.Join(f.Root, "alias_map.json") }
func (f *Folder) StopwordsPath() string { return filepath.Join(f.Root, "stopwords.txt") }
func (f *Folder) IndexPath() string     { return filepath.Join(f.Root, "memory_index.bin") }
func (f *Folder) MappingPath() string   { return filepath.Join(f.Root, "memory_mapping.json") }
func (f *Folder) MemoriesDir() string   { return filepath.Join(f.Root, "Memories") }
func (f *Folder) TemplatesDir() string  { return filepath.Join(f.Root, "Memory_Templates") }

// LoadConfig reads character_config.json. A missing file is an error: a
// folder without a config is not a character.
func (f *Folder) LoadConfig() (Config, error) {
	data, err := os.ReadFile(f.ConfigPath())
	if err != nil {
		return Config{}, fmt.Errorf("character: read config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("character: parse config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes character_config.json.
func (f *Folder) SaveConfig(cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("character: marshal config: %w", err)
	}
	if err := os.WriteFile(f.ConfigPath(), data, 0o644); err != nil {
		return fmt.Errorf("character: write config: %w", err)
	}
	return nil
}

// Aliases loads the alias map. Absence yields an empty map.
func (f *Folder) Aliases() lexicon.AliasMap {
	return lexicon.LoadAliasMap(f.AliasMapPath())
}

// Stopwords loads the stopword list. Absence yields an empty set.
func (f *Folder) Stopwords() lexicon.Stopwords {
	return lexicon.LoadStopwords(f.StopwordsPath())
}
