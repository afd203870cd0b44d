// Package cli implements the reverie CLI commands.
package cli

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bcraddock/reverie/common/version"
	"github.com/bcraddock/reverie/internal/reverie/budget"
	"github.com/bcraddock/reverie/internal/reverie/character"
	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/lexicon"
	"github.com/bcraddock/reverie/internal/reverie/memory"
	"github.com/bcraddock/reverie/internal/reverie/observability"
	"github.com/bcraddock/reverie/internal/reverie/vectorindex"
)

var (
	configPath    string
	characterPath string

	settings config.Settings
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:     "reverie",
	Short:   "Memory-backed role-play character engine",
	Long:    "Reverie retrieves character memories by vector similarity and lexical tag matching, fits them into the model's context budget, and chats through any OpenAI-compatible endpoint.",
	Version: version.Info(),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Missing .env is fine; explicit env vars still apply.
		_ = godotenv.Load()
		settings = config.Load(configPath)
		observability.Setup(settings.LogLevel, settings.LogFormat)
		slog.Debug("settings loaded", "summary", settings.Describe())
	},
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "reverie.yaml", "Settings file (YAML)")
	RootCmd.PersistentFlags().StringVarP(&characterPath, "character", "C", "", "Character folder (default: character_dir from settings)")
}

func characterDir() string {
	if characterPath != "" {
		return characterPath
	}
	return settings.CharacterDir
}

func openCharacter() (*character.Folder, character.Config, error) {
	folder, err := character.Open(characterDir())
	if err != nil {
		return nil, character.Config{}, err
	}
	cfg, err := folder.LoadConfig()
	if err != nil {
		return nil, character.Config{}, err
	}
	return folder, cfg, nil
}

// newEmbedder builds the HTTP embedder from settings.
func newEmbedder() memory.Embedder {
	return memory.NewHTTPEmbedder(memory.HTTPEmbedderConfig{
		BaseURL: settings.EmbeddingURL,
		APIKey:  settings.APIKey,
	})
}

// newRetriever loads the index artifacts for a character folder. A folder
// that has not been finalized yet yields a retriever with no index, which
// retrieves nothing instead of failing.
func newRetriever(folder *character.Folder) *memory.Retriever {
	r := &memory.Retriever{
		Embedder: newEmbedder(),
		Lemma:    lexicon.RuleLemmatizer{},
		Stop:     folder.Stopwords(),
		Aliases:  folder.Aliases(),
	}
	if index, err := vectorindex.ReadFile(folder.IndexPath()); err == nil {
		r.Index = index
	}
	if mapping, err := memory.LoadMapping(folder.MappingPath()); err == nil {
		r.Mapping = mapping
	}
	return r
}

// newCounter prefers the remote tokenizer when the LLM endpoint looks like a
// llama.cpp server, falling back to the heuristic.
func newCounter() budget.Counter {
	if url := tokenizeURL(settings.LLMURL); url != "" {
		return &budget.Remote{URL: url}
	}
	return budget.Heuristic{}
}

// tokenizeURL derives the llama.cpp /tokenize endpoint from the completions
// URL. Only local servers expose it; hosted APIs get the heuristic counter.
func tokenizeURL(completionsURL string) string {
	const suffix = "/v1/chat/completions"
	u, err := url.Parse(completionsURL)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host != "localhost" && host != "127.0.0.1" {
		return ""
	}
	if !strings.HasSuffix(completionsURL, suffix) {
		return ""
	}
	return strings.TrimSuffix(completionsURL, suffix) + "/tokenize"
}

func archivePath() string {
	if filepath.IsAbs(settings.ArchivePath) {
		return settings.ArchivePath
	}
	return filepath.Join(settings.SessionDir, settings.ArchivePath)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
