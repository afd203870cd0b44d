// Package config defines the Settings value object shared by the retrieval,
// budgeting, and assembly pipeline.
//
// Settings are plain data: constructed once at the CLI boundary (defaults ←
// YAML file ← REVERIE_* environment variables) and passed down by value
// through every call. Nothing deeper in the pipeline reaches back into a
// mutable settings store.
//
// Every numeric knob is coerced with a default rather than validated: a
// malformed value in the settings file degrades to the documented default and
// is never surfaced as an error.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bcraddock/reverie/common/environment"
)

// Defaults for the retrieval and generation knobs. These mirror the values
// the tool ships with before any settings file exists.
const (
	DefaultTopK                = 5
	DefaultSimilarityThreshold = 0.7
	DefaultMemoryBoost         = 0.5
	DefaultTemperature         = 0.7
	DefaultChatHistoryLength   = 20
	DefaultTokenBuffer         = 50
	DefaultCompressionRatio    = 0.25
	DefaultCompressionFloor    = 64
	DefaultLLMURL              = "http://localhost:8080/v1/chat/completions"
	DefaultEmbeddingURL        = "http://localhost:8080/v1"
	DefaultCharacterDir        = "Character"
	DefaultSessionDir          = "Sessions"
)

// UnlimitedTokens is the effective budget used when no token limit is
// configured. Large enough that no overhead computation can exhaust it,
// small enough that int arithmetic never overflows.
const UnlimitedTokens = 1 << 30

// Settings is the per-turn configuration bundle for a chat pipeline run.
type Settings struct {
	// Endpoint and model selection.
	LLMURL       string
	EmbeddingURL string
	APIKey       string
	Model        string

	// Generation parameters forwarded to the completion endpoint.
	Temperature      float64
	FrequencyPenalty float64
	PresencePenalty  float64

	// Token budgeting.
	MaxTokens    int
	NoTokenLimit bool
	TokenBuffer  int

	// Rolling history cap, in user/assistant pairs. Zero disables history.
	ChatHistoryLength int

	// Memory retrieval.
	TopK                int
	SimilarityThreshold float64
	MemoryBoost         float64

	// Context compression.
	CompressContext  bool
	CompressionRatio float64
	CompressionFloor int

	// Observability.
	DebugMode    bool
	DebugVerbose bool
	LogLevel     string
	LogFormat    string

	// Filesystem roots.
	CharacterDir string
	SessionDir   string
	ArchivePath  string
}

// Defaults returns the settings the tool runs with when no file and no
// environment overrides are present.
func Defaults() Settings {
	return Settings{
		LLMURL:              DefaultLLMURL,
		EmbeddingURL:        DefaultEmbeddingURL,
		Temperature:         DefaultTemperature,
		TokenBuffer:         DefaultTokenBuffer,
		ChatHistoryLength:   DefaultChatHistoryLength,
		TopK:                DefaultTopK,
		SimilarityThreshold: DefaultSimilarityThreshold,
		MemoryBoost:         DefaultMemoryBoost,
		CompressionRatio:    DefaultCompressionRatio,
		CompressionFloor:    DefaultCompressionFloor,
		LogLevel:            "info",
		LogFormat:           "text",
		CharacterDir:        DefaultCharacterDir,
		SessionDir:          DefaultSessionDir,
		ArchivePath:         "reverie.db",
	}
}

// Load builds Settings from defaults, the YAML file at path (skipped with a
// warn log when absent or unreadable), and REVERIE_* environment overrides.
// It never returns an error: configuration problems degrade to defaults.
func Load(path string) Settings {
	s := Defaults()

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			applyFile(&s, data)
		} else if !os.IsNotExist(err) {
			slog.Warn("config: settings file unreadable, using defaults", "path", path, "err", err)
		}
	}

	applyEnv(&s)
	return s
}

// applyFile merges a YAML document into s. The document is decoded into a
// loose map so that a single malformed value degrades to its default instead
// of failing the whole file.
func applyFile(s *Settings, data []byte) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		slog.Warn("config: settings file is not valid YAML, using defaults", "err", err)
		return
	}

	s.LLMURL = coerceString(raw["llm_url"], s.LLMURL)
	s.EmbeddingURL = coerceString(raw["embedding_url"], s.EmbeddingURL)
	s.Model = coerceString(raw["model"], s.Model)
	s.Temperature = coerceFloat(raw["temperature"], s.Temperature)
	s.FrequencyPenalty = coerceFloat(raw["frequency_penalty"], s.FrequencyPenalty)
	s.PresencePenalty = coerceFloat(raw["presence_penalty"], s.PresencePenalty)
	s.MaxTokens = coerceInt(raw["max_tokens"], s.MaxTokens)
	s.NoTokenLimit = coerceBool(raw["no_token_limit"], s.NoTokenLimit)
	s.TokenBuffer = coerceInt(raw["token_buffer"], s.TokenBuffer)
	s.ChatHistoryLength = coerceInt(raw["chat_history_length"], s.ChatHistoryLength)
	s.TopK = coerceInt(raw["top_k"], s.TopK)
	s.SimilarityThreshold = coerceFloat(raw["similarity_threshold"], s.SimilarityThreshold)
	s.MemoryBoost = coerceFloat(raw["memory_boost"], s.MemoryBoost)
	s.CompressContext = coerceBool(raw["compress_context"], s.CompressContext)
	s.CompressionRatio = coerceFloat(raw["compression_ratio"], s.CompressionRatio)
	s.CompressionFloor = coerceInt(raw["compression_floor"], s.CompressionFloor)
	s.DebugMode = coerceBool(raw["debug_mode"], s.DebugMode)
	s.DebugVerbose = coerceBool(raw["debug_verbose"], s.DebugVerbose)
	s.LogLevel = coerceString(raw["log_level"], s.LogLevel)
	s.LogFormat = coerceString(raw["log_format"], s.LogFormat)
	s.CharacterDir = coerceString(raw["character_dir"], s.CharacterDir)
	s.SessionDir = coerceString(raw["session_dir"], s.SessionDir)
	s.ArchivePath = coerceString(raw["archive_path"], s.ArchivePath)
}

// applyEnv layers REVERIE_* environment variables on top of s.
func applyEnv(s *Settings) {
	s.LLMURL = environment.StringOr("REVERIE_LLM_URL", s.LLMURL)
	s.EmbeddingURL = environment.StringOr("REVERIE_EMBEDDING_URL", s.EmbeddingURL)
	s.APIKey = environment.StringOr("REVERIE_API_KEY", s.APIKey)
	s.Model = environment.StringOr("REVERIE_MODEL", s.Model)
	s.Temperature = environment.FloatOr("REVERIE_TEMPERATURE", s.Temperature)
	s.MaxTokens = environment.IntOr("REVERIE_MAX_TOKENS", s.MaxTokens)
	s.NoTokenLimit = environment.BoolOr("REVERIE_NO_TOKEN_LIMIT", s.NoTokenLimit)
	s.ChatHistoryLength = environment.IntOr("REVERIE_CHAT_HISTORY_LENGTH", s.ChatHistoryLength)
	s.TopK = environment.IntOr("REVERIE_TOP_K", s.TopK)
	s.SimilarityThreshold = environment.FloatOr("REVERIE_SIMILARITY_THRESHOLD", s.SimilarityThreshold)
	s.MemoryBoost = environment.FloatOr("REVERIE_MEMORY_BOOST", s.MemoryBoost)
	s.CompressContext = environment.BoolOr("REVERIE_COMPRESS_CONTEXT", s.CompressContext)
	s.DebugMode = environment.BoolOr("REVERIE_DEBUG", s.DebugMode)
	s.DebugVerbose = environment.BoolOr("REVERIE_DEBUG_VERBOSE", s.DebugVerbose)
	s.LogLevel = environment.StringOr("REVERIE_LOG_LEVEL", s.LogLevel)
	s.LogFormat = environment.StringOr("REVERIE_LOG_FORMAT", s.LogFormat)
	s.CharacterDir = environment.StringOr("REVERIE_CHARACTER_DIR", s.CharacterDir)
	s.SessionDir = environment.StringOr("REVERIE_SESSION_DIR", s.SessionDir)
	s.ArchivePath = environment.StringOr("REVERIE_ARCHIVE_PATH", s.ArchivePath)
}

// EffectiveTopK returns the retrieval candidate count, coerced to a positive
// integer with the documented default.
func (s Settings) EffectiveTopK() int {
	if s.TopK <= 0 {
		return DefaultTopK
	}
	return s.TopK
}

// EffectiveMaxTokens maps the "no limit" sentinel (or a non-positive
// max_tokens) to an effectively unbounded budget. Never zero.
func (s Settings) EffectiveMaxTokens() int {
	if s.NoTokenLimit || s.MaxTokens <= 0 {
		return UnlimitedTokens
	}
	return s.MaxTokens
}

// Unlimited reports whether the token budget is effectively unbounded.
func (s Settings) Unlimited() bool {
	return s.NoTokenLimit || s.MaxTokens <= 0
}

// --- loose-typed coercion helpers ---

func coerceString(v any, def string) string {
	if str, ok := v.(string); ok && str != "" {
		return str
	}
	return def
}

func coerceInt(v any, def int) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case string:
		if parsed, err := strconv.Atoi(n); err == nil {
			return parsed
		}
	}
	return def
}

func coerceFloat(v any, def float64) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		if parsed, err := strconv.ParseFloat(n, 64); err == nil {
			return parsed
		}
	}
	return def
}

func coerceBool(v any, def bool) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		if parsed, err := strconv.ParseBool(b); err == nil {
			return parsed
		}
	}
	return def
}

// Describe returns a short single-line summary suitable for debug logs.
func (s Settings) Describe() string {
	max := "unlimited"
	if !s.Unlimited() {
		max = strconv.Itoa(s.MaxTokens)
	}
	return fmt.Sprintf("model=%s top_k=%d threshold=%.2f boost=%.2f max_tokens=%s",
		s.Model, s.EffectiveTopK(), s.SimilarityThreshold, s.MemoryBoost, max)
}
