package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bcraddock/reverie/internal/reverie/llm"
)

// Archive stores sealed sessions in SQLite with a transcript summary and an
// optional embedding for later similarity lookup.
//
// Search is brute-force cosine similarity computed in Go: modernc.org/sqlite
// cannot load vector extensions, and at the expected scale (hundreds of
// sealed sessions) loading all embeddings is fast enough.
type Archive struct {
	db     *sql.DB
	logger *slog.Logger
}

// ArchiveEntry is one sealed session.
type ArchiveEntry struct {
	SessionID     string
	CharacterName string
	Summary       string
	Embedding     []float32
	Messages      []llm.Message
	SealedAt      time.Time
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS sealed_sessions (
	session_id     TEXT PRIMARY KEY,
	character_name TEXT NOT NULL,
	summary        TEXT NOT NULL,
	embedding      BLOB,
	messages       BLOB,
	sealed_at      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sealed_sessions_character
	ON sealed_sessions (character_name, sealed_at DESC);
`

// OpenArchive opens (creating if needed) the archive database at path.
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("archive: open database: %w", err)
	}

	// SQLite is single-writer. One shared connection serializes callers
	// through database/sql instead of letting them fight for write locks.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("archive: set pragma: %w", err)
		}
	}

	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: create schema: %w", err)
	}

	return &Archive{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (a *Archive) Close() error {
	return a.db.Close()
}

// Store persists a sealed session, replacing any previous seal of the same
// session ID.
func (a *Archive) Store(ctx context.Context, entry ArchiveEntry) error {
	var embeddingJSON []byte
	if entry.Embedding != nil {
		var err error
		embeddingJSON, err = json.Marshal(entry.Embedding)
		if err != nil {
			return fmt.Errorf("archive: marshal embedding: %w", err)
		}
	}
	var messagesJSON []byte
	if len(entry.Messages) > 0 {
		var err error
		messagesJSON, err = json.Marshal(entry.Messages)
		if err != nil {
			return fmt.Errorf("archive: marshal messages: %w", err)
		}
	}

	_, err := a.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO sealed_sessions
			(session_id, character_name, summary, embedding, messages, sealed_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.CharacterName,
		entry.Summary,
		embeddingJSON,
		messagesJSON,
		entry.SealedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("archive: insert sealed session: %w", err)
	}

	a.logger.Debug("archive: stored sealed session",
		"session_id", entry.SessionID,
		"character", entry.CharacterName,
		"summary_len", len(entry.Summary),
		"has_embedding", entry.Embedding != nil,
	)
	return nil
}

// Recent returns the most recently sealed sessions for a character.
func (a *Archive) Recent(ctx context.Context, characterName string, limit int) ([]ArchiveEntry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, character_name, summary, embedding, messages, sealed_at
		FROM sealed_sessions
		WHERE character_name = ?
		ORDER BY sealed_at DESC
		LIMIT ?`,
		characterName, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: query sealed sessions: %w", err)
	}
	defer rows.Close()
	return a.collect(rows)
}

// SearchByEmbedding returns the topK sealed sessions most similar to the
// query embedding, by cosine similarity.
func (a *Archive) SearchByEmbedding(ctx context.Context, queryEmbedding []float32, characterName string, topK int) ([]ArchiveEntry, error) {
	if topK <= 0 || len(queryEmbedding) == 0 {
		return nil, nil
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT session_id, character_name, summary, embedding, messages, sealed_at
		FROM sealed_sessions
		WHERE character_name = ? AND embedding IS NOT NULL
		ORDER BY sealed_at DESC`,
		characterName,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: query sealed sessions: %w", err)
	}
	defer rows.Close()

	entries, err := a.collect(rows)
	if err != nil {
		return nil, err
	}

	type scored struct {
		entry ArchiveEntry
		score float64
	}
	var candidates []scored
	for _, e := range entries {
		if len(e.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, scored{entry: e, score: cosineSimilarity(queryEmbedding, e.Embedding)})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	out := make([]ArchiveEntry, topK)
	for i := range out {
		out[i] = candidates[i].entry
	}
	return out, nil
}

func (a *Archive) collect(rows *sql.Rows) ([]ArchiveEntry, error) {
	var entries []ArchiveEntry
	for rows.Next() {
		entry, err := scanArchiveEntry(rows)
		if err != nil {
			a.logger.Warn("archive: skip malformed row", "err", err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("archive: iterate rows: %w", err)
	}
	return entries, nil
}

func scanArchiveEntry(rows *sql.Rows) (ArchiveEntry, error) {
	var (
		entry         ArchiveEntry
		embeddingJSON sql.NullString
		messagesJSON  sql.NullString
		sealedAt      string
	)
	if err := rows.Scan(&entry.SessionID, &entry.CharacterName, &entry.Summary,
		&embeddingJSON, &messagesJSON, &sealedAt); err != nil {
		return ArchiveEntry{}, fmt.Errorf("scan row: %w", err)
	}

	if embeddingJSON.Valid && embeddingJSON.String != "" {
		if err := json.Unmarshal([]byte(embeddingJSON.String), &entry.Embedding); err != nil {
			return ArchiveEntry{}, fmt.Errorf("parse embedding: %w", err)
		}
	}
	if messagesJSON.Valid && messagesJSON.String != "" {
		if err := json.Unmarshal([]byte(messagesJSON.String), &entry.Messages); err != nil {
			return ArchiveEntry{}, fmt.Errorf("parse messages: %w", err)
		}
	}

	t, err := time.Parse(time.RFC3339, sealedAt)
	if err != nil {
		return ArchiveEntry{}, fmt.Errorf("parse sealed_at: %w", err)
	}
	entry.SealedAt = t
	return entry, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
