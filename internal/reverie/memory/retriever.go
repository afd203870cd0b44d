package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/bcraddock/reverie/internal/reverie/config"
	"github.com/bcraddock/reverie/internal/reverie/lexicon"
	"github.com/bcraddock/reverie/internal/reverie/vectorindex"
)

// Retriever selects the memory records most relevant to a user message by
// combining vector similarity with lexical tag-overlap boosting.
//
// The debug trace it returns is advisory only: it is rendered for the user
// when debug mode is on and never influences which memories are selected.
type Retriever struct {
	Index    *vectorindex.Flat
	Mapping  []Record
	Embedder Embedder

	Lemma   lexicon.Lemmatizer
	Stop    lexicon.Stopwords
	Aliases lexicon.AliasMap

	Logger *slog.Logger
}

// candidate pairs a record with its scoring breakdown during selection.
type candidate struct {
	record     Record
	similarity float64
	boost      float64
	score      float64
	matched    []string
}

// Retrieve runs the scoring pipeline for a user message. Failures never
// propagate: a missing index or mapping, a noop embedder, or an embedding
// error all yield an empty selection (with an explanatory trace in debug
// mode) so the chat turn can proceed without memories.
func (r *Retriever) Retrieve(ctx context.Context, userMessage string, settings config.Settings) ([]Record, []string) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	topK := settings.EffectiveTopK()
	threshold := settings.SimilarityThreshold
	boostFactor := settings.MemoryBoost
	debug := settings.DebugMode

	var trace []string
	traced := func(format string, args ...any) {
		if debug {
			trace = append(trace, fmt.Sprintf(format, args...))
		}
	}

	if r.Index == nil || r.Index.Len() == 0 || len(r.Mapping) == 0 {
		logger.Warn("retrieve: index or mapping missing, returning no memories")
		traced("Index or mapping missing; no memories retrieved.")
		return nil, trace
	}
	if r.Embedder == nil {
		traced("No embedder configured; no memories retrieved.")
		return nil, trace
	}

	// Emphasize explicit questions in the query embedding.
	query := EmphasizedQuery(userMessage)
	vec, err := r.Embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("retrieve: query embedding failed", "err", err)
		traced("Query embedding failed: %v", err)
		return nil, trace
	}
	if vec == nil {
		traced("Embedder returned no vector; no memories retrieved.")
		return nil, trace
	}

	scores, indices := r.Index.Search(vec, topK)
	keywords := lexicon.Normalize(userMessage, r.Stop, r.Aliases, r.Lemma)

	var passed []candidate
	for i, idx := range indices {
		// A stale index can return rows past the end of the mapping; skip
		// them rather than failing the whole retrieval.
		if idx >= len(r.Mapping) {
			logger.Warn("retrieve: index row out of mapping range, skipping",
				"row", idx, "mapping_len", len(r.Mapping))
			traced("Row %d: out of mapping range (mapping has %d entries), skipped.", idx, len(r.Mapping))
			continue
		}

		rec := r.Mapping[idx]
		matched := matchedTagWords(rec.Tags, keywords, r.Aliases, r.Lemma)

		similarity := float64(scores[i])
		boost := boostFactor * float64(len(matched))
		score := similarity + boost

		// The threshold applies to the boosted score so tag overlap can
		// rescue a below-threshold semantic match.
		kept := score >= threshold
		traced("Chunk %s: Base = %.4f, Boost = %.4f, Total = %.4f", rec.MemoryID, similarity, boost, score)
		traced("  Matched words: %s", joinOrNone(matched))
		if kept {
			traced("  Passed threshold")
			passed = append(passed, candidate{
				record:     rec,
				similarity: similarity,
				boost:      boost,
				score:      score,
				matched:    matched,
			})
		} else {
			traced("  Rejected: score below threshold")
		}
	}

	// Stable sort keeps the nearest-neighbor order for equal scores.
	sort.SliceStable(passed, func(i, j int) bool {
		return passed[i].score > passed[j].score
	})
	if len(passed) > topK {
		passed = passed[:topK]
	}

	selected := make([]Record, len(passed))
	for i, c := range passed {
		selected[i] = c.record
	}

	r.injectAliasClarifications(selected, keywords)

	traced("Similarity Threshold: %v", threshold)
	traced("Top K (Memory Chunks): %d", topK)
	traced("Returned %d memory chunk(s) after filtering.", len(selected))

	logger.Debug("retrieve: selection complete",
		"candidates", len(indices), "selected", len(selected), "top_k", topK)

	return selected, trace
}

// matchedTagWords intersects a record's canonicalized tag words with the
// normalized message keywords, checking plain and capitalized-variant forms.
// The result is sorted for deterministic traces.
func matchedTagWords(tags []string, keywords lexicon.TokenSet, aliases lexicon.AliasMap, lemma lexicon.Lemmatizer) []string {
	tagWords := lexicon.CanonicalTagWords(tags, aliases, lemma)
	var matched []string
	for w := range tagWords {
		if keywords.Has(w) {
			matched = append(matched, w)
		}
	}
	sort.Strings(matched)
	return matched
}

// injectAliasClarifications appends one "X also goes by the names A, B."
// line to the top-ranked selected memory for every alias root the user
// actually mentioned. Roots absent from the normalized message never
// trigger an injection, and no root is injected more than once.
func (r *Retriever) injectAliasClarifications(selected []Record, keywords lexicon.TokenSet) {
	if len(selected) == 0 || len(r.Aliases) == 0 {
		return
	}
	lemma := r.Lemma
	if lemma == nil {
		lemma = lexicon.RuleLemmatizer{}
	}

	var lines []string
	for _, root := range r.Aliases.Roots() {
		if !rootMentioned(root, keywords, lemma) {
			continue
		}
		aliases := r.Aliases[root]
		if len(aliases) == 0 {
			continue
		}
		names := make([]string, len(aliases))
		for i, a := range aliases {
			names[i] = capitalizeFirst(a)
		}
		lines = append(lines, fmt.Sprintf("%s also goes by the names %s.",
			capitalizeFirst(root), strings.Join(names, ", ")))
	}
	if len(lines) == 0 {
		return
	}

	selected[0].PromptText = strings.TrimRight(selected[0].PromptText, "\n") +
		"\n" + strings.Join(lines, "\n")
}

// rootMentioned reports whether every word of the root tag appears in the
// normalized message keywords.
func rootMentioned(root string, keywords lexicon.TokenSet, lemma lexicon.Lemmatizer) bool {
	words := lexicon.Tokenize(root)
	if len(words) == 0 {
		return false
	}
	for _, w := range words {
		if !keywords.Has(lemma.Lemmatize(w)) {
			return false
		}
	}
	return true
}

func joinOrNone(words []string) string {
	if len(words) == 0 {
		return "(none)"
	}
	return strings.Join(words, ", ")
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
