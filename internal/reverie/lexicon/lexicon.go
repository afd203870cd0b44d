// Package lexicon normalizes free text into comparable keyword sets for
// lexical tag matching.
//
// Normalization runs alias canonicalization (whole-phrase substitution),
// tokenization, stopword filtering, and lemmatization, and tracks which
// tokens appeared capitalized in the source so proper-noun mentions can be
// matched preferentially. The emphasis is realized purely through set
// membership, not a numeric weight.
package lexicon

import (
	"sort"
	"strings"
	"unicode"
)

// Lemmatizer reduces an inflected word to its canonical form. The production
// lemmatizer is an external collaborator; RuleLemmatizer is the built-in
// stand-in.
type Lemmatizer interface {
	Lemmatize(word string) string
}

// RuleLemmatizer is a deterministic English suffix stripper. It covers the
// common plural and participle endings well enough for tag matching; it is
// not a full morphological analyzer.
type RuleLemmatizer struct{}

// Lemmatize strips common English suffixes from a lowercase word.
func (RuleLemmatizer) Lemmatize(word string) string {
	w := strings.ToLower(word)
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 4 && strings.HasSuffix(w, "sses"):
		return w[:len(w)-2]
	case len(w) > 3 && (strings.HasSuffix(w, "xes") || strings.HasSuffix(w, "zes") ||
		strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes")):
		return w[:len(w)-2]
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") &&
		!strings.HasSuffix(w, "ss") && !strings.HasSuffix(w, "us"):
		return w[:len(w)-1]
	}
	return w
}

// TokenSet is the output of Normalize: the lemmatized keywords of a text,
// with a parallel record of which appeared capitalized in the source.
type TokenSet struct {
	plain       map[string]struct{}
	capitalized map[string]struct{}
}

// NewTokenSet returns an empty TokenSet.
func NewTokenSet() TokenSet {
	return TokenSet{
		plain:       make(map[string]struct{}),
		capitalized: make(map[string]struct{}),
	}
}

// Add records a lemmatized token, optionally flagging it as capitalized.
func (ts TokenSet) Add(token string, capitalized bool) {
	ts.plain[token] = struct{}{}
	if capitalized {
		ts.capitalized[token] = struct{}{}
	}
}

// Has reports whether the token is present in either the plain or the
// capitalized-variant form.
func (ts TokenSet) Has(token string) bool {
	if _, ok := ts.plain[token]; ok {
		return true
	}
	_, ok := ts.capitalized[token]
	return ok
}

// HasCapitalized reports whether the token appeared capitalized in the source.
func (ts TokenSet) HasCapitalized(token string) bool {
	_, ok := ts.capitalized[token]
	return ok
}

// Len returns the number of distinct plain tokens.
func (ts TokenSet) Len() int { return len(ts.plain) }

// Words returns the plain tokens in sorted order. Used by debug traces.
func (ts TokenSet) Words() []string {
	out := make([]string, 0, len(ts.plain))
	for w := range ts.plain {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// Normalize converts free text into a TokenSet: alias phrases are replaced by
// their root tags first (whole-phrase substitution on the lowercased text),
// then the result is tokenized on word boundaries, stopword-filtered, and
// lemmatized. Tokens whose source word was capitalized, and roots whose
// matched alias was capitalized, carry the capitalized flag.
func Normalize(text string, stop Stopwords, aliases AliasMap, lemma Lemmatizer) TokenSet {
	ts := NewTokenSet()
	if strings.TrimSpace(text) == "" {
		return ts
	}
	if lemma == nil {
		lemma = RuleLemmatizer{}
	}

	capWords := capitalizedWords(text)
	canon := aliases.Canonicalize(strings.ToLower(text))

	for _, tok := range Tokenize(canon) {
		if stop.Contains(tok) {
			continue
		}
		base := lemma.Lemmatize(tok)
		capitalized := false
		if _, ok := capWords[tok]; ok {
			capitalized = true
		} else if aliases.IsRoot(tok) {
			// The root may have been substituted in for a capitalized alias.
			for _, alias := range aliases[tok] {
				for _, aw := range Tokenize(alias) {
					if _, ok := capWords[aw]; ok {
						capitalized = true
					}
				}
			}
		}
		ts.Add(base, capitalized)
	}
	return ts
}

// CanonicalTagWords canonicalizes a memory's tags through the alias map and
// returns the set of lemmatized tag words, ready for intersection with a
// normalized message.
func CanonicalTagWords(tags []string, aliases AliasMap, lemma Lemmatizer) map[string]struct{} {
	if lemma == nil {
		lemma = RuleLemmatizer{}
	}
	words := make(map[string]struct{})
	for _, tag := range tags {
		canon := aliases.Canonicalize(strings.ToLower(tag))
		for _, w := range Tokenize(canon) {
			words[lemma.Lemmatize(w)] = struct{}{}
		}
	}
	return words
}

// Tokenize splits text on word boundaries, dropping surrounding punctuation.
// Word characters are letters, digits, and the underscore, matching the
// \b\w+\b convention.
func Tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// capitalizedWords returns the lowercase forms of every word in text whose
// first rune is upper case.
func capitalizedWords(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range Tokenize(text) {
		runes := []rune(w)
		if len(runes) > 0 && unicode.IsUpper(runes[0]) {
			out[strings.ToLower(w)] = struct{}{}
		}
	}
	return out
}
