package lexicon

import (
	"encoding/json"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// AliasMap maps a canonical root tag to the alias strings that refer to it.
// Roots and aliases are stored lowercase. An empty map is valid and is the
// result of loading a missing file.
type AliasMap map[string][]string

// LoadAliasMap reads a root → aliases JSON object from path. A missing file
// is not an error: the tool works without aliases.
func LoadAliasMap(path string) AliasMap {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("lexicon: alias map unreadable", "path", path, "err", err)
		}
		return AliasMap{}
	}

	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		slog.Warn("lexicon: alias map is not valid JSON", "path", path, "err", err)
		return AliasMap{}
	}

	m := make(AliasMap, len(raw))
	for root, aliases := range raw {
		root = strings.ToLower(strings.TrimSpace(root))
		if root == "" {
			continue
		}
		cleaned := make([]string, 0, len(aliases))
		for _, a := range aliases {
			if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
				cleaned = append(cleaned, a)
			}
		}
		m[root] = cleaned
	}
	return m
}

// IsRoot reports whether word is a canonical root tag.
func (m AliasMap) IsRoot(word string) bool {
	_, ok := m[strings.ToLower(word)]
	return ok
}

// Roots returns the canonical root tags in sorted order.
func (m AliasMap) Roots() []string {
	out := make([]string, 0, len(m))
	for root := range m {
		out = append(out, root)
	}
	sort.Strings(out)
	return out
}

// Canonicalize replaces every alias occurrence in the lowercased text with
// its root tag. Aliases are applied longest first so that multi-word phrases
// win over their substrings, and replacement is bounded to whole words.
func (m AliasMap) Canonicalize(text string) string {
	if len(m) == 0 {
		return text
	}

	type pair struct{ alias, root string }
	var pairs []pair
	for _, root := range m.Roots() {
		for _, alias := range m[root] {
			pairs = append(pairs, pair{alias: alias, root: root})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return len(pairs[i].alias) > len(pairs[j].alias)
	})

	for _, p := range pairs {
		text = replaceWholePhrase(text, p.alias, strings.ToLower(p.root))
	}
	return text
}

// replaceWholePhrase substitutes phrase with repl wherever it occurs bounded
// by non-word characters (or the ends of the string).
func replaceWholePhrase(text, phrase, repl string) string {
	if phrase == "" {
		return text
	}
	var b strings.Builder
	for {
		i := strings.Index(text, phrase)
		if i < 0 {
			b.WriteString(text)
			return b.String()
		}
		before := i == 0 || !isWordByte(text[i-1])
		end := i + len(phrase)
		after := end == len(text) || !isWordByte(text[end])
		if before && after {
			b.WriteString(text[:i])
			b.WriteString(repl)
		} else {
			b.WriteString(text[:end])
		}
		text = text[end:]
	}
}

func isWordByte(c byte) bool {
	return c == '_' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
