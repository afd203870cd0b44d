package lexicon

import (
	"bufio"
	"log/slog"
	"os"
	"strings"
)

// Stopwords is a set of words excluded from keyword matching.
type Stopwords map[string]struct{}

// LoadStopwords reads a newline-delimited word list from path. Absence of the
// file is non-fatal and yields an empty set.
func LoadStopwords(path string) Stopwords {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("lexicon: stopword list unreadable", "path", path, "err", err)
		}
		return Stopwords{}
	}
	defer f.Close()

	set := Stopwords{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		word := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		set[word] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		slog.Warn("lexicon: stopword list partially read", "path", path, "err", err)
	}
	return set
}

// Contains reports whether word is a stopword. A nil set contains nothing.
func (s Stopwords) Contains(word string) bool {
	if s == nil {
		return false
	}
	_, ok := s[strings.ToLower(word)]
	return ok
}
