package memory

import "strings"

// ExtractQuestions returns the question sentences of text: sentences ending
// in '?' once surrounding quotes are stripped, de-duplicated while preserving
// order. The retriever prepends them to the query so explicit questions,
// which usually name what must be recalled, dominate the embedding.
func ExtractQuestions(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var questions []string
	seen := make(map[string]struct{})
	for _, sentence := range splitSentences(text) {
		s := strings.TrimSpace(sentence)
		s = strings.Trim(s, `"'`)
		s = strings.TrimSpace(s)
		if !strings.HasSuffix(s, "?") {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		questions = append(questions, s)
	}
	return questions
}

// EmphasizedQuery joins the extracted questions ahead of the full message,
// biasing the embedding toward what was explicitly asked.
func EmphasizedQuery(text string) string {
	parts := append(ExtractQuestions(text), text)
	return strings.Join(parts, " ")
}

// splitSentences splits after '.', '!' or '?' when followed by whitespace,
// keeping the terminator with its sentence.
func splitSentences(text string) []string {
	var out []string
	start := 0
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '.', '!', '?':
			// Allow trailing quotes between the terminator and the break.
			j := i + 1
			for j < len(runes) && (runes[j] == '"' || runes[j] == '\'') {
				j++
			}
			if j >= len(runes) || runes[j] == ' ' || runes[j] == '\n' || runes[j] == '\t' {
				out = append(out, string(runes[start:j]))
				start = j
				i = j - 1
			}
		}
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}
