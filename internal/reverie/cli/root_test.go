package cli

import "testing"

func TestTokenizeURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"http://localhost:8080/v1/chat/completions", "http://localhost:8080/tokenize"},
		{"http://127.0.0.1:5001/v1/chat/completions", "http://127.0.0.1:5001/tokenize"},
		{"https://api.openai.com/v1/chat/completions", ""},
		{"http://localhost:8080/custom", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := tokenizeURL(tc.in); got != tc.want {
			t.Errorf("tokenizeURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
