package memory

import (
	"reflect"
	"testing"
)

func TestExtractQuestions(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "single question",
			in:   "Where is Bob?",
			want: []string{"Where is Bob?"},
		},
		{
			name: "mixed sentences",
			in:   "I went to the market. Did you see the fire? It was huge!",
			want: []string{"Did you see the fire?"},
		},
		{
			name: "quoted question",
			in:   `She asked, "where were you last night?" Then she left.`,
			want: []string{"where were you last night?"},
		},
		{
			name: "duplicates collapsed",
			in:   "Why? I mean it. Why?",
			want: []string{"Why?"},
		},
		{
			name: "no questions",
			in:   "Just a statement. And another one.",
			want: nil,
		},
		{
			name: "empty",
			in:   "   ",
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ExtractQuestions(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ExtractQuestions(%q) = %v, want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestEmphasizedQuery(t *testing.T) {
	in := "I was at the tavern. What happened to Robert?"
	want := "What happened to Robert? I was at the tavern. What happened to Robert?"
	if got := EmphasizedQuery(in); got != want {
		t.Errorf("EmphasizedQuery = %q, want %q", got, want)
	}
}

func TestEmphasizedQuery_NoQuestions(t *testing.T) {
	in := "Tell me about the mill."
	if got := EmphasizedQuery(in); got != in {
		t.Errorf("EmphasizedQuery = %q, want the message unchanged", got)
	}
}
