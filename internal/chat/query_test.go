package chat

import (
	"testing"

	"github.com/hyperjump/dociq/internal/models"
)

func TestAssembleQuery(t *testing.T) {
	tests := []struct {
		name     string
		snippets []models.Snippet
		input    string
		want     string
	}{
		{"empty", nil, "", ""},
		{"whitespace input", nil, "   \n", ""},
		{"input only", nil, "What is the refund policy?", "What is the refund policy?"},
		{
			name: "snippets without input",
			snippets: []models.Snippet{
				{Filename: "policy.pdf", Page: 3, Start: 10, End: 20, Text: "alpha"},
				{Filename: "policy.pdf", Page: 5, Start: 0, End: 4, Text: "beta"},
			},
			want: "[policy.pdf p.3 10-20] alpha\n\n[policy.pdf p.5 0-4] beta",
		},
		{
			name:     "snippet then input",
			snippets: []models.Snippet{{Filename: "a.txt", Page: 1, Start: 0, End: 3, Text: "foo"}},
			input:    "explain",
			want:     "[a.txt p.1 0-3] foo\n\nexplain",
		},
		{
			name:     "long filename is shortened",
			snippets: []models.Snippet{{Filename: "quarterly-financial-report.pdf", Page: 2, Start: 1, End: 2, Text: "x"}},
			want:     "[quarterly-fina…pdf p.2 1-2] x",
		},
		{
			name:     "missing filename",
			snippets: []models.Snippet{{Page: 1, Start: 0, End: 1, Text: "x"}},
			want:     "[untitled p.1 0-1] x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AssembleQuery(tt.snippets, tt.input); got != tt.want {
				t.Errorf("AssembleQuery() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStateString(t *testing.T) {
	cases := map[State]string{
		StateIdle:       "idle",
		StateComposing:  "composing",
		StateSubmitting: "submitting",
		StateRendering:  "rendering",
		State(99):       "unknown",
	}
	for s, want := range cases {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), s.String(), want)
		}
	}
	if StateIdle.Busy() || StateComposing.Busy() || !StateSubmitting.Busy() || !StateRendering.Busy() {
		t.Error("Busy() mismatch")
	}
}
