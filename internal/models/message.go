package models

import (
	"fmt"
	"math"
	"time"
)

// Role is the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Citation is a (page, excerpt, confidence) triple returned alongside an answer.
type Citation struct {
	Page       int     `json:"page"`
	Excerpt    string  `json:"excerpt"`
	Confidence float64 `json:"confidence"`
}

// ClampConfidence limits v to [0,1]; NaN becomes 0.
func ClampConfidence(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Percent returns the confidence as a rounded percentage, clamped to [0,100].
func (c Citation) Percent() int {
	return int(math.Round(ClampConfidence(c.Confidence) * 100))
}

// String renders "Page N (NN%)".
func (c Citation) String() string {
	return fmt.Sprintf("Page %d (%d%%)", c.Page, c.Percent())
}

// Message is one turn in the conversation.
type Message struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	Sources   []Citation `json:"sources,omitempty"`
}

// Snippet is a captured excerpt awaiting inclusion in a question.
// Start and End are best-effort character offsets within the page.
type Snippet struct {
	ID         string `json:"id"`
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}

// SelectionEvent is the selection-to-chat payload posted by a viewer.
type SelectionEvent struct {
	DocumentID string `json:"documentId"`
	Filename   string `json:"filename"`
	Text       string `json:"text"`
	Page       int    `json:"page"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
}
