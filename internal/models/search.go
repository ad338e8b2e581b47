package models

// NoResponseText is shown when a successful response carries neither answer nor error.
const NoResponseText = "No response."

// SearchRequest is the body of the answer endpoint. An empty DocID searches all documents.
type SearchRequest struct {
	Query string `json:"query"`
	DocID string `json:"docId"`
}

// SearchResponse is the answer endpoint schema. Every field is optional on the wire.
type SearchResponse struct {
	Answer  *string    `json:"answer,omitempty"`
	Error   *string    `json:"error,omitempty"`
	Sources []Citation `json:"sources,omitempty"`
}

// Text returns the text to reveal: the error when present, else the answer,
// else NoResponseText.
func (r *SearchResponse) Text() string {
	if r.Error != nil {
		return *r.Error
	}
	if r.Answer != nil {
		return *r.Answer
	}
	return NoResponseText
}

// Citations returns a copy of the sources with confidence clamped to [0,1], never nil.
func (r *SearchResponse) Citations() []Citation {
	out := make([]Citation, len(r.Sources))
	for i, c := range r.Sources {
		c.Confidence = ClampConfidence(c.Confidence)
		out[i] = c
	}
	return out
}
