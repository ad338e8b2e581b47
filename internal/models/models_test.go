package models

import (
	"encoding/json"
	"testing"
)

func strPtr(s string) *string { return &s }

func TestSearchResponse_Text(t *testing.T) {
	tests := []struct {
		name string
		resp SearchResponse
		want string
	}{
		{"answer only", SearchResponse{Answer: strPtr("Refunds within 30 days.")}, "Refunds within 30 days."},
		{"error wins over answer", SearchResponse{Answer: strPtr("a"), Error: strPtr("missing query or docId")}, "missing query or docId"},
		{"neither", SearchResponse{}, NoResponseText},
		{"empty answer is still an answer", SearchResponse{Answer: strPtr("")}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.resp.Text(); got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchResponse_DecodeMissingSources(t *testing.T) {
	var resp SearchResponse
	if err := json.Unmarshal([]byte(`{"answer":"ok"}`), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Citations() == nil || len(resp.Citations()) != 0 {
		t.Errorf("Citations() should be an empty slice, got %#v", resp.Citations())
	}
}

func TestSearchResponse_CitationsClampConfidence(t *testing.T) {
	var resp SearchResponse
	body := `{"answer":"ok","sources":[{"page":1,"confidence":1.7},{"page":2,"confidence":-0.2},{"page":3,"confidence":0.42}]}`
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}
	got := resp.Citations()
	want := []float64{1, 0, 0.42}
	if len(got) != len(want) {
		t.Fatalf("got %d citations", len(got))
	}
	for i, c := range got {
		if c.Confidence != want[i] {
			t.Errorf("citation %d confidence = %v, want %v", i, c.Confidence, want[i])
		}
	}
	if resp.Sources[0].Confidence != 1.7 {
		t.Error("Citations() must not modify the decoded response")
	}
}

func TestCitation_String(t *testing.T) {
	tests := []struct {
		c    Citation
		want string
	}{
		{Citation{Page: 2, Confidence: 0.92}, "Page 2 (92%)"},
		{Citation{Page: 1, Confidence: 1.7}, "Page 1 (100%)"},
		{Citation{Page: 3, Confidence: -0.2}, "Page 3 (0%)"},
		{Citation{Page: 4, Confidence: 0.005}, "Page 4 (1%)"},
	}
	for _, tt := range tests {
		if got := tt.c.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestDocumentRef_Unmarshal(t *testing.T) {
	data := `[
		{"_additional":{"id":"doc-1"},"title":"Handbook.pdf","pages":12,"source":"upload","workspace":"Legal"},
		{"_additional":{"id":"doc-2"},"title":null,"pages":null},
		{"id":"doc-3","title":"flat"}
	]`
	var docs []DocumentRef
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		t.Fatal(err)
	}
	if len(docs) != 3 {
		t.Fatalf("got %d docs", len(docs))
	}
	if docs[0].ID != "doc-1" || docs[0].DisplayTitle() != "Handbook.pdf" || docs[0].PageCount() != 12 {
		t.Errorf("doc-1 decoded wrong: %+v", docs[0])
	}
	if docs[0].Source != "upload" || docs[0].Workspace != "Legal" {
		t.Errorf("doc-1 source/workspace wrong: %+v", docs[0])
	}
	if docs[1].DisplayTitle() != "untitled" || docs[1].PageCount() != 0 {
		t.Errorf("nullable fields should default: %+v", docs[1])
	}
	if docs[2].ID != "doc-3" {
		t.Errorf("flat id not accepted: %+v", docs[2])
	}
}
