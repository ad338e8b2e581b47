// Package models defines core data structures for documents, snippets, messages and the wire schema.
package models

import (
	"encoding/json"
	"strings"
)

// DefaultWorkspace is the workspace of any document not tagged locally.
const DefaultWorkspace = "default"

// DocumentRef is what the client knows about an ingested document.
// Title and Pages are nullable on the server side.
type DocumentRef struct {
	ID        string  `json:"id"`
	Title     *string `json:"title"`
	Pages     *int    `json:"pages"`
	Source    string  `json:"source,omitempty"`
	Workspace string  `json:"workspace,omitempty"`
}

// documentRefWire is the backend list shape, which nests the id under _additional.
type documentRefWire struct {
	Additional struct {
		ID string `json:"id"`
	} `json:"_additional"`
	ID        string  `json:"id"`
	Title     *string `json:"title"`
	Pages     *int    `json:"pages"`
	Source    string  `json:"source"`
	Workspace string  `json:"workspace"`
}

// UnmarshalJSON accepts both the backend shape ({"_additional":{"id":...}}) and a flat id.
func (d *DocumentRef) UnmarshalJSON(data []byte) error {
	var w documentRefWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	d.ID = w.Additional.ID
	if d.ID == "" {
		d.ID = w.ID
	}
	d.Title = w.Title
	d.Pages = w.Pages
	d.Source = w.Source
	d.Workspace = w.Workspace
	return nil
}

// DisplayTitle returns the title or "untitled" when the server has none.
func (d *DocumentRef) DisplayTitle() string {
	if d.Title == nil || strings.TrimSpace(*d.Title) == "" {
		return "untitled"
	}
	return *d.Title
}

// PageCount returns the page count or 0 when unknown.
func (d *DocumentRef) PageCount() int {
	if d.Pages == nil {
		return 0
	}
	return *d.Pages
}

// UploadResult is the ingestion metadata returned by the upload endpoint.
type UploadResult struct {
	DocID  string `json:"docId"`
	Name   string `json:"name"`
	Words  int    `json:"words"`
	Chunks int    `json:"chunks"`
}

// ExternalUpload asks the backend to fetch and ingest a remote file.
type ExternalUpload struct {
	URL       string `json:"url"`
	Name      string `json:"name,omitempty"`
	Workspace string `json:"workspace,omitempty"`
}

// DriveSyncResult is the response of the drive sync trigger.
type DriveSyncResult struct {
	Status string `json:"status"`
}
