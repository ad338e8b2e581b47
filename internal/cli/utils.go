// Package cli provides CLI output writers for DocIQ.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/uploader"
	"github.com/hyperjump/dociq/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputCompact is one line per item.
	OutputCompact OutputFormat = "compact"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat maps a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputCompact:
		return OutputCompact, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want text, compact or json)", s)
	}
}

var (
	heading = color.New(color.FgCyan, color.Bold).SprintFunc()
	dim     = color.New(color.Faint).SprintFunc()
	accent  = color.New(color.FgYellow).SprintFunc()
	mark    = color.New(color.FgGreen, color.Bold).SprintFunc()
	alert   = color.New(color.FgRed).SprintFunc()
)

const rule = "─────────────────────────────────────────────────────────"

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an assistant message and its citations. query is used to
// highlight matching words in excerpts; it may be empty.
func WriteAnswer(w io.Writer, msg models.Message, query string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, msg)
	case OutputCompact:
		pages := make([]string, 0, len(msg.Sources))
		for _, c := range msg.Sources {
			pages = append(pages, fmt.Sprintf("p%d:%d%%", c.Page, c.Percent()))
		}
		line := strings.Join(strings.Fields(msg.Content), " ")
		if len(pages) > 0 {
			line += " [" + strings.Join(pages, " ") + "]"
		}
		_, err := fmt.Fprintln(w, line)
		return err
	default:
		fmt.Fprintf(w, "\n%s\n\n", msg.Content)
		if len(msg.Sources) == 0 {
			return nil
		}
		fmt.Fprintln(w, heading("Sources"))
		for _, c := range msg.Sources {
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "%s\n", accent(c.String()))
			if c.Excerpt != "" {
				fmt.Fprintf(w, "%s\n", HighlightExcerpt(TruncateWords(c.Excerpt, 60), query))
			}
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteError renders an error the way WriteAnswer renders a failed answer.
func WriteError(w io.Writer, err error) {
	fmt.Fprintln(w, alert(err.Error()))
}

type documentRow struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Pages     int    `json:"pages"`
	Workspace string `json:"workspace"`
}

// WriteDocuments writes a document list; resolve maps a document id to its workspace.
func WriteDocuments(w io.Writer, docs []models.DocumentRef, resolve func(string) string, format OutputFormat) error {
	rows := make([]documentRow, 0, len(docs))
	for i := range docs {
		rows = append(rows, documentRow{
			ID:        docs[i].ID,
			Title:     docs[i].DisplayTitle(),
			Pages:     docs[i].PageCount(),
			Workspace: resolve(docs[i].ID),
		})
	}
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"documents": rows})
	case OutputCompact:
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Title, r.Pages, r.Workspace)
		}
		return nil
	default:
		fmt.Fprintf(w, "\n%s\n\n", heading(fmt.Sprintf("%d documents", len(rows))))
		for _, r := range rows {
			fmt.Fprintf(w, "  %s %s\n", r.Title, dim(fmt.Sprintf("(%d pages, %s)", r.Pages, r.Workspace)))
			fmt.Fprintf(w, "    %s\n", dim(r.ID))
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteWorkspaces writes workspace names with per-workspace document counts; counts may be nil.
// current is marked in text output.
func WriteWorkspaces(w io.Writer, names []string, counts map[string]int, current string, format OutputFormat) error {
	switch format {
	case OutputJSON:
		type row struct {
			Name      string `json:"name"`
			Documents int    `json:"documents"`
		}
		rows := make([]row, 0, len(names))
		for _, n := range names {
			rows = append(rows, row{Name: n, Documents: counts[n]})
		}
		return writeJSON(w, map[string]interface{}{"workspaces": rows})
	case OutputCompact:
		for _, n := range names {
			fmt.Fprintf(w, "%s\t%d\n", n, counts[n])
		}
		return nil
	default:
		for _, n := range names {
			prefix := "  "
			if n == current {
				prefix = mark("* ")
			}
			fmt.Fprintf(w, "%s%s %s\n", prefix, n, dim(fmt.Sprintf("(%d)", counts[n])))
		}
		return nil
	}
}

// WriteUploads writes upload records, newest first.
func WriteUploads(w io.Writer, records []uploader.Record, format OutputFormat) error {
	sorted := append([]uploader.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].UploadedAt.After(sorted[j].UploadedAt) })
	switch format {
	case OutputJSON:
		return writeJSON(w, map[string]interface{}{"uploads": sorted})
	case OutputCompact:
		for _, r := range sorted {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.DocID, r.Name, r.Workspace, r.Words)
		}
		return nil
	default:
		for _, r := range sorted {
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "%s %s\n", mark("✓"), r.Name)
			fmt.Fprintf(w, "ID: %s\n", r.DocID)
			fmt.Fprintf(w, "Workspace: %s | Words: %d | Chunks: %d\n", r.Workspace, r.Words, r.Chunks)
			if r.Path != "" {
				fmt.Fprintf(w, "Path: %s\n", dim(r.Path))
			}
			if r.URL != "" {
				fmt.Fprintf(w, "URL: %s\n", dim(r.URL))
			}
		}
		return nil
	}
}

// WritePreview writes the local ingestion preview of a file.
func WritePreview(w io.Writer, p *uploader.Preview, format OutputFormat) error {
	switch format {
	case OutputJSON:
		type chunkRow struct {
			Index int    `json:"index"`
			Page  int    `json:"page"`
			Words int    `json:"words"`
			Text  string `json:"text"`
		}
		chunks := make([]chunkRow, 0, len(p.Chunks))
		for _, c := range p.Chunks {
			chunks = append(chunks, chunkRow{Index: c.Index, Page: c.Page, Words: c.Words, Text: c.Text})
		}
		return writeJSON(w, map[string]interface{}{
			"name":   p.Name,
			"pages":  p.Pages,
			"words":  p.Words,
			"chunks": chunks,
		})
	case OutputCompact:
		_, err := fmt.Fprintf(w, "%s\t%d pages\t%d words\t%d chunks\n", p.Name, p.Pages, p.Words, len(p.Chunks))
		return err
	default:
		fmt.Fprintf(w, "\n%s\n", heading(p.Name))
		fmt.Fprintf(w, "%d pages, %d words, %d chunks\n\n", p.Pages, p.Words, len(p.Chunks))
		for _, c := range p.Chunks {
			fmt.Fprintln(w, rule)
			fmt.Fprintf(w, "%s\n", accent(fmt.Sprintf("Chunk %d | Page %d | %d words", c.Index, c.Page, c.Words)))
			fmt.Fprintf(w, "%s\n", utils.Truncate(c.Text, 200))
		}
		fmt.Fprintln(w)
		return nil
	}
}

// WriteDriveStatus writes the cloud drive link state.
func WriteDriveStatus(w io.Writer, st drive.Status, format OutputFormat) error {
	switch format {
	case OutputJSON:
		return writeJSON(w, st)
	case OutputCompact:
		_, err := fmt.Fprintf(w, "connected=%t\n", st.Connected)
		return err
	default:
		if st.Connected {
			fmt.Fprintf(w, "Google Drive: %s\n", mark("connected"))
		} else {
			fmt.Fprintf(w, "Google Drive: %s\n", dim("not connected"))
		}
		if st.Err != "" {
			fmt.Fprintf(w, "Last check failed: %s\n", alert(st.Err))
		}
		return nil
	}
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}]{3,}`)

// HighlightExcerpt emphasizes the words of query (three letters or longer) inside excerpt.
func HighlightExcerpt(excerpt, query string) string {
	words := wordPattern.FindAllString(query, -1)
	if len(words) == 0 {
		return excerpt
	}
	quoted := make([]string, len(words))
	for i, word := range words {
		quoted[i] = regexp.QuoteMeta(word)
	}
	re, err := regexp.Compile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
	if err != nil {
		return excerpt
	}
	return re.ReplaceAllStringFunc(excerpt, func(m string) string { return mark(m) })
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
