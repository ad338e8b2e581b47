package uploader

import (
	"strings"

	"github.com/hyperjump/dociq/internal/extract"
)

// BackendChunkWords is the chunk size the backend ingests with.
const BackendChunkWords = 400

// Chunk is a word window of a document, as the backend will store it.
type Chunk struct {
	Index int
	// Page is where the chunk's first word sits.
	Page  int
	Text  string
	Words int
}

// Chunker splits documents into word windows with an optional overlap.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in words).
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = BackendChunkWords
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

type pagedWord struct {
	page int
	word string
}

// Chunk splits doc across page boundaries.
func (c *Chunker) Chunk(doc *extract.Document) []Chunk {
	var words []pagedWord
	for _, p := range doc.Pages {
		for _, w := range strings.Fields(p.Text) {
			words = append(words, pagedWord{page: p.Number, word: w})
		}
	}
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	if step <= 0 {
		step = 1
	}
	var chunks []Chunk
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		parts := make([]string, 0, end-i)
		for _, w := range words[i:end] {
			parts = append(parts, w.word)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Page:  words[i].page,
			Text:  strings.Join(parts, " "),
			Words: end - i,
		})
		if end >= len(words) {
			break
		}
	}
	return chunks
}
