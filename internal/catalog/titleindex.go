package catalog

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/dociq/internal/models"
)

// titleFuzziness is the edit distance tolerated per filter term.
const titleFuzziness = 1

// titleIndex is an in-memory bleve index over document titles and sources.
type titleIndex struct {
	index bleve.Index
	size  int
}

type titleDoc struct {
	Title  string `json:"title"`
	Source string `json:"source"`
}

func newTitleIndex(docs []models.DocumentRef) (*titleIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	text := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase, no stemming) so partial titles match what the user typed.
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("title", text)
	docMapping.AddFieldMappingsAt("source", text)
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create title index: %w", err)
	}
	batch := index.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.ID, titleDoc{Title: d.DisplayTitle(), Source: d.Source}); err != nil {
			_ = index.Close()
			return nil, fmt.Errorf("index %s: %w", d.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		_ = index.Close()
		return nil, fmt.Errorf("index batch: %w", err)
	}
	return &titleIndex{index: index, size: len(docs)}, nil
}

// match returns the ids of documents whose title or source matches every filter term,
// by prefix or within titleFuzziness edits.
func (t *titleIndex) match(filter string) (map[string]struct{}, error) {
	terms := strings.Fields(strings.ToLower(filter))
	if len(terms) == 0 {
		return nil, nil
	}
	conjuncts := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		conjuncts = append(conjuncts, termQuery(term))
	}
	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(conjuncts...))
	req.Size = t.size
	res, err := t.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("title search: %w", err)
	}
	ids := make(map[string]struct{}, len(res.Hits))
	for _, hit := range res.Hits {
		ids[hit.ID] = struct{}{}
	}
	return ids, nil
}

func termQuery(term string) blevequery.Query {
	var alts []blevequery.Query
	for _, field := range []string{"title", "source"} {
		pq := bleve.NewPrefixQuery(term)
		pq.SetField(field)
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(titleFuzziness)
		fq.SetField(field)
		alts = append(alts, pq, fq)
	}
	return bleve.NewDisjunctionQuery(alts...)
}

func (t *titleIndex) Close() error {
	return t.index.Close()
}
