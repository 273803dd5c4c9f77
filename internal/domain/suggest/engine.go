package suggest

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/cloudflare/ahocorasick"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/bank-import/internal/domain/layout"
)

// Suggestion is a category guess for one transaction description.
type Suggestion struct {
	Category   string
	Confidence float64
	Source     string // keyword | fuzzy | search
}

// Per-tier confidence. Exact keyword hits beat fuzzy token matches, which
// beat full-text scoring.
const (
	keywordConfidence = 0.9
	fuzzyConfidence   = 0.7
	searchConfidence  = 0.5
)

// maxFuzzyDistance is the largest Levenshtein distance accepted when a
// description token almost matches a catalog keyword.
const maxFuzzyDistance = 2

// Engine matches descriptions against the category catalog in three tiers:
// a single-pass Aho-Corasick scan over all keywords, a fuzzy token
// comparison for misspellings, and a Bleve full-text fallback.
type Engine struct {
	matcher  *ahocorasick.Matcher
	keywords []string // normalized, same order as matcher patterns
	category []string // category name per keyword index
	index    bleve.Index
}

// NewEngine builds the matcher and an in-memory search index from the
// catalog. The engine is read-only after construction and safe for
// concurrent use.
func NewEngine(catalog []Category) (*Engine, error) {
	e := &Engine{}

	var patterns [][]byte
	for _, cat := range catalog {
		for _, kw := range cat.Keywords {
			normalized := layout.Normalize(kw)
			e.keywords = append(e.keywords, normalized)
			e.category = append(e.category, cat.Name)
			patterns = append(patterns, []byte(normalized))
		}
	}
	e.matcher = ahocorasick.NewMatcher(patterns)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = simple.Name
	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("build suggestion index: %w", err)
	}
	batch := index.NewBatch()
	for _, cat := range catalog {
		doc := map[string]string{
			"name": cat.Name,
			"body": layout.Normalize(strings.Join(cat.Keywords, " ")),
		}
		if err := batch.Index(cat.Name, doc); err != nil {
			return nil, fmt.Errorf("index category %s: %w", cat.Name, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("commit suggestion index: %w", err)
	}
	e.index = index

	return e, nil
}

// Suggest returns the best category guess for a description, or false when
// no tier produces a usable match.
func (e *Engine) Suggest(description string) (Suggestion, bool) {
	normalized := layout.Normalize(description)
	if strings.TrimSpace(normalized) == "" {
		return Suggestion{}, false
	}

	if category, ok := e.keywordMatch(normalized); ok {
		return Suggestion{Category: category, Confidence: keywordConfidence, Source: "keyword"}, true
	}
	if category, ok := e.fuzzyMatch(normalized); ok {
		return Suggestion{Category: category, Confidence: fuzzyConfidence, Source: "fuzzy"}, true
	}
	if category, ok := e.searchMatch(normalized); ok {
		return Suggestion{Category: category, Confidence: searchConfidence, Source: "search"}, true
	}
	return Suggestion{}, false
}

// keywordMatch finds all catalog keywords contained in the description in
// one pass and keeps the longest, preferring "uber eats" over "uber".
func (e *Engine) keywordMatch(normalized string) (string, bool) {
	hits := e.matcher.Match([]byte(normalized))
	best := -1
	for _, idx := range hits {
		if idx < 0 || idx >= len(e.keywords) {
			continue
		}
		if best == -1 || len(e.keywords[idx]) > len(e.keywords[best]) {
			best = idx
		}
	}
	if best == -1 {
		return "", false
	}
	return e.category[best], true
}

// fuzzyMatch compares description tokens against keywords by Levenshtein
// distance, catching variations like "starbcks" or "netflx".
func (e *Engine) fuzzyMatch(normalized string) (string, bool) {
	bestDistance := maxFuzzyDistance + 1
	bestCategory := ""
	for _, token := range strings.Fields(normalized) {
		if len(token) < 5 {
			continue
		}
		for i, kw := range e.keywords {
			if len(kw) < 5 || strings.Contains(kw, " ") {
				continue
			}
			rank := fuzzy.RankMatch(token, kw)
			if rank < 0 || rank > maxFuzzyDistance {
				continue
			}
			if rank < bestDistance {
				bestDistance = rank
				bestCategory = e.category[i]
			}
		}
	}
	return bestCategory, bestCategory != ""
}

// searchMatch runs the description through the full-text index as a last
// resort, scoring partial token overlap with category vocabularies.
func (e *Engine) searchMatch(normalized string) (string, bool) {
	query := bleve.NewMatchQuery(normalized)
	query.SetField("body")
	request := bleve.NewSearchRequest(query)
	request.Size = 1

	result, err := e.index.Search(request)
	if err != nil || len(result.Hits) == 0 {
		return "", false
	}
	return result.Hits[0].ID, true
}
