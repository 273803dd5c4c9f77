package layout

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	headerWeight = 0.7
	columnWeight = 0.3

	// GenericThreshold is the minimum confidence a registered pattern must
	// reach before it wins over the generic fallback.
	GenericThreshold = 0.4
)

// Result is the outcome of classifying a table header against the registry.
type Result struct {
	Pattern    Pattern
	Generic    bool
	Confidence float64
}

// scored pairs a pattern with its computed score for ranked selection.
type scored struct {
	pattern Pattern
	score   float64
}

// Classifier scores tables against an immutable pattern registry. It is a
// pure component: no I/O, deterministic, safe for concurrent use.
type Classifier struct {
	registry []Pattern
}

func NewClassifier(registry []Pattern) *Classifier {
	return &Classifier{registry: registry}
}

// Classify scores every registered pattern against the header row and column
// count, ranks them, and selects the top scorer. A top score below
// GenericThreshold yields the generic layout.
func (c *Classifier) Classify(header []string, columnCount int) Result {
	normalized := make([]string, len(header))
	for i, h := range header {
		normalized[i] = Normalize(h)
	}

	ranked := make([]scored, 0, len(c.registry))
	for _, p := range c.registry {
		ranked = append(ranked, scored{pattern: p, score: score(p, normalized, columnCount)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})

	if len(ranked) == 0 || ranked[0].score < GenericThreshold {
		best := 0.0
		if len(ranked) > 0 {
			best = ranked[0].score
		}
		return Result{Pattern: Generic, Generic: true, Confidence: best}
	}
	return Result{Pattern: ranked[0].pattern, Confidence: ranked[0].score}
}

// score weighs header matches at 70% and column-count fit at 30%.
func score(p Pattern, normalizedHeader []string, columnCount int) float64 {
	if len(p.Headers) == 0 {
		return 0
	}

	matched := 0
	for _, hp := range p.Headers {
		if matchesAny(hp, normalizedHeader) {
			matched++
		}
	}
	headerScore := float64(matched) / float64(len(p.Headers))

	columnScore := 0.0
	if columnCount >= p.MinColumns && columnCount <= p.MaxColumns {
		columnScore = 1.0
	}

	return headerWeight*headerScore + columnWeight*columnScore
}

func matchesAny(hp HeaderPattern, header []string) bool {
	for _, cell := range header {
		if hp.Regex.MatchString(cell) {
			return true
		}
	}
	// Fuzzy fallback catches near-miss exports ("descripco", truncated cells).
	if hp.Keyword != "" {
		for _, cell := range header {
			if cell == "" {
				continue
			}
			if rank := fuzzy.RankMatch(hp.Keyword, cell); rank >= 0 && rank <= 2 {
				return true
			}
		}
	}
	return false
}

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases and strips accents so "Descripción" and "DESCRIPCION"
// compare equal during header matching.
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	out, _, err := transform.String(deaccent, s)
	if err != nil {
		return s
	}
	return out
}
