package catalog

import (
	"sort"
	"strings"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"
)

// SearchResult is one catalog entry matched against a free-text query.
type SearchResult struct {
	Kind       string  `json:"kind"` // "company" or "coupon"
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"` // 0.0 to 1.0
}

// MinSearchConfidence is the cutoff below which matches are discarded.
const MinSearchConfidence = 0.4

// Search ranks companies and coupons against a user query using normalized
// fuzzy matching. Results come back sorted by confidence descending,
// truncated to limit.
func (c *Catalog) Search(query string, limit int) []SearchResult {
	normalized := normalizeQuery(query)
	if normalized == "" || limit <= 0 {
		return nil
	}

	var results []SearchResult
	for _, company := range c.Companies {
		if conf := matchConfidence(normalized, company.Name); conf >= MinSearchConfidence {
			results = append(results, SearchResult{Kind: "company", ID: company.ID, Name: company.Name, Confidence: conf})
		}
	}
	for _, coupon := range c.coupons {
		if conf := matchConfidence(normalized, coupon.Title); conf >= MinSearchConfidence {
			results = append(results, SearchResult{Kind: "coupon", ID: coupon.ID, Name: coupon.Title, Confidence: conf})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// matchConfidence scores candidate against the normalized query: exact match
// is 1.0, substring containment 0.9, otherwise Levenshtein similarity.
func matchConfidence(normalized, candidate string) float64 {
	target := normalizeQuery(candidate)
	if target == "" {
		return 0
	}
	if normalized == target {
		return 1.0
	}
	if strings.Contains(target, normalized) {
		return 0.9
	}

	distance := fuzzy.LevenshteinDistance(normalized, target)
	maxLen := len(normalized)
	if len(target) > maxLen {
		maxLen = len(target)
	}
	if maxLen == 0 {
		return 0
	}
	return 1.0 - float64(distance)/float64(maxLen)
}

// normalizeQuery lowercases and strips everything but letters, digits and
// single spaces.
func normalizeQuery(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}
