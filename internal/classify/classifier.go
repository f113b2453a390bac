// Package classify scores articles against a closed category taxonomy using
// TF-IDF weighted keyword matching and reports a 0..1 confidence per result.
package classify

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

const (
	// AcceptConfidence accepts the keyword result directly.
	AcceptConfidence = 0.5
	// FallbackConfidence routes borderline results to the LLM classifier;
	// anything below is discarded.
	FallbackConfidence = 0.3

	// minScoreShare rejects a winner holding less than 5% of the total
	// score mass across categories.
	minScoreShare = 0.05
	// confidenceScale normalizes raw scores against a typical maximum.
	confidenceScale = 5.0
	// minConfidence rejects results with near-zero normalized confidence.
	minConfidence = 0.05

	contentPrefixChars = 1000
)

// Classifier is immutable after construction: the keyword table and the
// derived per-term IDF values are process-wide static configuration.
type Classifier struct {
	keywords   map[string]map[string]float64
	idf        map[string]float64
	categories []string
}

// Result carries the full scoring breakdown of one classification.
type Result struct {
	Category      string
	Confidence    float64
	Scores        map[string]float64
	NeedsFallback bool
}

// New derives IDF values from the keyword table: for each term,
// log(numCategories / numCategoriesContainingTerm).
func New(keywords map[string]map[string]float64) *Classifier {
	termCategoryCount := make(map[string]int)
	categories := make([]string, 0, len(keywords))
	for category, terms := range keywords {
		categories = append(categories, category)
		for term := range terms {
			termCategoryCount[term]++
		}
	}
	sort.Strings(categories)

	totalCategories := float64(len(keywords))
	idf := make(map[string]float64, len(termCategoryCount))
	for term, count := range termCategoryCount {
		idf[term] = math.Log(totalCategories / float64(count))
	}

	return &Classifier{
		keywords:   keywords,
		idf:        idf,
		categories: categories,
	}
}

// Default builds a classifier over the built-in news taxonomy.
func Default() *Classifier {
	return New(defaultKeywords())
}

// Categories returns the taxonomy labels in sorted order.
func (c *Classifier) Categories() []string {
	out := make([]string, len(c.categories))
	copy(out, c.categories)
	return out
}

// IsValidCategory reports whether label is one of the taxonomy values.
func (c *Classifier) IsValidCategory(label string) bool {
	normalized := strings.ToLower(strings.TrimSpace(label))
	for _, category := range c.categories {
		if category == normalized {
			return true
		}
	}
	return false
}

// Classify scores the weighted text (title x3, summary x2, first 1000 chars
// of content x1) and returns the winning category with its confidence, or
// ("", 0) when no category passes the gates.
func (c *Classifier) Classify(title, content, summary string) (string, float64) {
	result := c.ClassifyWithDetails(title, content, summary)
	return result.Category, result.Confidence
}

// ClassifyWithDetails additionally exposes the per-category score map and the
// borderline flag that routes items to the LLM fallback.
func (c *Classifier) ClassifyWithDetails(title, content, summary string) Result {
	termFreq := extractTermFrequencies(weightedText(title, content, summary))

	scores := make(map[string]float64, len(c.categories))
	total := 0.0
	for _, category := range c.categories {
		score := c.scoreCategory(termFreq, c.keywords[category])
		scores[category] = score
		total += score
	}

	result := Result{Scores: scores}
	if len(termFreq) == 0 || total == 0 {
		return result
	}

	best := ""
	bestScore := 0.0
	for _, category := range c.categories {
		if best == "" || scores[category] > bestScore {
			best = category
			bestScore = scores[category]
		}
	}

	if !meetsScoreShare(bestScore, total) {
		return result
	}

	confidence := math.Min(bestScore/confidenceScale, 1.0)
	if confidence < minConfidence {
		return result
	}

	result.Category = best
	result.Confidence = confidence
	result.NeedsFallback = confidence >= FallbackConfidence && confidence < AcceptConfidence
	return result
}

// scoreCategory computes sum(tf * idf * weight) over matching terms, divided
// by sqrt(matchCount) to avoid bias toward categories with larger tables.
func (c *Classifier) scoreCategory(termFreq map[string]int, categoryKeywords map[string]float64) float64 {
	score := 0.0
	matches := 0
	for term, weight := range categoryKeywords {
		tf, ok := termFreq[term]
		if !ok {
			continue
		}
		idf, ok := c.idf[term]
		if !ok {
			idf = 1.0
		}
		score += float64(tf) * idf * weight
		matches++
	}
	if matches > 0 {
		score /= math.Sqrt(float64(matches))
	}
	return score
}

// meetsScoreShare is the 5% gate: a best score holding exactly 5% of the
// total passes, anything below does not.
func meetsScoreShare(best, total float64) bool {
	if total <= 0 {
		return false
	}
	return best/total >= minScoreShare
}

func weightedText(title, content, summary string) string {
	var b strings.Builder
	for i := 0; i < 3; i++ {
		b.WriteString(title)
		b.WriteByte(' ')
	}
	for i := 0; i < 2; i++ {
		b.WriteString(summary)
		b.WriteByte(' ')
	}
	b.WriteString(truncateRunes(content, contentPrefixChars))
	return b.String()
}

func truncateRunes(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// extractTermFrequencies lowercases, strips non-word characters (keeping
// hyphens), and counts unigram and bigram occurrences.
func extractTermFrequencies(text string) map[string]int {
	normalized := normalizeText(text)
	words := strings.Fields(normalized)
	if len(words) == 0 {
		return nil
	}

	termFreq := make(map[string]int, len(words)*2)
	for _, word := range words {
		termFreq[word]++
	}
	for i := 0; i+1 < len(words); i++ {
		termFreq[words[i]+" "+words[i+1]]++
	}
	return termFreq
}

func normalizeText(text string) string {
	lowered := strings.ToLower(text)
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		case r > 127 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return b.String()
}
