// Package collector merges adapter output and removes exact duplicates, one
// survivor per normalized (title, summary) key. Source-list merging is left to
// the semantic deduplicator.
package collector

import (
	"sort"
	"strings"

	"github.com/DebritB/NewsRAG/internal/schema"
)

// defaultPrioritySources are aggregator-style APIs whose items win ties over
// per-site feeds.
var defaultPrioritySources = []string{
	"the guardian api",
	"guardian api",
	"gnews api",
	"gnews",
	"newsdata.io api",
	"newsdata.io",
	"currents api",
}

// Stats counts what the exact-duplicate pass removed.
type Stats struct {
	Input                int
	Survivors            int
	TrueDuplicates       int
	SyndicatedDuplicates int
	PriorityReplacements int
	EmptyKeys            int
}

type Collector struct {
	prioritySources []string
}

// New builds a collector. Extra priority source names extend the built-in
// aggregator list; matching is case-insensitive substring, so "GNews API
// (AU)" still counts as priority.
func New(extraPrioritySources []string) *Collector {
	sources := make([]string, 0, len(defaultPrioritySources)+len(extraPrioritySources))
	sources = append(sources, defaultPrioritySources...)
	for _, s := range extraPrioritySources {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			sources = append(sources, s)
		}
	}
	return &Collector{prioritySources: sources}
}

func (c *Collector) IsPrioritySource(source string) bool {
	normalized := strings.ToLower(strings.TrimSpace(source))
	if normalized == "" {
		return false
	}
	for _, priority := range c.prioritySources {
		if strings.Contains(normalized, priority) {
			return true
		}
	}
	return false
}

type contentKey struct {
	title   string
	summary string
}

// Dedupe returns one survivor per distinct normalized (title, summary) key.
// Priority-sourced items always survive over secondary ones regardless of
// input order; among same-tier items the first after a stable sort wins.
// Items whose title and summary are both empty are never merged with each
// other: each gets a synthetic key derived from its url.
func (c *Collector) Dedupe(records []schema.Record) ([]schema.Record, Stats) {
	stats := Stats{Input: len(records)}

	sorted := make([]schema.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		iPriority := c.IsPrioritySource(sorted[i].Source)
		jPriority := c.IsPrioritySource(sorted[j].Source)
		if iPriority != jPriority {
			return iPriority
		}
		return sorted[i].Title < sorted[j].Title
	})

	seen := make(map[contentKey]schema.Record, len(sorted))
	seenWithSource := make(map[contentKey]map[string]struct{}, len(sorted))
	order := make([]contentKey, 0, len(sorted))

	for _, record := range sorted {
		title := strings.ToLower(strings.TrimSpace(record.Title))
		summary := strings.ToLower(strings.TrimSpace(record.Summary))
		source := strings.ToLower(strings.TrimSpace(record.Source))

		key := contentKey{title: title, summary: summary}
		if title == "" && summary == "" {
			// Blank keys would collapse unrelated items into one; keep
			// each distinct by its url instead.
			stats.EmptyKeys++
			key = contentKey{title: "\x00url:" + strings.TrimSpace(record.URL)}
		}

		existing, found := seen[key]
		if !found {
			seen[key] = record
			seenWithSource[key] = map[string]struct{}{source: {}}
			order = append(order, key)
			continue
		}

		if _, sameSource := seenWithSource[key][source]; sameSource {
			stats.TrueDuplicates++
			continue
		}
		seenWithSource[key][source] = struct{}{}

		// The sort already placed priority copies first, so a surviving
		// priority record beating a secondary copy shows up here as the
		// secondary copy arriving second.
		if c.IsPrioritySource(existing.Source) && !c.IsPrioritySource(record.Source) {
			stats.PriorityReplacements++
			continue
		}
		stats.SyndicatedDuplicates++
	}

	survivors := make([]schema.Record, 0, len(order))
	for _, key := range order {
		survivors = append(survivors, seen[key])
	}
	stats.Survivors = len(survivors)
	return survivors, stats
}
