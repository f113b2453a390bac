package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/DebritB/NewsRAG/internal/db"
	"github.com/DebritB/NewsRAG/internal/globaltime"
)

const (
	// HighlightWindow is how far back the highlighter looks.
	HighlightWindow = 48 * time.Hour
	// HighlightTopPerCategory caps highlights per category.
	HighlightTopPerCategory = 5

	breakingWeight       = 0.6
	occurrenceWeight     = 0.4
	occurrenceSaturation = 10
)

// breakingPattern matches urgency keywords on word boundaries so that
// "alerting" or "majority" do not count.
var breakingPattern = regexp.MustCompile(`(?i)\b(breaking|alert|exclusive|just in|major|urgent)\b`)

// HighlightResult summarizes one highlight refresh.
type HighlightResult struct {
	Scored      int
	Cleared     int64
	Highlighted int
}

// UpdateHighlights rescores articles published in the last 48 hours, clears
// all highlight flags in the window, and marks the top five per category.
func (s *Service) UpdateHighlights(ctx context.Context) (HighlightResult, error) {
	if s == nil || s.store == nil {
		return HighlightResult{}, fmt.Errorf("pipeline service is not initialized")
	}

	now := globaltime.UTC()
	since := now.Add(-HighlightWindow)

	articles, err := s.store.SelectRecentForHighlight(ctx, since)
	if err != nil {
		return HighlightResult{}, err
	}

	cleared, err := s.store.ResetHighlights(ctx, since, now)
	if err != nil {
		return HighlightResult{}, err
	}

	result := HighlightResult{Scored: len(articles), Cleared: cleared}

	type scored struct {
		articleID int64
		score     float64
	}
	byCategory := make(map[string][]scored)
	for _, article := range articles {
		byCategory[article.Category] = append(byCategory[article.Category], scored{
			articleID: article.ArticleID,
			score:     HighlightScore(article),
		})
	}

	for _, candidates := range byCategory {
		sort.Slice(candidates, func(i, j int) bool {
			if candidates[i].score != candidates[j].score {
				return candidates[i].score > candidates[j].score
			}
			return candidates[i].articleID < candidates[j].articleID
		})

		limit := min(HighlightTopPerCategory, len(candidates))
		for _, candidate := range candidates[:limit] {
			if err := s.store.SetHighlight(ctx, candidate.articleID, now); err != nil {
				return result, err
			}
			result.Highlighted++
		}
	}

	s.logger.Info().
		Int("scored", result.Scored).
		Int64("cleared", result.Cleared).
		Int("highlighted", result.Highlighted).
		Msg("highlight run finished")

	return result, nil
}

// HighlightScore blends urgency keywords in the title or summary with how
// widely the story was syndicated.
func HighlightScore(article db.HighlightArticle) float64 {
	score := 0.0
	if breakingPattern.MatchString(article.Title) || breakingPattern.MatchString(article.Summary) {
		score += breakingWeight
	}

	occurrence := float64(article.OccurrenceCount) / occurrenceSaturation
	if occurrence > 1 {
		occurrence = 1
	}
	score += occurrenceWeight * occurrence

	return score
}
