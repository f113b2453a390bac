package db

import (
	"context"
	"fmt"
	"time"
)

// PipelineStats summarizes store contents for the read API.
type PipelineStats struct {
	Articles         int64            `json:"articles"`
	Highlights       int64            `json:"highlights"`
	EmbeddingStatus  map[string]int64 `json:"embedding_status"`
	Categories       map[string]int64 `json:"categories"`
	LastPublishedAt  *time.Time       `json:"last_published_at,omitempty"`
	LastCollectedAt  *time.Time       `json:"last_collected_at,omitempty"`
	TotalOccurrences int64            `json:"total_occurrences"`
}

// ArticleListFilter controls the read API article listing.
type ArticleListFilter struct {
	Category      string
	HighlightOnly bool
	Limit         int
}

// ArticleListItem is the read API projection of one article.
type ArticleListItem struct {
	ArticleID       int64      `json:"article_id"`
	URL             string     `json:"url"`
	Title           string     `json:"title"`
	Source          string     `json:"source"`
	Category        string     `json:"category"`
	Confidence      float64    `json:"confidence"`
	Summary         string     `json:"summary,omitempty"`
	PublishedAt     *time.Time `json:"published_at,omitempty"`
	SourceCount     int        `json:"source_count"`
	Highlight       bool       `json:"highlight"`
	EmbeddingStatus string     `json:"embedding_status"`
}

func (p *Pool) QueryPipelineStats(ctx context.Context) (*PipelineStats, error) {
	stats := &PipelineStats{
		EmbeddingStatus: map[string]int64{},
		Categories:      map[string]int64{},
	}

	const totalsQ = `
SELECT
	COUNT(*),
	COUNT(*) FILTER (WHERE highlight),
	COALESCE(SUM(occurrence_count), 0),
	MAX(published_at),
	MAX(created_at)
FROM news.articles
`
	if err := p.QueryRow(ctx, totalsQ).Scan(
		&stats.Articles,
		&stats.Highlights,
		&stats.TotalOccurrences,
		&stats.LastPublishedAt,
		&stats.LastCollectedAt,
	); err != nil {
		return nil, fmt.Errorf("query article totals: %w", err)
	}

	const statusQ = `
SELECT embedding_status, COUNT(*)
FROM news.articles
GROUP BY embedding_status
`
	statusRows, err := p.Query(ctx, statusQ)
	if err != nil {
		return nil, fmt.Errorf("query embedding status counts: %w", err)
	}
	defer statusRows.Close()
	for statusRows.Next() {
		var status string
		var count int64
		if err := statusRows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan embedding status count: %w", err)
		}
		stats.EmbeddingStatus[status] = count
	}
	if err := statusRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate embedding status counts: %w", err)
	}

	const categoryQ = `
SELECT category, COUNT(*)
FROM news.articles
GROUP BY category
`
	categoryRows, err := p.Query(ctx, categoryQ)
	if err != nil {
		return nil, fmt.Errorf("query category counts: %w", err)
	}
	defer categoryRows.Close()
	for categoryRows.Next() {
		var category string
		var count int64
		if err := categoryRows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		stats.Categories[category] = count
	}
	if err := categoryRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category counts: %w", err)
	}

	return stats, nil
}

func (p *Pool) ListArticles(ctx context.Context, filter ArticleListFilter) ([]ArticleListItem, error) {
	if filter.Limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.url,
	a.title,
	a.source,
	a.category,
	a.confidence,
	a.summary,
	a.published_at,
	a.occurrence_count,
	a.highlight,
	a.embedding_status
FROM news.articles a
WHERE ($1 = '' OR a.category = $1)
  AND (NOT $2 OR a.highlight)
ORDER BY a.published_at DESC NULLS LAST, a.article_id DESC
LIMIT $3
`

	rows, err := p.Query(ctx, q, filter.Category, filter.HighlightOnly, filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	items := make([]ArticleListItem, 0, filter.Limit)
	for rows.Next() {
		var row ArticleListItem
		if err := rows.Scan(
			&row.ArticleID,
			&row.URL,
			&row.Title,
			&row.Source,
			&row.Category,
			&row.Confidence,
			&row.Summary,
			&row.PublishedAt,
			&row.SourceCount,
			&row.Highlight,
			&row.EmbeddingStatus,
		); err != nil {
			return nil, fmt.Errorf("scan article row: %w", err)
		}
		items = append(items, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate article rows: %w", err)
	}
	return items, nil
}
