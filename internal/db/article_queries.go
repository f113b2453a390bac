package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// UpsertArticleParams carries one classified article into the store. The url
// is the upsert identity key; a re-collected url overwrites the previous row
// and re-enters the embedding queue, keeping created_at from the first sight.
type UpsertArticleParams struct {
	URL             string
	Title           string
	Source          string
	PublishedAt     *time.Time
	Content         string
	Summary         string
	Author          *string
	ImageURL        *string
	Keywords        []string
	Language        string
	Category        string
	Confidence      float64
	SourceList      []string
	OccurrenceCount int
}

// PendingEmbeddingArticle is one row claimed by the embedding stage.
type PendingEmbeddingArticle struct {
	ArticleID  int64
	URL        string
	Title      string
	Summary    string
	Content    string
	RetryCount int
}

// DedupAnchor is the projection the semantic deduplicator works on.
type DedupAnchor struct {
	ArticleID  int64
	Source     string
	SourceList []string
	Embedding  string
}

// Neighbor is one ranked nearest-neighbor result.
type Neighbor struct {
	ArticleID  int64
	Source     string
	Title      string
	Similarity float64
}

// HighlightArticle is the projection the highlighter scores.
type HighlightArticle struct {
	ArticleID       int64
	Category        string
	Title           string
	Summary         string
	OccurrenceCount int
}

func (p *Pool) UpsertArticle(ctx context.Context, a UpsertArticleParams, now time.Time) (bool, error) {
	keywordsJSON, err := json.Marshal(a.Keywords)
	if err != nil {
		return false, fmt.Errorf("marshal keywords for url=%s: %w", a.URL, err)
	}
	sourceListJSON, err := json.Marshal(a.SourceList)
	if err != nil {
		return false, fmt.Errorf("marshal source_list for url=%s: %w", a.URL, err)
	}

	const q = `
INSERT INTO news.articles (
	url,
	title,
	source,
	published_at,
	content,
	summary,
	author,
	image_url,
	keywords,
	language,
	category,
	confidence,
	embedding,
	embedding_status,
	embedding_retry_count,
	embedding_error,
	source_list,
	occurrence_count,
	highlight,
	created_at,
	updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, NULL, 'pending', 0, NULL, $13::jsonb, $14, FALSE, $15, $15)
ON CONFLICT (url) DO UPDATE
SET
	title = EXCLUDED.title,
	source = EXCLUDED.source,
	published_at = EXCLUDED.published_at,
	content = EXCLUDED.content,
	summary = EXCLUDED.summary,
	author = EXCLUDED.author,
	image_url = EXCLUDED.image_url,
	keywords = EXCLUDED.keywords,
	language = EXCLUDED.language,
	category = EXCLUDED.category,
	confidence = EXCLUDED.confidence,
	embedding = NULL,
	embedding_status = 'pending',
	embedding_retry_count = 0,
	embedding_error = NULL,
	source_list = EXCLUDED.source_list,
	occurrence_count = EXCLUDED.occurrence_count,
	updated_at = EXCLUDED.updated_at
RETURNING (created_at = updated_at) AS inserted
`

	var inserted bool
	err = p.QueryRow(
		ctx,
		q,
		a.URL,
		a.Title,
		a.Source,
		a.PublishedAt,
		a.Content,
		a.Summary,
		a.Author,
		a.ImageURL,
		string(keywordsJSON),
		a.Language,
		a.Category,
		a.Confidence,
		string(sourceListJSON),
		a.OccurrenceCount,
		now,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert article url=%s: %w", a.URL, err)
	}
	return inserted, nil
}

func (p *Pool) SelectPendingEmbedding(ctx context.Context, limit int) ([]PendingEmbeddingArticle, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be > 0")
	}

	const q = `
SELECT
	a.article_id,
	a.url,
	a.title,
	a.summary,
	a.content,
	a.embedding_retry_count
FROM news.articles a
WHERE a.embedding_status = 'pending'
ORDER BY a.article_id
LIMIT $1
`

	rows, err := p.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("select pending embedding articles: %w", err)
	}
	defer rows.Close()

	articles := make([]PendingEmbeddingArticle, 0, limit)
	for rows.Next() {
		var row PendingEmbeddingArticle
		if err := rows.Scan(&row.ArticleID, &row.URL, &row.Title, &row.Summary, &row.Content, &row.RetryCount); err != nil {
			return nil, fmt.Errorf("scan pending embedding article: %w", err)
		}
		articles = append(articles, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending embedding articles: %w", err)
	}
	return articles, nil
}

func (p *Pool) MarkEmbeddingComplete(ctx context.Context, articleID int64, vectorLiteral string, now time.Time) error {
	const q = `
UPDATE news.articles
SET
	embedding = $2::vector,
	embedding_status = 'complete',
	embedding_error = NULL,
	updated_at = $3
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, articleID, vectorLiteral, now); err != nil {
		return fmt.Errorf("mark embedding complete article_id=%d: %w", articleID, err)
	}
	return nil
}

func (p *Pool) MarkEmbeddingFailed(ctx context.Context, articleID int64, reason string, retryCount int, now time.Time) error {
	const q = `
UPDATE news.articles
SET
	embedding_status = 'failed',
	embedding_retry_count = $3,
	embedding_error = $2,
	updated_at = $4
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, articleID, reason, retryCount, now); err != nil {
		return fmt.Errorf("mark embedding failed article_id=%d: %w", articleID, err)
	}
	return nil
}

// RequeueEmbedding leaves the article pending for a later run while recording
// the throttle error and the bumped retry count.
func (p *Pool) RequeueEmbedding(ctx context.Context, articleID int64, reason string, retryCount int, now time.Time) error {
	const q = `
UPDATE news.articles
SET
	embedding_status = 'pending',
	embedding_retry_count = $3,
	embedding_error = $2,
	updated_at = $4
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, articleID, reason, retryCount, now); err != nil {
		return fmt.Errorf("requeue embedding article_id=%d: %w", articleID, err)
	}
	return nil
}

func (p *Pool) SelectCompleteArticleIDs(ctx context.Context) ([]int64, error) {
	const q = `
SELECT a.article_id
FROM news.articles a
WHERE a.embedding_status = 'complete'
ORDER BY a.article_id
`

	rows, err := p.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("select complete article ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan complete article id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate complete article ids: %w", err)
	}
	return ids, nil
}

// GetDedupAnchor re-verifies the anchor still exists; a row consumed earlier
// in the same run reports found=false instead of an error.
func (p *Pool) GetDedupAnchor(ctx context.Context, articleID int64) (DedupAnchor, bool, error) {
	const q = `
SELECT
	a.article_id,
	a.source,
	a.source_list,
	a.embedding::text
FROM news.articles a
WHERE a.article_id = $1
  AND a.embedding_status = 'complete'
`

	var anchor DedupAnchor
	var sourceListJSON []byte
	err := p.QueryRow(ctx, q, articleID).Scan(&anchor.ArticleID, &anchor.Source, &sourceListJSON, &anchor.Embedding)
	if err != nil {
		if IsNoRows(err) {
			return DedupAnchor{}, false, nil
		}
		return DedupAnchor{}, false, fmt.Errorf("get dedup anchor article_id=%d: %w", articleID, err)
	}

	if len(sourceListJSON) > 0 {
		if err := json.Unmarshal(sourceListJSON, &anchor.SourceList); err != nil {
			return DedupAnchor{}, false, fmt.Errorf("decode source_list article_id=%d: %w", articleID, err)
		}
	}
	return anchor, true, nil
}

// NearestNeighbors ranks articles by cosine similarity to the query vector.
// The inner query bounds the candidate pool before the final limit, mirroring
// the numCandidates/limit split of an ANN index search.
func (p *Pool) NearestNeighbors(ctx context.Context, vectorLiteral string, candidatePool, limit int, category string) ([]Neighbor, error) {
	if candidatePool <= 0 || limit <= 0 {
		return nil, fmt.Errorf("candidate pool and limit must be > 0")
	}

	const q = `
SELECT
	sub.article_id,
	sub.source,
	sub.title,
	sub.similarity
FROM (
	SELECT
		a.article_id,
		a.source,
		a.title,
		(1 - (a.embedding <=> $1::vector))::DOUBLE PRECISION AS similarity
	FROM news.articles a
	WHERE a.embedding_status = 'complete'
	  AND ($2 = '' OR a.category = $2)
	ORDER BY a.embedding <=> $1::vector ASC
	LIMIT $3
) sub
ORDER BY sub.similarity DESC
LIMIT $4
`

	rows, err := p.Query(ctx, q, vectorLiteral, category, candidatePool, limit)
	if err != nil {
		return nil, fmt.Errorf("query nearest neighbors: %w", err)
	}
	defer rows.Close()

	neighbors := make([]Neighbor, 0, limit)
	for rows.Next() {
		var n Neighbor
		if err := rows.Scan(&n.ArticleID, &n.Source, &n.Title, &n.Similarity); err != nil {
			return nil, fmt.Errorf("scan nearest neighbor: %w", err)
		}
		neighbors = append(neighbors, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate nearest neighbors: %w", err)
	}
	return neighbors, nil
}

func (p *Pool) ConsolidateSurvivor(ctx context.Context, articleID int64, sourceList []string, now time.Time) error {
	sourceListJSON, err := json.Marshal(sourceList)
	if err != nil {
		return fmt.Errorf("marshal source_list article_id=%d: %w", articleID, err)
	}

	const q = `
UPDATE news.articles
SET
	source_list = $2::jsonb,
	occurrence_count = $3,
	updated_at = $4
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, articleID, string(sourceListJSON), len(sourceList), now); err != nil {
		return fmt.Errorf("consolidate survivor article_id=%d: %w", articleID, err)
	}
	return nil
}

// DeleteArticle removes one subsumed duplicate. The rows-affected result
// doubles as the existence check guarding concurrent dedup runs.
func (p *Pool) DeleteArticle(ctx context.Context, articleID int64) (bool, error) {
	const q = `
DELETE FROM news.articles
WHERE article_id = $1
`
	tag, err := p.Exec(ctx, q, articleID)
	if err != nil {
		return false, fmt.Errorf("delete article article_id=%d: %w", articleID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Pool) SelectRecentForHighlight(ctx context.Context, since time.Time) ([]HighlightArticle, error) {
	const q = `
SELECT
	a.article_id,
	a.category,
	a.title,
	a.summary,
	a.occurrence_count
FROM news.articles a
WHERE a.published_at >= $1
ORDER BY a.article_id
`

	rows, err := p.Query(ctx, q, since)
	if err != nil {
		return nil, fmt.Errorf("select recent articles for highlight: %w", err)
	}
	defer rows.Close()

	var articles []HighlightArticle
	for rows.Next() {
		var row HighlightArticle
		if err := rows.Scan(&row.ArticleID, &row.Category, &row.Title, &row.Summary, &row.OccurrenceCount); err != nil {
			return nil, fmt.Errorf("scan highlight article: %w", err)
		}
		articles = append(articles, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate highlight articles: %w", err)
	}
	return articles, nil
}

func (p *Pool) ResetHighlights(ctx context.Context, since time.Time, now time.Time) (int64, error) {
	const q = `
UPDATE news.articles
SET highlight = FALSE, updated_at = $2
WHERE published_at >= $1
  AND highlight = TRUE
`
	tag, err := p.Exec(ctx, q, since, now)
	if err != nil {
		return 0, fmt.Errorf("reset highlights: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Pool) SetHighlight(ctx context.Context, articleID int64, now time.Time) error {
	const q = `
UPDATE news.articles
SET highlight = TRUE, updated_at = $2
WHERE article_id = $1
`
	if _, err := p.Exec(ctx, q, articleID, now); err != nil {
		return fmt.Errorf("set highlight article_id=%d: %w", articleID, err)
	}
	return nil
}

func (p *Pool) PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const q = `
DELETE FROM news.articles
WHERE published_at < $1
`
	tag, err := p.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge articles before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
