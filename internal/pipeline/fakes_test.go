package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/DebritB/NewsRAG/internal/db"
)

// memStore is an in-memory ArticleStore used by the stage tests.
type memStore struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*memArticle
}

type memArticle struct {
	id          int64
	url         string
	title       string
	source      string
	publishedAt *time.Time
	content     string
	summary     string
	category    string
	confidence  float64
	embedding   string
	status      string
	retryCount  int
	embedError  string
	sourceList  []string
	occurrence  int
	highlight   bool
	createdAt   time.Time
	updatedAt   time.Time
}

func newMemStore() *memStore {
	return &memStore{rows: map[int64]*memArticle{}}
}

func (m *memStore) add(a *memArticle) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	a.id = m.nextID
	if a.status == "" {
		a.status = db.EmbeddingPending
	}
	if a.occurrence == 0 {
		a.occurrence = 1
	}
	m.rows[a.id] = a
	return a.id
}

func (m *memStore) get(id int64) *memArticle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id]
}

func (m *memStore) byURL(url string) *memArticle {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.url == url {
			return row
		}
	}
	return nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) UpsertArticle(_ context.Context, a db.UpsertArticleParams, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, row := range m.rows {
		if row.url == a.URL {
			row.title = a.Title
			row.source = a.Source
			row.publishedAt = a.PublishedAt
			row.content = a.Content
			row.summary = a.Summary
			row.category = a.Category
			row.confidence = a.Confidence
			row.embedding = ""
			row.status = db.EmbeddingPending
			row.retryCount = 0
			row.embedError = ""
			row.sourceList = a.SourceList
			row.occurrence = a.OccurrenceCount
			row.updatedAt = now
			return false, nil
		}
	}

	m.nextID++
	m.rows[m.nextID] = &memArticle{
		id:          m.nextID,
		url:         a.URL,
		title:       a.Title,
		source:      a.Source,
		publishedAt: a.PublishedAt,
		content:     a.Content,
		summary:     a.Summary,
		category:    a.Category,
		confidence:  a.Confidence,
		status:      db.EmbeddingPending,
		sourceList:  a.SourceList,
		occurrence:  a.OccurrenceCount,
		createdAt:   now,
		updatedAt:   now,
	}
	return true, nil
}

func (m *memStore) SelectPendingEmbedding(_ context.Context, limit int) ([]db.PendingEmbeddingArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := m.sortedIDsLocked()
	out := make([]db.PendingEmbeddingArticle, 0, limit)
	for _, id := range ids {
		row := m.rows[id]
		if row.status != db.EmbeddingPending {
			continue
		}
		out = append(out, db.PendingEmbeddingArticle{
			ArticleID:  row.id,
			URL:        row.url,
			Title:      row.title,
			Summary:    row.summary,
			Content:    row.content,
			RetryCount: row.retryCount,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) MarkEmbeddingComplete(_ context.Context, articleID int64, vectorLiteral string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok {
		return fmt.Errorf("article %d not found", articleID)
	}
	row.embedding = vectorLiteral
	row.status = db.EmbeddingComplete
	row.embedError = ""
	row.updatedAt = now
	return nil
}

func (m *memStore) MarkEmbeddingFailed(_ context.Context, articleID int64, reason string, retryCount int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok {
		return fmt.Errorf("article %d not found", articleID)
	}
	row.status = db.EmbeddingFailed
	row.embedError = reason
	row.retryCount = retryCount
	row.updatedAt = now
	return nil
}

func (m *memStore) RequeueEmbedding(_ context.Context, articleID int64, reason string, retryCount int, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok {
		return fmt.Errorf("article %d not found", articleID)
	}
	row.status = db.EmbeddingPending
	row.embedError = reason
	row.retryCount = retryCount
	row.updatedAt = now
	return nil
}

func (m *memStore) SelectCompleteArticleIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, id := range m.sortedIDsLocked() {
		if m.rows[id].status == db.EmbeddingComplete {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) GetDedupAnchor(_ context.Context, articleID int64) (db.DedupAnchor, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok || row.status != db.EmbeddingComplete {
		return db.DedupAnchor{}, false, nil
	}
	return db.DedupAnchor{
		ArticleID:  row.id,
		Source:     row.source,
		SourceList: append([]string(nil), row.sourceList...),
		Embedding:  row.embedding,
	}, true, nil
}

func (m *memStore) NearestNeighbors(_ context.Context, vectorLiteral string, candidatePool, limit int, category string) ([]db.Neighbor, error) {
	query, err := parseVectorLiteral(vectorLiteral)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var neighbors []db.Neighbor
	for _, id := range m.sortedIDsLocked() {
		row := m.rows[id]
		if row.status != db.EmbeddingComplete {
			continue
		}
		if category != "" && row.category != category {
			continue
		}
		candidate, err := parseVectorLiteral(row.embedding)
		if err != nil {
			return nil, err
		}
		neighbors = append(neighbors, db.Neighbor{
			ArticleID:  row.id,
			Source:     row.source,
			Title:      row.title,
			Similarity: cosineSimilarity(query, candidate),
		})
	}

	sort.Slice(neighbors, func(i, j int) bool {
		return neighbors[i].Similarity > neighbors[j].Similarity
	})
	if len(neighbors) > candidatePool {
		neighbors = neighbors[:candidatePool]
	}
	if len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func (m *memStore) ConsolidateSurvivor(_ context.Context, articleID int64, sourceList []string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok {
		return fmt.Errorf("article %d not found", articleID)
	}
	row.sourceList = sourceList
	row.occurrence = len(sourceList)
	row.updatedAt = now
	return nil
}

func (m *memStore) DeleteArticle(_ context.Context, articleID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[articleID]; !ok {
		return false, nil
	}
	delete(m.rows, articleID)
	return true, nil
}

func (m *memStore) SelectRecentForHighlight(_ context.Context, since time.Time) ([]db.HighlightArticle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []db.HighlightArticle
	for _, id := range m.sortedIDsLocked() {
		row := m.rows[id]
		if row.publishedAt == nil || row.publishedAt.Before(since) {
			continue
		}
		out = append(out, db.HighlightArticle{
			ArticleID:       row.id,
			Category:        row.category,
			Title:           row.title,
			Summary:         row.summary,
			OccurrenceCount: row.occurrence,
		})
	}
	return out, nil
}

func (m *memStore) ResetHighlights(_ context.Context, since time.Time, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var cleared int64
	for _, row := range m.rows {
		if row.highlight && row.publishedAt != nil && !row.publishedAt.Before(since) {
			row.highlight = false
			row.updatedAt = now
			cleared++
		}
	}
	return cleared, nil
}

func (m *memStore) SetHighlight(_ context.Context, articleID int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[articleID]
	if !ok {
		return fmt.Errorf("article %d not found", articleID)
	}
	row.highlight = true
	row.updatedAt = now
	return nil
}

func (m *memStore) PurgePublishedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var purged int64
	for id, row := range m.rows {
		if row.publishedAt != nil && row.publishedAt.Before(cutoff) {
			delete(m.rows, id)
			purged++
		}
	}
	return purged, nil
}

func (m *memStore) sortedIDsLocked() []int64 {
	ids := make([]int64, 0, len(m.rows))
	for id := range m.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func parseVectorLiteral(literal string) ([]float64, error) {
	trimmed := strings.Trim(strings.TrimSpace(literal), "[]")
	if trimmed == "" {
		return nil, fmt.Errorf("empty vector literal")
	}
	parts := strings.Split(trimmed, ",")
	values := make([]float64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, value)
	}
	return values, nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// stubEmbedder returns canned vectors or errors per call.
type stubEmbedder struct {
	mu      sync.Mutex
	calls   int
	results []stubEmbedResult
}

type stubEmbedResult struct {
	vector []float64
	err    error
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) == 0 {
		return unitVector(0), nil
	}
	result := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	s.calls++
	return result.vector, result.err
}

// stubFallback returns a fixed label and records the last request.
type stubFallback struct {
	configured  bool
	label       string
	err         error
	calls       int
	lastTitle   string
	lastSnippet string
}

func (s *stubFallback) Configured() bool {
	return s.configured
}

func (s *stubFallback) ClassifyArticle(_ context.Context, title, snippet string, _ []string) (string, error) {
	s.calls++
	s.lastTitle = title
	s.lastSnippet = snippet
	return s.label, s.err
}

// unitVector builds a 1024-dim unit vector pointing along the given axis.
func unitVector(axis int) []float64 {
	v := make([]float64, 1024)
	v[axis%1024] = 1
	return v
}

// blendedVector mixes two axes so cosine similarity against unitVector(a)
// can be tuned between 0 and 1.
func blendedVector(axisA, axisB int, weightA, weightB float64) []float64 {
	v := make([]float64, 1024)
	v[axisA%1024] = weightA
	v[axisB%1024] = weightB
	return v
}

func vectorLiteral(values []float64) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = strconv.FormatFloat(value, 'f', -1, 64)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func newTestService(store ArticleStore, embedder Embedder, fallback FallbackClassifier) *Service {
	svc := NewService(store, embedder, fallback, nil, zerolog.Nop(), Options{
		EmbedCallDelay:  time.Millisecond,
		EmbedMaxRetries: 3,
	})
	svc.sleep = func(context.Context, time.Duration) error { return nil }
	return svc
}
