// Package pipeline implements the article pipeline stages: collect and
// classify, embed, semantic dedup, highlight scoring, and retention cleanup.
package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/DebritB/NewsRAG/internal/classify"
	"github.com/DebritB/NewsRAG/internal/collector"
	"github.com/DebritB/NewsRAG/internal/db"
)

// ArticleStore is the persistence surface the pipeline stages need. *db.Pool
// implements it; tests substitute an in-memory fake.
type ArticleStore interface {
	UpsertArticle(ctx context.Context, a db.UpsertArticleParams, now time.Time) (bool, error)
	SelectPendingEmbedding(ctx context.Context, limit int) ([]db.PendingEmbeddingArticle, error)
	MarkEmbeddingComplete(ctx context.Context, articleID int64, vectorLiteral string, now time.Time) error
	MarkEmbeddingFailed(ctx context.Context, articleID int64, reason string, retryCount int, now time.Time) error
	RequeueEmbedding(ctx context.Context, articleID int64, reason string, retryCount int, now time.Time) error
	SelectCompleteArticleIDs(ctx context.Context) ([]int64, error)
	GetDedupAnchor(ctx context.Context, articleID int64) (db.DedupAnchor, bool, error)
	NearestNeighbors(ctx context.Context, vectorLiteral string, candidatePool, limit int, category string) ([]db.Neighbor, error)
	ConsolidateSurvivor(ctx context.Context, articleID int64, sourceList []string, now time.Time) error
	DeleteArticle(ctx context.Context, articleID int64) (bool, error)
	SelectRecentForHighlight(ctx context.Context, since time.Time) ([]db.HighlightArticle, error)
	ResetHighlights(ctx context.Context, since time.Time, now time.Time) (int64, error)
	SetHighlight(ctx context.Context, articleID int64, now time.Time) error
	PurgePublishedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Embedder produces one vector per text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

// FallbackClassifier resolves borderline keyword classifications.
type FallbackClassifier interface {
	Configured() bool
	ClassifyArticle(ctx context.Context, title, summary string, allowed []string) (string, error)
}

// Options tunes the stages; zero values fall back to defaults.
type Options struct {
	// EmbedCallDelay is the minimum spacing between embedding calls.
	EmbedCallDelay time.Duration
	// EmbedMaxRetries bounds throttle retries per article.
	EmbedMaxRetries int
}

const (
	DefaultEmbedCallDelay  = 1500 * time.Millisecond
	DefaultEmbedMaxRetries = 3
)

type Service struct {
	store      ArticleStore
	embedder   Embedder
	fallback   FallbackClassifier
	classifier *classify.Classifier
	collector  *collector.Collector
	logger     zerolog.Logger

	embedCallDelay  time.Duration
	embedMaxRetries int

	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(
	store ArticleStore,
	embedder Embedder,
	fallback FallbackClassifier,
	prioritySources []string,
	logger zerolog.Logger,
	opts Options,
) *Service {
	if opts.EmbedCallDelay <= 0 {
		opts.EmbedCallDelay = DefaultEmbedCallDelay
	}
	if opts.EmbedMaxRetries <= 0 {
		opts.EmbedMaxRetries = DefaultEmbedMaxRetries
	}
	return &Service{
		store:           store,
		embedder:        embedder,
		fallback:        fallback,
		classifier:      classify.Default(),
		collector:       collector.New(prioritySources),
		logger:          logger,
		embedCallDelay:  opts.EmbedCallDelay,
		embedMaxRetries: opts.EmbedMaxRetries,
		sleep:           sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
