package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/DebritB/NewsRAG/internal/db"
	"github.com/DebritB/NewsRAG/internal/embedding"
	"github.com/DebritB/NewsRAG/internal/globaltime"
)

const (
	DefaultEmbedBatchLimit = 100

	// maxConsecutiveThrottles aborts the batch: the service is saturated
	// and hammering it further only burns per-article retry budget.
	maxConsecutiveThrottles = 3

	// contentFallbackChars bounds the content prefix used when an article
	// has no summary.
	contentFallbackChars = 500
)

// EmbedResult summarizes one embedding run.
type EmbedResult struct {
	Processed int
	Embedded  int
	Requeued  int
	Failed    int
}

// EmbedPending walks the pending queue in article id order and embeds each
// article. Empty inputs fail permanently without burning retries; throttles
// bump the retry count and requeue until the per-article budget runs out;
// other errors fail the article. Three consecutive throttles abort the run
// with ErrThrottleBudgetExhausted.
func (s *Service) EmbedPending(ctx context.Context, limit int) (EmbedResult, error) {
	if s == nil || s.store == nil || s.embedder == nil {
		return EmbedResult{}, fmt.Errorf("pipeline service is not initialized")
	}
	if limit <= 0 {
		limit = DefaultEmbedBatchLimit
	}

	articles, err := s.store.SelectPendingEmbedding(ctx, limit)
	if err != nil {
		return EmbedResult{}, err
	}

	var result EmbedResult
	consecutiveThrottles := 0
	calledService := false

	for _, article := range articles {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		input := embeddingInput(article)
		if input == "" {
			result.Processed++
			result.Failed++
			if err := s.store.MarkEmbeddingFailed(ctx, article.ArticleID, "empty content", article.RetryCount, globaltime.UTC()); err != nil {
				return result, err
			}
			continue
		}

		// Space out calls so a burst of pending articles does not trip the
		// service's rate limiter.
		if calledService {
			if err := s.sleep(ctx, s.embedCallDelay); err != nil {
				return result, err
			}
		}
		calledService = true

		result.Processed++
		vector, embedErr := s.embedder.Embed(ctx, input)
		if embedErr == nil {
			consecutiveThrottles = 0
			literal, err := embedding.ToVectorLiteral(vector)
			if err != nil {
				result.Failed++
				if err := s.store.MarkEmbeddingFailed(ctx, article.ArticleID, err.Error(), article.RetryCount, globaltime.UTC()); err != nil {
					return result, err
				}
				continue
			}
			if err := s.store.MarkEmbeddingComplete(ctx, article.ArticleID, literal, globaltime.UTC()); err != nil {
				return result, err
			}
			result.Embedded++
			continue
		}

		if errors.Is(embedErr, context.Canceled) || errors.Is(embedErr, context.DeadlineExceeded) {
			return result, embedErr
		}

		if embedding.IsThrottle(embedErr) {
			consecutiveThrottles++
			retryCount := article.RetryCount + 1
			if retryCount < s.embedMaxRetries {
				result.Requeued++
				if err := s.store.RequeueEmbedding(ctx, article.ArticleID, embedErr.Error(), retryCount, globaltime.UTC()); err != nil {
					return result, err
				}
			} else {
				result.Failed++
				if err := s.store.MarkEmbeddingFailed(ctx, article.ArticleID, embedErr.Error(), retryCount, globaltime.UTC()); err != nil {
					return result, err
				}
			}

			if consecutiveThrottles >= maxConsecutiveThrottles {
				s.logger.Warn().
					Int("consecutive_throttles", consecutiveThrottles).
					Msg("aborting embedding run, service is saturated")
				return result, ErrThrottleBudgetExhausted
			}
			continue
		}

		consecutiveThrottles = 0
		result.Failed++
		s.logger.Warn().Err(embedErr).Int64("article_id", article.ArticleID).Msg("embedding failed")
		if err := s.store.MarkEmbeddingFailed(ctx, article.ArticleID, embedErr.Error(), article.RetryCount, globaltime.UTC()); err != nil {
			return result, err
		}
	}

	s.logger.Info().
		Int("processed", result.Processed).
		Int("embedded", result.Embedded).
		Int("requeued", result.Requeued).
		Int("failed", result.Failed).
		Msg("embed run finished")

	return result, nil
}

// embeddingInput builds the text to embed: the title followed by the summary,
// falling back to a content prefix when the summary is empty.
func embeddingInput(article db.PendingEmbeddingArticle) string {
	title := strings.TrimSpace(article.Title)
	body := strings.TrimSpace(article.Summary)
	if body == "" {
		body = strings.TrimSpace(truncateChars(article.Content, contentFallbackChars))
	}

	switch {
	case title == "" && body == "":
		return ""
	case body == "":
		return title
	case title == "":
		return body
	default:
		return title + " " + body
	}
}

func truncateChars(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
