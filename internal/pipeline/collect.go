package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/DebritB/NewsRAG/internal/classify"
	"github.com/DebritB/NewsRAG/internal/collector"
	"github.com/DebritB/NewsRAG/internal/db"
	"github.com/DebritB/NewsRAG/internal/globaltime"
	"github.com/DebritB/NewsRAG/internal/langdetect"
	"github.com/DebritB/NewsRAG/internal/llm"
	"github.com/DebritB/NewsRAG/internal/schema"
)

// fallbackAcceptedConfidence is stored when the LLM fallback resolves a
// borderline keyword result.
const fallbackAcceptedConfidence = 0.9

// fallbackSnippetChars bounds the content prefix sent to the chat endpoint
// when an article has no summary.
const fallbackSnippetChars = 1000

// fallbackRetryPolicy gives a borderline item one extra chance against a
// flaky chat endpoint before it is discarded.
var fallbackRetryPolicy = RetryPolicy{
	MaxAttempts: 2,
	BaseDelay:   500 * time.Millisecond,
	Jitter:      true,
}

// CollectResult summarizes one collect-and-classify run.
type CollectResult struct {
	Input          int
	Invalid        int
	ExactDedup     collector.Stats
	Accepted       int
	FallbackCalls  int
	FallbackSaved  int
	Discarded      int
	Inserted       int
	Updated        int
}

// CollectPayload validates a raw JSON array of adapter records and runs the
// collect-and-classify stage over the valid items. Invalid items are counted
// and logged, never fatal for the batch.
func (s *Service) CollectPayload(ctx context.Context, payload json.RawMessage) (CollectResult, error) {
	records, itemErrors, err := schema.ValidateRecords(payload)
	if err != nil {
		return CollectResult{}, err
	}
	for _, itemErr := range itemErrors {
		s.logger.Warn().Err(itemErr).Msg("dropping invalid record")
	}

	result, err := s.CollectRecords(ctx, records)
	result.Input += len(itemErrors)
	result.Invalid = len(itemErrors)
	return result, err
}

// CollectRecords removes exact duplicates, classifies the survivors, routes
// borderline items through the LLM fallback, and upserts accepted items into
// storage in the pending embedding state.
func (s *Service) CollectRecords(ctx context.Context, records []schema.Record) (CollectResult, error) {
	if s == nil || s.store == nil {
		return CollectResult{}, fmt.Errorf("pipeline service is not initialized")
	}

	result := CollectResult{Input: len(records)}

	survivors, stats := s.collector.Dedupe(records)
	result.ExactDedup = stats

	for _, record := range survivors {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		category, confidence, ok := s.routeClassification(ctx, &record, &result)
		if !ok {
			result.Discarded++
			continue
		}
		result.Accepted++

		published, err := record.Published()
		if err != nil {
			// Validation already checked the format; treat a parse error
			// here as a missing timestamp.
			published = nil
		}

		inserted, err := s.store.UpsertArticle(ctx, db.UpsertArticleParams{
			URL:             record.URL,
			Title:           record.Title,
			Source:          record.Source,
			PublishedAt:     published,
			Content:         record.Content,
			Summary:         record.Summary,
			Author:          record.Author,
			ImageURL:        record.ImageURL,
			Keywords:        record.Keywords,
			Language:        detectLanguage(record),
			Category:        category,
			Confidence:      confidence,
			SourceList:      []string{record.Source},
			OccurrenceCount: 1,
		}, globaltime.UTC())
		if err != nil {
			return result, err
		}
		if inserted {
			result.Inserted++
		} else {
			result.Updated++
		}
	}

	s.logger.Info().
		Int("input", result.Input).
		Int("survivors", stats.Survivors).
		Int("accepted", result.Accepted).
		Int("discarded", result.Discarded).
		Int("inserted", result.Inserted).
		Int("updated", result.Updated).
		Msg("collect run finished")

	return result, nil
}

// routeClassification applies the confidence routing: accept at >= 0.5,
// escalate [0.3, 0.5) to the LLM fallback, discard below 0.3 or when no
// category scores at all.
func (s *Service) routeClassification(ctx context.Context, record *schema.Record, result *CollectResult) (string, float64, bool) {
	classification := s.classifier.ClassifyWithDetails(record.Title, record.Content, record.Summary)
	if classification.Category == "" {
		return "", 0, false
	}

	if classification.Confidence >= classify.AcceptConfidence {
		return classification.Category, classification.Confidence, true
	}
	if !classification.NeedsFallback {
		return "", 0, false
	}

	if s.fallback == nil || !s.fallback.Configured() {
		return "", 0, false
	}

	result.FallbackCalls++
	snippet := fallbackSnippet(record)
	var label string
	err := fallbackRetryPolicy.Do(ctx, func() error {
		var callErr error
		label, callErr = s.fallback.ClassifyArticle(ctx, record.Title, snippet, s.classifier.Categories())
		if callErr != nil {
			// Transient by assumption; the budget is small enough that a
			// hard failure just discards the one borderline item.
			return &ServiceError{Op: "fallback classify", Retryable: true, Err: callErr}
		}
		return nil
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("url", record.URL).Msg("fallback classification failed, discarding")
		return "", 0, false
	}
	if label == llm.NoCategory || !s.classifier.IsValidCategory(label) {
		return "", 0, false
	}

	result.FallbackSaved++
	return label, fallbackAcceptedConfidence, true
}

// fallbackSnippet picks the evidence text for the chat endpoint: the summary
// when present, otherwise a bounded content prefix.
func fallbackSnippet(record *schema.Record) string {
	if summary := strings.TrimSpace(record.Summary); summary != "" {
		return summary
	}
	return strings.TrimSpace(truncateChars(record.Content, fallbackSnippetChars))
}

func detectLanguage(record schema.Record) string {
	sample := strings.TrimSpace(record.Title + " " + record.Summary)
	if code := langdetect.DetectISO6391(sample); code != "" {
		return code
	}
	if code := langdetect.DetectISO6391(record.Content); code != "" {
		return code
	}
	return "en"
}
