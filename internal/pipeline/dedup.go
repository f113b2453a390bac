package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/DebritB/NewsRAG/internal/db"
	"github.com/DebritB/NewsRAG/internal/globaltime"
)

const (
	// DedupSimilarityThreshold is the cosine similarity above which two
	// articles count as the same story.
	DedupSimilarityThreshold = 0.85
	// DedupCandidatePool bounds the ANN candidate set per anchor.
	DedupCandidatePool = 100
	// DedupNeighborLimit caps duplicates consolidated per anchor.
	DedupNeighborLimit = 10
)

// DedupResult summarizes one semantic dedup run.
type DedupResult struct {
	Anchors      int
	Skipped      int
	Consolidated int
	Deleted      int
	Errors       int
}

// DedupComplete walks embedded articles in ascending id order. For each
// surviving anchor it finds near-duplicates above the similarity threshold,
// merges their sources into the anchor, and deletes them. Anchors consumed
// earlier in the same run are skipped; per-anchor failures are logged and the
// run continues.
func (s *Service) DedupComplete(ctx context.Context) (DedupResult, error) {
	if s == nil || s.store == nil {
		return DedupResult{}, fmt.Errorf("pipeline service is not initialized")
	}

	ids, err := s.store.SelectCompleteArticleIDs(ctx)
	if err != nil {
		return DedupResult{}, err
	}

	var result DedupResult
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		outcome, err := s.dedupAnchor(ctx, id)
		switch {
		case err != nil:
			result.Errors++
			s.logger.Warn().Err(err).Int64("article_id", id).Msg("dedup anchor failed")
		case outcome.skipped:
			result.Skipped++
		default:
			result.Anchors++
			if outcome.deleted > 0 {
				result.Consolidated++
				result.Deleted += outcome.deleted
			}
		}
	}

	s.logger.Info().
		Int("anchors", result.Anchors).
		Int("skipped", result.Skipped).
		Int("consolidated", result.Consolidated).
		Int("deleted", result.Deleted).
		Int("errors", result.Errors).
		Msg("dedup run finished")

	return result, nil
}

type anchorOutcome struct {
	skipped bool
	deleted int
}

func (s *Service) dedupAnchor(ctx context.Context, articleID int64) (anchorOutcome, error) {
	anchor, found, err := s.store.GetDedupAnchor(ctx, articleID)
	if err != nil {
		return anchorOutcome{}, err
	}
	if !found {
		// Consumed by an earlier anchor in this run.
		return anchorOutcome{skipped: true}, nil
	}

	neighbors, err := s.store.NearestNeighbors(ctx, anchor.Embedding, DedupCandidatePool, DedupNeighborLimit+1, "")
	if err != nil {
		return anchorOutcome{}, err
	}

	duplicates := make([]db.Neighbor, 0, len(neighbors))
	for _, neighbor := range neighbors {
		if neighbor.ArticleID == anchor.ArticleID {
			continue
		}
		if neighbor.Similarity < DedupSimilarityThreshold {
			continue
		}
		if len(duplicates) < DedupNeighborLimit {
			duplicates = append(duplicates, neighbor)
		}
	}
	if len(duplicates) == 0 {
		return anchorOutcome{}, nil
	}

	sources := mergeSources(anchor, duplicates)
	if err := s.store.ConsolidateSurvivor(ctx, anchor.ArticleID, sources, globaltime.UTC()); err != nil {
		return anchorOutcome{}, err
	}

	outcome := anchorOutcome{}
	for _, duplicate := range duplicates {
		existed, err := s.store.DeleteArticle(ctx, duplicate.ArticleID)
		if err != nil {
			return outcome, err
		}
		if existed {
			outcome.deleted++
		}
	}
	return outcome, nil
}

// mergeSources unions the anchor's source list with the duplicates' sources,
// case-insensitively, preserving first-seen order.
func mergeSources(anchor db.DedupAnchor, duplicates []db.Neighbor) []string {
	seen := make(map[string]struct{})
	merged := make([]string, 0, len(anchor.SourceList)+len(duplicates)+1)

	add := func(source string) {
		trimmed := strings.TrimSpace(source)
		if trimmed == "" {
			return
		}
		key := strings.ToLower(trimmed)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		merged = append(merged, trimmed)
	}

	add(anchor.Source)
	for _, source := range anchor.SourceList {
		add(source)
	}

	// Deterministic union regardless of neighbor ranking ties.
	names := make([]string, 0, len(duplicates))
	for _, duplicate := range duplicates {
		names = append(names, duplicate.Source)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name)
	}

	return merged
}
