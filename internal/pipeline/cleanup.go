package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/DebritB/NewsRAG/internal/globaltime"
)

// CleanupBefore purges articles published before the cutoff. A zero cutoff
// defaults to midnight UTC of the previous day.
func (s *Service) CleanupBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s == nil || s.store == nil {
		return 0, fmt.Errorf("pipeline service is not initialized")
	}

	if cutoff.IsZero() {
		cutoff = globaltime.StartOfPreviousDay()
	}

	purged, err := s.store.PurgePublishedBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	s.logger.Info().
		Time("cutoff", cutoff).
		Int64("purged", purged).
		Msg("cleanup run finished")

	return purged, nil
}
