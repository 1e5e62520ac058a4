package service

import (
	"context"
	"errors"
	"time"

	errpkg "github.com/veranemoloko/tgdl-core/internal/errors"
	"github.com/veranemoloko/tgdl-core/internal/metrics"
)

// CleanupExpired removes terminal batches and standalone tasks whose
// retention window has passed. It returns how many were removed.
func (s *BatchService) CleanupExpired(ctx context.Context) (int, error) {
	now := s.opts.Now()
	ids, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		ok, err := s.store.DeleteExpired(ctx, id, now)
		if errors.Is(err, errpkg.ErrBatchNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("failed to delete expired aggregate", "root_id", id, "error", err)
			continue
		}
		if !ok {
			continue
		}
		removed++
		metrics.AggregatesExpired.Inc()
	}

	if removed > 0 {
		s.logger.Info("expired aggregates removed", "count", removed)
	}
	return removed, nil
}

// StartCleanup runs CleanupExpired every interval until ctx is done.
func (s *BatchService) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.CleanupExpired(ctx); err != nil {
					s.logger.Error("cleanup failed", "error", err)
				}
			}
		}
	}()
}
