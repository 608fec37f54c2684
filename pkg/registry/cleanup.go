package registry

import (
	"context"
	"time"
)

// purgeInterval is how often the soft-delete cleanup job runs. It need
// not match the 6-month retention window exactly; daily is frequent
// enough to keep the purged set small each run.
const purgeInterval = 24 * time.Hour

// RunPurgeLoop blocks, purging soft-deleted device rows older than the
// retention window on every tick, until ctx is cancelled.
func (s *Store) RunPurgeLoop(ctx context.Context) error {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.purgeOnce(ctx); err != nil {
				s.logger.Error("soft-delete purge pass failed", "error", err)
			}
		}
	}
}

func (s *Store) purgeOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-purgeAfter)
	n, err := s.q.PurgeUnclaimedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if n > 0 {
		s.logger.Info("purged soft-deleted device rows", "count", n)
	}
	return nil
}
