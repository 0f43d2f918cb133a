package service

import (
	"context"
	"fmt"
	"time"

	"github.com/layer-3/rola/internal/metrics"
	"github.com/layer-3/rola/ports"
	"go.uber.org/zap"
)

// Sweeper periodically deletes expired challenges. Consume rejects expired
// challenges on its own, the sweeper only reclaims storage.
type Sweeper struct {
	repo     ports.ChallengeRepository
	interval time.Duration
	logger   *zap.Logger
	metrics  metrics.Recorder

	now func() time.Time
}

// NewSweeper creates a sweeper. A zero interval disables Run.
func NewSweeper(repo ports.ChallengeRepository, interval time.Duration, logger *zap.Logger, m metrics.Recorder) *Sweeper {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Sweeper{
		repo:     repo,
		interval: interval,
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Run sweeps on every tick until ctx is done. Failed sweeps are logged and retried on
// the next tick.
func (s *Sweeper) Run(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("challenge sweeper disabled")
		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("challenge sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce deletes every challenge expired by now and returns how many were removed
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()

	deleted, err := s.repo.PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired challenges: %w", err)
	}

	s.metrics.ChallengesPurged(deleted)
	s.logger.Info("challenge sweep completed",
		zap.Int64("deleted_count", deleted),
		zap.Duration("duration", time.Since(start)),
	)
	return deleted, nil
}
