package service

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically removes expired challenges
type Sweeper struct {
	challenges *ChallengeService
	interval   time.Duration
	logger     *slog.Logger
}

// NewSweeper creates a sweeper running every interval (the challenge TTL when interval <= 0)
func NewSweeper(challenges *ChallengeService, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = challenges.TTL()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		challenges: challenges,
		interval:   interval,
		logger:     logger.With("component", "sweeper"),
	}
}

// Run sweeps on every tick until ctx is cancelled. Failed sweeps are logged and retried next tick.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("challenge sweeper started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("challenge sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.challenges.CleanupExpiredChallenges(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("sweep failed", "error", err)
			}
		}
	}
}
