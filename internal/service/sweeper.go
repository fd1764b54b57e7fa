package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chatcore/internal/domain"
	"chatcore/internal/metrics"
)

// OrphanSweeper garbage-collects conversations that have no memberships.
// Such rows can appear when a client creates a conversation and dies before
// inserting the first membership; they are invisible to every access check,
// so removing them is unobservable.
type OrphanSweeper struct {
	conversations domain.ConversationRepository
	rec           metrics.Recorder
	log           *zap.Logger

	MinAge time.Duration
}

func NewOrphanSweeper(conversations domain.ConversationRepository, rec metrics.Recorder, log *zap.Logger, minAge time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		conversations: conversations,
		rec:           rec,
		log:           log,
		MinAge:        minAge,
	}
}

// SweepOnce removes orphans older than MinAge.
func (s *OrphanSweeper) SweepOnce(ctx context.Context) (int64, error) {
	n, err := s.conversations.SweepOrphans(ctx, s.MinAge)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.rec.RecordOrphansSwept(n)
		s.log.Info("swept orphan conversations", zap.Int64("count", n))
	}
	return n, nil
}

// Run sweeps on the given interval until the context is cancelled.
func (s *OrphanSweeper) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				s.log.Warn("orphan sweep failed", zap.Error(err))
			}
		}
	}
}
