package service

import (
	"context"
	"time"

	apprepository "github.com/sifan077/shortng/internal/app/repository"
	"go.uber.org/zap"
)

const defaultPruneInterval = time.Hour

// JournalPruner periodically deletes save events older than the retention period.
type JournalPruner struct {
	logger    *zap.Logger
	repo      apprepository.SaveEventRepository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	stopChan  chan struct{}
}

// NewJournalPruner creates a new journal pruner.
func NewJournalPruner(logger *zap.Logger, repo apprepository.SaveEventRepository, retention time.Duration) *JournalPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JournalPruner{
		logger:    logger,
		repo:      repo,
		retention: retention,
		interval:  defaultPruneInterval,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start begins the periodic pruning.
func (p *JournalPruner) Start() {
	go p.run()
}

// Stop stops the periodic pruning.
func (p *JournalPruner) Stop() {
	close(p.stopChan)
}

func (p *JournalPruner) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.Prune(context.Background())
		case <-p.stopChan:
			p.logger.Info("journal pruner stopped")
			return
		}
	}
}

// Prune deletes expired entries once and returns how many were removed.
func (p *JournalPruner) Prune(ctx context.Context) int64 {
	before := p.now().Add(-p.retention)

	affected, err := p.repo.DeleteOlderThan(ctx, before)
	if err != nil {
		p.logger.Error("failed to prune save journal", zap.Error(err))
		return 0
	}

	if affected > 0 {
		p.logger.Info("pruned save journal",
			zap.Int64("count", affected),
			zap.Time("before", before),
		)
	}
	return affected
}
