package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"articlehub/internal/metrics"
	"articlehub/internal/model"

	"go.uber.org/zap"
)

// BlobInventory enumerates and removes stored payloads.
type BlobInventory interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, locator string) error
}

// ArticleLister enumerates every article document.
type ArticleLister interface {
	FindAllArticles(ctx context.Context) ([]model.Article, error)
}

// OrphanHandler is called once per confirmed orphan on every sweep that
// still finds it.
type OrphanHandler func(ctx context.Context, locator string) error

// LogOrphans only reports orphans.
func LogOrphans(logger *zap.Logger) OrphanHandler {
	return func(ctx context.Context, locator string) error {
		logger.Warn("Orphaned payload blob", zap.String("locator", locator))
		return nil
	}
}

// DeleteOrphans removes orphans from the blob store.
func DeleteOrphans(blobs BlobInventory, logger *zap.Logger) OrphanHandler {
	return func(ctx context.Context, locator string) error {
		if err := blobs.Delete(ctx, locator); err != nil {
			return err
		}
		metrics.OrphanBlobs.WithLabelValues("deleted").Inc()
		logger.Info("Deleted orphaned payload blob", zap.String("locator", locator))
		return nil
	}
}

// SweepResult summarises one pass.
type SweepResult struct {
	Blobs      int
	Referenced int
	Suspects   int
	Orphans    []string
	Failed     int
}

// Sweeper finds payload blobs that no document points at. A blob has to be
// unreferenced on two consecutive passes before it is handed to the handler,
// so a create caught between its upload and its insert is never reported.
type Sweeper struct {
	blobs    BlobInventory
	docs     ArticleLister
	handler  OrphanHandler
	logger   *zap.Logger
	interval time.Duration

	mu       sync.Mutex
	suspects map[string]struct{}
}

func NewSweeper(blobs BlobInventory, docs ArticleLister, handler OrphanHandler, interval time.Duration, logger *zap.Logger) *Sweeper {
	if handler == nil {
		handler = LogOrphans(logger)
	}
	return &Sweeper{
		blobs:    blobs,
		docs:     docs,
		handler:  handler,
		logger:   logger,
		interval: interval,
		suspects: map[string]struct{}{},
	}
}

// Start sweeps every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Sweeper started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Sweeper shutting down")
			return
		case <-ticker.C:
			res, err := s.SweepOnce(ctx)
			if err != nil {
				s.logger.Error("Sweep failed", zap.Error(err))
				continue
			}
			s.logger.Info("Sweep complete",
				zap.Int("blobs", res.Blobs),
				zap.Int("suspects", res.Suspects),
				zap.Int("orphans", len(res.Orphans)))
		}
	}
}

// SweepOnce runs a single pass.
func (s *Sweeper) SweepOnce(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Blobs are listed before documents: a document inserted in between is
	// still seen, so live payloads are never suspected twice in a row.
	locators, err := s.blobs.List(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list blobs: %w", err)
	}
	articles, err := s.docs.FindAllArticles(ctx)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list articles: %w", err)
	}

	referenced := make(map[string]struct{}, len(articles))
	for _, a := range articles {
		referenced[a.Text] = struct{}{}
	}

	res := SweepResult{Blobs: len(locators)}
	next := map[string]struct{}{}
	for _, locator := range locators {
		if _, ok := referenced[locator]; ok {
			res.Referenced++
			continue
		}
		next[locator] = struct{}{}
		if _, seen := s.suspects[locator]; !seen {
			continue
		}

		res.Orphans = append(res.Orphans, locator)
		metrics.OrphanBlobs.WithLabelValues("found").Inc()
		if err := s.handler(ctx, locator); err != nil {
			res.Failed++
			s.logger.Warn("Orphan handler failed", zap.String("locator", locator), zap.Error(err))
		}
	}
	s.suspects = next
	res.Suspects = len(next)
	return res, nil
}
