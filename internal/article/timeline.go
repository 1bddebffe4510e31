package article

import (
	"context"
	"errors"
	"fmt"
	"time"

	"articlehub/internal/metrics"
	"articlehub/internal/model"
	"articlehub/internal/store"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// GetTimeline recommends articles from the user's liked set. The graph
// decides the order; ids that no longer resolve to a document are dropped
// rather than failing the feed.
func (s *Service) GetTimeline(ctx context.Context, userID string) (out []model.ArticleOutput, err error) {
	defer observe("timeline", time.Now(), &err)

	if err := model.CheckRefID(userID); err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("user_id", userID))

	user, err := s.docs.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("find user %s: %w", userID, err)
	}

	seeds := user.LikedIDs()
	if len(seeds) == 0 {
		logger.Info("Retrieved recommended articles", zap.Int("count", 0))
		return []model.ArticleOutput{}, nil
	}

	ranked, err := s.graph.RankNeighbors(ctx, seeds)
	if err != nil {
		return nil, fmt.Errorf("rank neighbors: %w", err)
	}

	hydrated := s.hydrate(ctx, logger, ranked)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out = make([]model.ArticleOutput, 0, len(ranked))
	for _, a := range hydrated {
		if a != nil {
			out = append(out, model.ListView(*a))
		}
	}

	logger.Info("Retrieved recommended articles",
		zap.Int("ranked", len(ranked)), zap.Int("count", len(out)))
	return out, nil
}

// hydrate looks up every ranked id in parallel. The result is index-aligned
// with ids; unresolved entries are nil.
func (s *Service) hydrate(ctx context.Context, logger *zap.Logger, ids []string) []*model.Article {
	slots := make([]*model.Article, len(ids))

	var g errgroup.Group
	g.SetLimit(s.hydrateWorkers)
	for i, id := range ids {
		g.Go(func() error {
			article, err := s.docs.FindArticleByID(ctx, id)
			switch {
			case err == nil:
				slots[i] = article
			case errors.Is(err, store.ErrNotFound):
				metrics.TimelineSkipped.WithLabelValues("missing").Inc()
			default:
				metrics.TimelineSkipped.WithLabelValues("error").Inc()
				logger.Warn("Skipping timeline candidate", zap.String("article_id", id), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return slots
}
