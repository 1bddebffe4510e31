// Package article coordinates article writes and reads across the document
// store, the payload blob store, the graph store and the event stream.
//
// Writes upload the payload before inserting the document. A failed insert
// leaves an orphaned blob for worker.Sweeper to reclaim.
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
)

const defaultHydrateWorkers = 8

// Documents is the part of the document store the service uses.
type Documents interface {
	InsertArticle(ctx context.Context, article model.Article) error
	ReplaceArticleByID(ctx context.Context, id string, article model.Article) (int64, error)
	DeleteArticleByID(ctx context.Context, id string) (int64, error)
	FindArticleByID(ctx context.Context, id string) (*model.Article, error)
	FindArticlesByCollectionID(ctx context.Context, collectionID string) ([]model.Article, error)
	FindAllArticles(ctx context.Context) ([]model.Article, error)
	FindAllCollections(ctx context.Context) ([]model.Collection, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)
}

// Blobs stores payloads and resolves locators.
type Blobs interface {
	Upload(ctx context.Context, content string, key string) (string, error)
	Fetch(ctx context.Context, locator string) (string, error)
}

// Ranker returns related article ids in presentation order.
type Ranker interface {
	RankNeighbors(ctx context.Context, seedIDs []string) ([]string, error)
}

// Events announces state changes. Errors are logged and dropped.
type Events interface {
	PublishArticleCreated(ctx context.Context, article model.Article) error
	PublishArticleUpdated(ctx context.Context, article model.Article) error
	PublishArticleDeleted(ctx context.Context, id string) error
}

// Service holds no per-request state and is safe for concurrent use.
type Service struct {
	docs           Documents
	blobs          Blobs
	graph          Ranker
	events         Events
	logger         *zap.Logger
	hydrateWorkers int
}

type Option func(*Service)

// WithHydrateWorkers bounds parallel document lookups in GetTimeline.
func WithHydrateWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.hydrateWorkers = n
		}
	}
}

func NewService(docs Documents, blobs Blobs, graph Ranker, events Events, logger *zap.Logger, opts ...Option) *Service {
	s := &Service{
		docs:           docs,
		blobs:          blobs,
		graph:          graph,
		events:         events,
		logger:         logger,
		hydrateWorkers: defaultHydrateWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateArticle stores the draft's text as a blob, inserts the document with
// the blob locator in place of the text, then announces it. The returned view
// echoes the input text. Drafts failing Validate are rejected before any write.
func (s *Service) CreateArticle(ctx context.Context, in model.ArticleInput, now time.Time) (out model.ArticleOutput, err error) {
	defer observe("create", time.Now(), &err)

	if err := in.Validate(); err != nil {
		return model.ArticleOutput{}, err
	}
	article := model.ArticleFromInput(in)
	article.ID = model.NewID()
	article.CreatedAt = now
	logger := s.logger.With(zap.String("article_id", article.ID))

	raw := article.Text
	locator, err := s.blobs.Upload(ctx, raw, article.ID)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("upload payload: %w", err)
	}
	article.Text = locator

	if err := s.docs.InsertArticle(ctx, article); err != nil {
		logger.Warn("Insert failed after payload upload, blob is orphaned",
			zap.String("locator", locator), zap.Error(err))
		return model.ArticleOutput{}, fmt.Errorf("insert article: %w", err)
	}

	s.publish(logger, "created", s.events.PublishArticleCreated(ctx, article))

	logger.Info("Pushed article")
	return model.ContentView(article, raw), nil
}

// UpdateArticle replaces the document under id with one built from the draft.
// The payload is not re-uploaded: the stored locator and creation time are
// carried into the replacement, and the draft's text only appears in the
// returned view. A missing id matches nothing and is not an error.
func (s *Service) UpdateArticle(ctx context.Context, in model.ArticleInput, id string) (out model.ArticleOutput, err error) {
	defer observe("update", time.Now(), &err)

	id, err = model.ParseArticleID(id)
	if err != nil {
		return model.ArticleOutput{}, err
	}
	if err := in.Validate(); err != nil {
		return model.ArticleOutput{}, err
	}
	logger := s.logger.With(zap.String("article_id", id))

	article := model.ArticleFromInput(in)
	article.ID = id

	existing, err := s.docs.FindArticleByID(ctx, id)
	switch {
	case err == nil:
		article.Text = existing.Text
		article.CreatedAt = existing.CreatedAt
	case errors.Is(err, store.ErrNotFound):
	default:
		return model.ArticleOutput{}, fmt.Errorf("load article: %w", err)
	}

	matched, err := s.docs.ReplaceArticleByID(ctx, id, article)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("replace article: %w", err)
	}
	if matched > 0 {
		s.publish(logger, "updated", s.events.PublishArticleUpdated(ctx, article))
	}

	logger.Info("Updated article", zap.Int64("matched", matched))
	return model.ContentView(article, in.Text), nil
}

// DeleteArticle removes the document. The payload blob is left in place.
func (s *Service) DeleteArticle(ctx context.Context, id string) (deleted bool, err error) {
	defer observe("delete", time.Now(), &err)

	id, err = model.ParseArticleID(id)
	if err != nil {
		return false, err
	}

	n, err := s.docs.DeleteArticleByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete article: %w", err)
	}
	logger := s.logger.With(zap.String("article_id", id))
	if n > 0 {
		s.publish(logger, "deleted", s.events.PublishArticleDeleted(ctx, id))
	}

	logger.Info("Deleted article(s)", zap.Int64("count", n))
	return n > 0, nil
}

func (s *Service) publish(logger *zap.Logger, eventType string, err error) {
	if err == nil {
		return
	}
	metrics.EventPublishFailures.WithLabelValues(eventType).Inc()
	logger.Warn("Event publish failed", zap.String("event_type", eventType), zap.Error(err))
}

func observe(operation string, start time.Time, err *error) {
	metrics.RecordOperation(operation, *err, time.Since(start).Seconds())
}
