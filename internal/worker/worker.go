package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"articlehub/internal/model"
	"articlehub/internal/store"

	"github.com/go-shiori/go-readability"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const importQueueKey = "queue:import"

// Scraper defines the interface for downloading web pages.
// This allows us to mock the "Download" step in tests.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

// Creator is the article service's create operation.
type Creator interface {
	CreateArticle(ctx context.Context, in model.ArticleInput, now time.Time) (model.ArticleOutput, error)
}

// ImportJob asks for URL to be scraped into a new article.
type ImportJob struct {
	URL          string   `json:"url"`
	CollectionID string   `json:"collection_id,omitempty"`
	Tags         []string `json:"tags,omitempty"`
}

// ImportQueue is a Redis list of pending import jobs.
type ImportQueue struct {
	rdb *redis.Client
}

func NewImportQueue(rdb *redis.Client) *ImportQueue {
	return &ImportQueue{rdb: rdb}
}

// Push queues a job for the importer.
func (q *ImportQueue) Push(ctx context.Context, job ImportJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, importQueueKey, data).Err(); err != nil {
		return store.Unavailable("queue import", err)
	}
	return nil
}

// Pop waits for a job (blocking). A zero timeout waits forever.
func (q *ImportQueue) Pop(ctx context.Context, timeout time.Duration) (ImportJob, error) {
	result, err := q.rdb.BRPop(ctx, timeout, importQueueKey).Result()
	if err != nil {
		return ImportJob{}, err
	}

	var job ImportJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return ImportJob{}, fmt.Errorf("decode import job: %w", err)
	}
	return job, nil
}

// Importer turns queued URLs into articles.
type Importer struct {
	queue   *ImportQueue
	creator Creator
	logger  *zap.Logger
	scraper Scraper
	timeout time.Duration
}

// NewImporter initializes the importer with the DefaultScraper
func NewImporter(queue *ImportQueue, creator Creator, logger *zap.Logger) *Importer {
	return &Importer{
		queue:   queue,
		creator: creator,
		logger:  logger,
		scraper: &DefaultScraper{},
		timeout: 30 * time.Second,
	}
}

// Start runs the importer loop
func (w *Importer) Start(ctx context.Context) {
	w.logger.Info("Importer started. Waiting for jobs...")

	for {
		job, err := w.queue.Pop(ctx, 0)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Importer shutting down")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				w.logger.Info("Importer shutting down")
				return
			}
			continue
		}

		if _, err := w.Import(ctx, job); err != nil {
			w.logger.Error("Import failed", zap.String("url", job.URL), zap.Error(err))
		}
	}
}

// Import scrapes job.URL and creates an article from the readable content.
func (w *Importer) Import(ctx context.Context, job ImportJob) (model.ArticleOutput, error) {
	logger := w.logger.With(zap.String("url", job.URL))
	logger.Info("Downloading")

	parsed, err := w.scraper.Scrape(job.URL, w.timeout)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("scrape %s: %w", job.URL, err)
	}

	in := model.ArticleInput{
		Title:        parsed.Title,
		Summary:      parsed.Excerpt,
		SourceURL:    job.URL,
		Text:         parsed.Content,
		CollectionID: job.CollectionID,
		Tags:         job.Tags,
	}
	if err := in.Validate(); err != nil {
		return model.ArticleOutput{}, fmt.Errorf("scraped page: %w", err)
	}

	out, err := w.creator.CreateArticle(ctx, in, time.Now())
	if err != nil {
		return model.ArticleOutput{}, err
	}

	logger.Info("Import complete", zap.String("article_id", out.ID), zap.String("title", out.Title))
	return out, nil
}

// sleepCtx waits for d or until ctx is done, reporting whether the full wait
// elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
