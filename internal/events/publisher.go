package events

import (
	"context"
	"encoding/json"
	"time"

	"articlehub/internal/model"
	"articlehub/internal/store"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// StreamPublisher writes events with XADD. The stream is trimmed
// approximately to maxLen entries.
type StreamPublisher struct {
	rdb    *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

func NewStreamPublisher(rdb *redis.Client, stream string, maxLen int64) *StreamPublisher {
	if stream == "" {
		stream = DefaultStream
	}
	return &StreamPublisher{rdb: rdb, stream: stream, maxLen: maxLen, now: time.Now}
}

// Stream returns the stream key events are written to.
func (p *StreamPublisher) Stream() string {
	return p.stream
}

// Publish appends e and returns the entry id.
func (p *StreamPublisher) Publish(ctx context.Context, e Event) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = p.now()
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: e.values(),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.rdb.XAdd(ctx, args).Result()
	if err != nil {
		return "", store.Unavailable("publish event", err)
	}
	return id, nil
}

func (p *StreamPublisher) PublishArticleCreated(ctx context.Context, article model.Article) error {
	return p.publishArticle(ctx, ArticleCreated, article)
}

func (p *StreamPublisher) PublishArticleUpdated(ctx context.Context, article model.Article) error {
	return p.publishArticle(ctx, ArticleUpdated, article)
}

func (p *StreamPublisher) PublishArticleDeleted(ctx context.Context, id string) error {
	_, err := p.Publish(ctx, Event{Type: ArticleDeleted, ArticleID: id})
	return err
}

func (p *StreamPublisher) publishArticle(ctx context.Context, t Type, article model.Article) error {
	payload, err := json.Marshal(article)
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, Event{
		Type:         t,
		ArticleID:    article.ID,
		CollectionID: article.CollectionID,
		Payload:      payload,
	})
	return err
}
