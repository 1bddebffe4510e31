package worker

import (
	"context"
	"errors"
	"strings"
	"time"

	"articlehub/internal/events"
	"articlehub/internal/metrics"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	DefaultProjectorGroup = "graph-projector"
	projectorBatch        = 32

	// DefaultClaimIdle is how long an entry must sit unacked before any
	// projector claims and retries it.
	DefaultClaimIdle = 30 * time.Second
)

// GraphProjection is the write side of the graph store.
type GraphProjection interface {
	EnsureArticle(ctx context.Context, id, collectionID string) error
	RemoveArticle(ctx context.Context, id string) error
}

// Projector keeps the graph's article nodes in step with the event stream.
type Projector struct {
	rdb      *redis.Client
	stream   string
	group    string
	consumer string
	graph    GraphProjection
	logger   *zap.Logger
	block    time.Duration

	claimIdle   time.Duration
	lastReclaim time.Time
}

func NewProjector(rdb *redis.Client, stream, consumer string, graph GraphProjection, logger *zap.Logger) *Projector {
	if stream == "" {
		stream = events.DefaultStream
	}
	if consumer == "" {
		consumer = "projector-1"
	}
	return &Projector{
		rdb:       rdb,
		stream:    stream,
		group:     DefaultProjectorGroup,
		consumer:  consumer,
		graph:     graph,
		logger:    logger,
		block:     5 * time.Second,
		claimIdle: DefaultClaimIdle,
	}
}

// Start consumes the stream until ctx is done.
func (p *Projector) Start(ctx context.Context) {
	if err := p.ensureGroup(ctx); err != nil {
		p.logger.Error("Failed to create consumer group", zap.Error(err))
		return
	}
	p.logger.Info("Projector started", zap.String("stream", p.stream))

	for {
		if time.Since(p.lastReclaim) >= p.claimIdle {
			if _, err := p.reclaim(ctx); err != nil && ctx.Err() == nil {
				p.logger.Error("Pending reclaim failed", zap.Error(err))
			}
			p.lastReclaim = time.Now()
		}

		if _, err := p.poll(ctx, p.block); err != nil {
			if ctx.Err() != nil {
				p.logger.Info("Projector shutting down")
				return
			}
			p.logger.Error("Stream read error", zap.Error(err))
			if !sleepCtx(ctx, time.Second) {
				p.logger.Info("Projector shutting down")
				return
			}
		}
	}
}

// Drain retries pending entries idle for at least the claim idle time, then
// applies every new entry without blocking. It returns how many entries were
// handled.
func (p *Projector) Drain(ctx context.Context) (int, error) {
	if err := p.ensureGroup(ctx); err != nil {
		return 0, err
	}
	total, err := p.reclaim(ctx)
	if err != nil {
		return total, err
	}
	for {
		n, err := p.poll(ctx, -1)
		total += n
		if err != nil || n == 0 {
			return total, err
		}
	}
}

func (p *Projector) ensureGroup(ctx context.Context) error {
	err := p.rdb.XGroupCreateMkStream(ctx, p.stream, p.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// reclaim takes over entries left pending by any consumer of the group,
// including this one, and applies them again. Each entry is claimed at most
// once per call since claiming resets its idle time.
func (p *Projector) reclaim(ctx context.Context) (int, error) {
	n := 0
	start := "0-0"
	for {
		msgs, next, err := p.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   p.stream,
			Group:    p.group,
			Consumer: p.consumer,
			MinIdle:  p.claimIdle,
			Start:    start,
			Count:    projectorBatch,
		}).Result()
		if err != nil {
			return n, err
		}
		for _, msg := range msgs {
			p.handle(ctx, msg)
			n++
		}
		if next == "0-0" || next == "" {
			return n, nil
		}
		start = next
	}
}

// poll reads one batch. A negative block returns immediately.
func (p *Projector) poll(ctx context.Context, block time.Duration) (int, error) {
	streams, err := p.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    p.group,
		Consumer: p.consumer,
		Streams:  []string{p.stream, ">"},
		Count:    projectorBatch,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	n := 0
	for _, s := range streams {
		for _, msg := range s.Messages {
			p.handle(ctx, msg)
			n++
		}
	}
	return n, nil
}

// handle applies one entry. Malformed entries are acked so they are not
// redelivered; graph failures stay pending until reclaim retries them.
func (p *Projector) handle(ctx context.Context, msg redis.XMessage) {
	logger := p.logger.With(zap.String("entry_id", msg.ID))

	e, err := events.ParseMessage(msg)
	if err != nil {
		logger.Warn("Dropping malformed event", zap.Error(err))
		metrics.ProjectedEvents.WithLabelValues("unknown", "malformed").Inc()
		p.ack(ctx, logger, msg.ID)
		return
	}

	switch e.Type {
	case events.ArticleCreated, events.ArticleUpdated:
		err = p.graph.EnsureArticle(ctx, e.ArticleID, e.CollectionID)
	case events.ArticleDeleted:
		err = p.graph.RemoveArticle(ctx, e.ArticleID)
	default:
		logger.Debug("Ignoring event", zap.String("event_type", string(e.Type)))
	}
	if err != nil {
		metrics.ProjectedEvents.WithLabelValues(string(e.Type), "error").Inc()
		logger.Error("Projection failed", zap.String("article_id", e.ArticleID), zap.Error(err))
		return
	}

	metrics.ProjectedEvents.WithLabelValues(string(e.Type), "ok").Inc()
	p.ack(ctx, logger, msg.ID)
}

func (p *Projector) ack(ctx context.Context, logger *zap.Logger, id string) {
	if err := p.rdb.XAck(ctx, p.stream, p.group, id).Err(); err != nil {
		logger.Warn("Ack failed", zap.Error(err))
	}
}
