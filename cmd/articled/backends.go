package main

import (
	"context"
	"fmt"

	"articlehub/internal/blob"
	"articlehub/internal/config"
	"articlehub/internal/events"
	"articlehub/internal/graph"
	"articlehub/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// blobBackend is what both payload stores implement.
type blobBackend interface {
	Upload(ctx context.Context, content string, key string) (string, error)
	Fetch(ctx context.Context, locator string) (string, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, locator string) error
}

// backends holds every open connection for one process.
type backends struct {
	rdb    *redis.Client
	docs   store.DocumentStore
	blobs  blobBackend
	badger *blob.BadgerStore
	graph  graph.Store
	events *events.StreamPublisher

	closers []func() error
}

func openBackends(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{}

	b.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := b.rdb.Ping(ctx).Err(); err != nil {
		b.rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	b.closers = append(b.closers, b.rdb.Close)
	b.events = events.NewStreamPublisher(b.rdb, cfg.EventStream, 0)

	switch cfg.DocumentBackend {
	case config.BackendMongo:
		docs, err := store.NewMongoDocumentStore(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.docs = docs
		b.closers = append(b.closers, docs.Close)
	default:
		// Shares the client; closing it is left to rdb.
		b.docs = store.NewRedisDocumentStoreFromClient(b.rdb)
	}

	switch cfg.BlobBackend {
	case config.BackendS3:
		s3, err := blob.NewS3Store(blob.S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.blobs = s3
	default:
		bs, err := blob.OpenBadger(cfg.BadgerPath, "", logger)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.blobs = bs
		b.badger = bs
		b.closers = append(b.closers, bs.Close)
	}

	switch cfg.GraphBackend {
	case config.BackendNeo4j:
		g, err := graph.NewNeo4jGraph(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, cfg.Neo4jDatabase, cfg.TimelineLimit)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.graph = g
		b.closers = append(b.closers, func() error { return g.Close(context.Background()) })
	default:
		b.graph = graph.NewRedisGraph(b.rdb, cfg.TimelineLimit)
	}

	logger.Info("Backends ready",
		zap.String("documents", cfg.DocumentBackend),
		zap.String("blobs", cfg.BlobBackend),
		zap.String("graph", cfg.GraphBackend))
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() error {
	var first error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}
