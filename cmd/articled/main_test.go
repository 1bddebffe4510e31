package main

import (
	"context"
	"testing"
	"time"

	"articlehub/internal/blob"
	"articlehub/internal/events"
	"articlehub/internal/graph"
	"articlehub/internal/model"
	"articlehub/internal/store"
	"articlehub/internal/worker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBackends(t *testing.T) *backends {
	t.Helper()
	logger = zap.NewNop()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	bs, err := blob.OpenBadger("", "", logger)
	require.NoError(t, err)

	b := &backends{
		rdb:     rdb,
		docs:    store.NewRedisDocumentStoreFromClient(rdb),
		blobs:   bs,
		badger:  bs,
		graph:   graph.NewRedisGraph(rdb, 0),
		events:  events.NewStreamPublisher(rdb, "", 0),
		closers: []func() error{rdb.Close, bs.Close},
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestRunSeed(t *testing.T) {
	ctx := context.Background()
	b := newTestBackends(t)
	svc := newService(b)

	seed := seedFile{
		Collections: []model.Collection{{ID: "go", Name: "Go"}},
		Articles: []model.ArticleInput{
			{ID: "channels", Title: "Channels", Text: "unbuffered", CollectionID: "go"},
			{ID: "select", Title: "Select", Text: "default case", CollectionID: "go"},
		},
		Users: []model.User{{ID: "ada", LikedArticles: []string{"channels"}}},
	}
	require.NoError(t, runSeed(ctx, b, svc, seed))

	collections, err := b.docs.FindAllCollections(ctx)
	require.NoError(t, err)
	assert.Len(t, collections, 1)

	user, err := b.docs.FindUserByID(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, user.LikedArticles, 1)
	liked, err := svc.GetArticleByID(ctx, user.LikedArticles[0])
	require.NoError(t, err)
	assert.Equal(t, "unbuffered", liked.Text)

	// The shared collection hub links the liked article to its sibling.
	timeline, err := svc.GetTimeline(ctx, "ada")
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, "Select", timeline[0].Title)
}

func TestRunSeed_RejectsInvalidArticle(t *testing.T) {
	b := newTestBackends(t)

	ctx := context.Background()

	err := runSeed(ctx, b, newService(b), seedFile{
		Articles: []model.ArticleInput{{Title: "empty"}},
	})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	locators, err := b.blobs.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, locators)
	articles, err := b.docs.FindAllArticles(ctx)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestQueueImport_LeavesBadgerToServer(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	// The running server holds the directory lock.
	held, err := blob.OpenBadger(t.TempDir(), "", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { held.Close() })

	job := worker.ImportJob{URL: "https://example.com/post", CollectionID: "c1", Tags: []string{"go"}}
	require.NoError(t, queueImport(ctx, mr.Addr(), job))

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	got, err := worker.NewImportQueue(rdb).Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, job, got)
}

func TestOrphanHandler(t *testing.T) {
	ctx := context.Background()
	b := newTestBackends(t)

	locator, err := b.blobs.Upload(ctx, "stray", "6f1c2c1e-8a4b-4b7e-9a57-2f1d6b1c0a09")
	require.NoError(t, err)

	require.NoError(t, orphanHandler(b, false)(ctx, locator))
	_, err = b.blobs.Fetch(ctx, locator)
	require.NoError(t, err)

	require.NoError(t, orphanHandler(b, true)(ctx, locator))
	_, err = b.blobs.Fetch(ctx, locator)
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger("warn")
	assert.NoError(t, err)
	_, err = newLogger("chatty")
	assert.Error(t, err)
}
