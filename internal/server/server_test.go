package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"articlehub/internal/article"
	"articlehub/internal/blob"
	"articlehub/internal/events"
	"articlehub/internal/graph"
	"articlehub/internal/model"
	"articlehub/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	handler http.Handler
	docs    *store.RedisDocumentStore
	graph   *graph.RedisGraph
	mr      *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	db, err := badger.Open(opts)
	require.NoError(t, err)
	blobs := blob.NewBadgerStore(db, "", zap.NewNop())
	t.Cleanup(func() { blobs.Close() })

	docs := store.NewRedisDocumentStoreFromClient(rdb)
	g := graph.NewRedisGraph(rdb, 0)
	svc := article.NewService(docs, blobs, g, events.NewStreamPublisher(rdb, "", 0), zap.NewNop())

	srv := NewServer(svc, zap.NewNop())
	srv.now = func() time.Time { return time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC) }
	return &testEnv{handler: srv.Handler(), docs: docs, graph: g, mr: mr}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestServer_ArticleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/articles", model.ArticleInput{
		Title:        "Greeting",
		Text:         "hello world",
		CollectionID: "c1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.ArticleOutput](t, rec)
	assert.Equal(t, "hello world", created.Text)
	assert.Equal(t, "c1", created.CollectionID)
	assert.Equal(t, 2026, created.CreatedAt.Year())

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello world", decode[model.ArticleOutput](t, rec).Text)

	rec = env.do(t, http.MethodPut, "/articles/"+created.ID, model.ArticleInput{
		Title:        "Farewell",
		Text:         "goodbye",
		CollectionID: "c1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "goodbye", decode[model.ArticleOutput](t, rec).Text)

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID, nil)
	got := decode[model.ArticleOutput](t, rec)
	assert.Equal(t, "Farewell", got.Title)
	assert.Equal(t, "hello world", got.Text)

	rec = env.do(t, http.MethodGet, "/collections/c1/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.ArticleOutput](t, rec), 1)

	rec = env.do(t, http.MethodGet, "/articles", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]model.ArticleOutput](t, rec)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Text)

	rec = env.do(t, http.MethodDelete, "/articles/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"deleted": true}, decode[map[string]bool](t, rec))

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ArticleForUser(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/articles", model.ArticleInput{Title: "t", Text: "body"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[model.ArticleOutput](t, rec)

	require.NoError(t, env.docs.PutUser(context.Background(), model.User{ID: "u1", LikedArticles: []string{created.ID}}))

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID+"?user=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[model.ArticleOutput](t, rec)
	require.NotNil(t, out.LikedByUser)
	assert.True(t, *out.LikedByUser)

	rec = env.do(t, http.MethodGet, "/articles/"+created.ID+"?user=nobody", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Timeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var ids []string
	for _, text := range []string{"seed", "neighbour"} {
		rec := env.do(t, http.MethodPost, "/articles", model.ArticleInput{Title: text, Text: text})
		require.Equal(t, http.StatusCreated, rec.Code)
		ids = append(ids, decode[model.ArticleOutput](t, rec).ID)
	}
	require.NoError(t, env.graph.RecordLike(ctx, "friend", ids[0]))
	require.NoError(t, env.graph.RecordLike(ctx, "friend", ids[1]))
	require.NoError(t, env.docs.PutUser(ctx, model.User{ID: "me", LikedArticles: []string{ids[0]}}))

	rec := env.do(t, http.MethodGet, "/users/me/timeline", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	timeline := decode[[]model.ArticleOutput](t, rec)
	require.Len(t, timeline, 1)
	assert.Equal(t, ids[1], timeline[0].ID)

	rec = env.do(t, http.MethodGet, "/users/ghost/timeline", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ErrorMapping(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/articles/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/articles", model.ArticleInput{Title: "no text"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "text is required")

	req := httptest.NewRequest(http.MethodPost, "/articles", strings.NewReader("{"))
	raw := httptest.NewRecorder()
	env.handler.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	env.mr.Close()
	rec = env.do(t, http.MethodGet, "/articles", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestServer_HealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	env.do(t, http.MethodGet, "/articles", nil)
	rec = env.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "articlehub_operations_total")
}
