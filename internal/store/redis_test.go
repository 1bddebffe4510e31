package store

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"articlehub/internal/model"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*RedisDocumentStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := NewRedisDocumentStoreFromClient(rdb)
	t.Cleanup(func() { st.Close() })
	return st, mr
}

func testArticle(collectionID string, createdAt time.Time) model.Article {
	return model.Article{
		ID:           model.NewID(),
		Title:        "Test Article",
		Text:         "badger://article/whatever",
		CollectionID: collectionID,
		CreatedAt:    createdAt,
	}
}

func TestRedisDocumentStore_InsertAndFind(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	article := testArticle("c1", time.Now())
	require.NoError(t, st.InsertArticle(ctx, article))

	val, err := mr.Get("article:" + article.ID)
	require.NoError(t, err, "document should be stored under its key")
	var saved model.Article
	require.NoError(t, json.Unmarshal([]byte(val), &saved))
	assert.Equal(t, "Test Article", saved.Title)

	assert.True(t, mr.Exists(allArticlesKey))
	members, err := mr.Members("collection:c1:articles")
	require.NoError(t, err)
	assert.Equal(t, []string{article.ID}, members)

	got, err := st.FindArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Text, got.Text)

	_, err = st.FindArticleByID(ctx, model.NewID())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisDocumentStore_FindAllArticles_CreationOrder(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Now()
	second := testArticle("", base.Add(time.Second))
	first := testArticle("", base)
	require.NoError(t, st.InsertArticle(ctx, second))
	require.NoError(t, st.InsertArticle(ctx, first))

	all, err := st.FindAllArticles(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
}

func TestRedisDocumentStore_ReplaceMovesCollectionIndex(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	article := testArticle("c1", time.Now())
	require.NoError(t, st.InsertArticle(ctx, article))

	replacement := article
	replacement.Title = "Replaced"
	replacement.CollectionID = "c2"
	matched, err := st.ReplaceArticleByID(ctx, article.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, int64(1), matched)

	inC1, err := st.FindArticlesByCollectionID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, inC1)

	inC2, err := st.FindArticlesByCollectionID(ctx, "c2")
	require.NoError(t, err)
	require.Len(t, inC2, 1)
	assert.Equal(t, "Replaced", inC2[0].Title)
}

func TestRedisDocumentStore_FindUnfiledArticles(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	filed := testArticle("c1", now)
	first := testArticle("", now.Add(time.Second))
	second := testArticle("", now.Add(2*time.Second))
	for _, a := range []model.Article{second, filed, first} {
		require.NoError(t, st.InsertArticle(ctx, a))
	}

	unfiled, err := st.FindArticlesByCollectionID(ctx, "")
	require.NoError(t, err)
	require.Len(t, unfiled, 2)
	assert.Equal(t, first.ID, unfiled[0].ID)
	assert.Equal(t, second.ID, unfiled[1].ID)
}

func TestRedisDocumentStore_ReplaceMissingMatchesNothing(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	id := model.NewID()
	matched, err := st.ReplaceArticleByID(ctx, id, testArticle("c1", time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)
	assert.False(t, mr.Exists("article:"+id), "replace must not upsert")
}

func TestRedisDocumentStore_Delete(t *testing.T) {
	st, mr := newTestStore(t)
	ctx := context.Background()

	article := testArticle("c1", time.Now())
	require.NoError(t, st.InsertArticle(ctx, article))

	deleted, err := st.DeleteArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
	assert.False(t, mr.Exists("article:"+article.ID))

	all, err := st.FindAllArticles(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	deleted, err = st.DeleteArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}

func TestRedisDocumentStore_CollectionsAndUsers(t *testing.T) {
	st, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, st.PutCollection(ctx, model.Collection{ID: "c2", Name: "Two"}))
	require.NoError(t, st.PutCollection(ctx, model.Collection{ID: "c1", Name: "One"}))

	collections, err := st.FindAllCollections(ctx)
	require.NoError(t, err)
	require.Len(t, collections, 2)
	assert.Equal(t, "c1", collections[0].ID)

	require.NoError(t, st.PutUser(ctx, model.User{ID: "u1", LikedArticles: []string{"a", "b"}}))
	u, err := st.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, u.LikedArticles)

	_, err = st.FindUserByID(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisDocumentStore_Unavailable(t *testing.T) {
	st, mr := newTestStore(t)
	mr.Close()

	_, err := st.FindAllArticles(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
