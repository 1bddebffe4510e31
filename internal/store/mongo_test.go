package store

import (
	"context"
	"os"
	"testing"
	"time"

	"articlehub/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a real server only when MONGO_URI is set.
func TestMongoDocumentStore_Integration(t *testing.T) {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		t.Skip("MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := "articlehub_test_" + model.NewID()[:8]
	st, err := NewMongoDocumentStore(ctx, uri, db)
	require.NoError(t, err)
	defer func() {
		_ = st.client.Database(db).Drop(context.Background())
		st.Close()
	}()

	article := testArticle("c1", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, st.InsertArticle(ctx, article))

	got, err := st.FindArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, article.Text, got.Text)

	inC1, err := st.FindArticlesByCollectionID(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, inC1, 1)

	loose := testArticle("", time.Now().UTC().Truncate(time.Millisecond))
	require.NoError(t, st.InsertArticle(ctx, loose))
	unfiled, err := st.FindArticlesByCollectionID(ctx, "")
	require.NoError(t, err)
	require.Len(t, unfiled, 1)
	assert.Equal(t, loose.ID, unfiled[0].ID)

	matched, err := st.ReplaceArticleByID(ctx, model.NewID(), article)
	require.NoError(t, err)
	assert.Equal(t, int64(0), matched)

	deleted, err := st.DeleteArticleByID(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = st.FindArticleByID(ctx, article.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, st.PutUser(ctx, model.User{ID: "u1", LikedArticles: []string{"a"}}))
	u, err := st.FindUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, u.LikedArticles)
}
