package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"articlehub/internal/model"

	"github.com/redis/go-redis/v9"
)

const (
	allArticlesKey    = "articles:all"
	allCollectionsKey = "collections:all"
	maxWatchRetries   = 3
)

func articleKey(id string) string            { return fmt.Sprintf("article:%s", id) }
func collectionKey(id string) string         { return fmt.Sprintf("collection:%s", id) }
func collectionArticlesKey(id string) string { return fmt.Sprintf("collection:%s:articles", id) }
func userKey(id string) string               { return fmt.Sprintf("user:%s", id) }

// RedisDocumentStore keeps JSON documents in Redis. Articles are enumerated
// through a sorted set scored by creation time and filtered by collection
// through one set per collection.
type RedisDocumentStore struct {
	rdb *redis.Client
}

// NewRedisDocumentStore connects and pings Redis at addr.
func NewRedisDocumentStore(addr string) (*RedisDocumentStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisDocumentStore{rdb: rdb}, nil
}

// NewRedisDocumentStoreFromClient wraps an existing client.
func NewRedisDocumentStoreFromClient(rdb *redis.Client) *RedisDocumentStore {
	return &RedisDocumentStore{rdb: rdb}
}

// Close cleans up the connection
func (s *RedisDocumentStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisDocumentStore) InsertArticle(ctx context.Context, article model.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return err
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, articleKey(article.ID), data, 0)
		pipe.ZAdd(ctx, allArticlesKey, redis.Z{
			Score:  float64(article.CreatedAt.UnixMicro()),
			Member: article.ID,
		})
		if article.CollectionID != "" {
			pipe.SAdd(ctx, collectionArticlesKey(article.CollectionID), article.ID)
		}
		return nil
	})
	if err != nil {
		return Unavailable("insert article", err)
	}
	return nil
}

// ReplaceArticleByID overwrites the document under id and moves it between
// collection indexes. A missing document matches nothing and is not an error.
func (s *RedisDocumentStore) ReplaceArticleByID(ctx context.Context, id string, article model.Article) (int64, error) {
	article.ID = id
	data, err := json.Marshal(article)
	if err != nil {
		return 0, err
	}

	var matched int64
	err = s.watch(ctx, articleKey(id), func(tx *redis.Tx) error {
		old, err := getArticle(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			matched = 0
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, articleKey(id), data, 0)
			if old.CollectionID != article.CollectionID {
				if old.CollectionID != "" {
					pipe.SRem(ctx, collectionArticlesKey(old.CollectionID), id)
				}
				if article.CollectionID != "" {
					pipe.SAdd(ctx, collectionArticlesKey(article.CollectionID), id)
				}
			}
			return nil
		})
		if err == nil {
			matched = 1
		}
		return err
	})
	if err != nil {
		return 0, Unavailable("replace article", err)
	}
	return matched, nil
}

func (s *RedisDocumentStore) DeleteArticleByID(ctx context.Context, id string) (int64, error) {
	var deleted int64
	err := s.watch(ctx, articleKey(id), func(tx *redis.Tx) error {
		old, err := getArticle(ctx, tx, id)
		if errors.Is(err, ErrNotFound) {
			deleted = 0
			return nil
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, articleKey(id))
			pipe.ZRem(ctx, allArticlesKey, id)
			if old.CollectionID != "" {
				pipe.SRem(ctx, collectionArticlesKey(old.CollectionID), id)
			}
			return nil
		})
		if err == nil {
			deleted = 1
		}
		return err
	})
	if err != nil {
		return 0, Unavailable("delete article", err)
	}
	return deleted, nil
}

func (s *RedisDocumentStore) FindArticleByID(ctx context.Context, id string) (*model.Article, error) {
	article, err := getArticle(ctx, s.rdb, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, Unavailable("find article", err)
	}
	return article, err
}

func (s *RedisDocumentStore) FindAllArticles(ctx context.Context) ([]model.Article, error) {
	ids, err := s.rdb.ZRange(ctx, allArticlesKey, 0, -1).Result()
	if err != nil {
		return nil, Unavailable("list articles", err)
	}
	return s.loadArticles(ctx, ids)
}

// FindArticlesByCollectionID lists the collection's articles oldest first. An
// empty collectionID lists articles without a collection, which have no index
// set of their own.
func (s *RedisDocumentStore) FindArticlesByCollectionID(ctx context.Context, collectionID string) ([]model.Article, error) {
	if collectionID == "" {
		return s.findUnfiled(ctx)
	}
	ids, err := s.rdb.SMembers(ctx, collectionArticlesKey(collectionID)).Result()
	if err != nil {
		return nil, Unavailable("list collection articles", err)
	}
	articles, err := s.loadArticles(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Set members come back unordered; present them oldest first like FindAllArticles.
	sort.SliceStable(articles, func(i, j int) bool {
		if articles[i].CreatedAt.Equal(articles[j].CreatedAt) {
			return articles[i].ID < articles[j].ID
		}
		return articles[i].CreatedAt.Before(articles[j].CreatedAt)
	})
	return articles, nil
}

func (s *RedisDocumentStore) findUnfiled(ctx context.Context) ([]model.Article, error) {
	all, err := s.FindAllArticles(ctx)
	if err != nil {
		return nil, err
	}
	unfiled := all[:0]
	for _, a := range all {
		if a.CollectionID == "" {
			unfiled = append(unfiled, a)
		}
	}
	return unfiled, nil
}

func (s *RedisDocumentStore) FindAllCollections(ctx context.Context) ([]model.Collection, error) {
	ids, err := s.rdb.SMembers(ctx, allCollectionsKey).Result()
	if err != nil {
		return nil, Unavailable("list collections", err)
	}
	sort.Strings(ids)

	collections := make([]model.Collection, 0, len(ids))
	if len(ids) == 0 {
		return collections, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = collectionKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, Unavailable("list collections", err)
	}
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var c model.Collection
		if err := json.Unmarshal([]byte(raw), &c); err == nil {
			collections = append(collections, c)
		}
	}
	return collections, nil
}

func (s *RedisDocumentStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	val, err := s.rdb.Get(ctx, userKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, Unavailable("find user", err)
	}

	var u model.User
	if err := json.Unmarshal(val, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *RedisDocumentStore) PutCollection(ctx context.Context, c model.Collection) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, collectionKey(c.ID), data, 0)
		pipe.SAdd(ctx, allCollectionsKey, c.ID)
		return nil
	})
	if err != nil {
		return Unavailable("put collection", err)
	}
	return nil
}

func (s *RedisDocumentStore) PutUser(ctx context.Context, u model.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, userKey(u.ID), data, 0).Err(); err != nil {
		return Unavailable("put user", err)
	}
	return nil
}

// loadArticles fetches documents for ids in order, skipping ids whose
// document vanished between the index read and the MGET.
func (s *RedisDocumentStore) loadArticles(ctx context.Context, ids []string) ([]model.Article, error) {
	articles := make([]model.Article, 0, len(ids))
	if len(ids) == 0 {
		return articles, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = articleKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, Unavailable("load articles", err)
	}

	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var a model.Article
		if err := json.Unmarshal([]byte(raw), &a); err == nil {
			articles = append(articles, a)
		}
	}
	return articles, nil
}

// watch runs fn under WATCH on key, retrying when a concurrent writer
// invalidates the transaction.
func (s *RedisDocumentStore) watch(ctx context.Context, key string, fn func(*redis.Tx) error) error {
	var err error
	for i := 0; i < maxWatchRetries; i++ {
		err = s.rdb.Watch(ctx, fn, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getArticle(ctx context.Context, c getter, id string) (*model.Article, error) {
	val, err := c.Get(ctx, articleKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}

	var article model.Article
	if err := json.Unmarshal(val, &article); err != nil {
		return nil, err
	}
	return &article, nil
}
