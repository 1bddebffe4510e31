package graph

import (
	"context"
	"fmt"
	"strings"

	"articlehub/internal/store"

	"github.com/redis/go-redis/v9"
)

const (
	userHubPrefix       = "user:"
	collectionHubPrefix = "collection:"
)

func articleHubsKey(id string) string  { return fmt.Sprintf("graph:article:%s:hubs", id) }
func hubArticlesKey(hub string) string { return fmt.Sprintf("graph:hub:%s:articles", hub) }

// RedisGraph keeps a bipartite article/hub adjacency in Redis sets.
type RedisGraph struct {
	rdb   *redis.Client
	limit int
}

func NewRedisGraph(rdb *redis.Client, limit int) *RedisGraph {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &RedisGraph{rdb: rdb, limit: limit}
}

// RankNeighbors scores every article reachable through a seed's hubs by the
// number of distinct hubs it shares with the seeds. A seed is never credited
// for its own hubs, but may still rank through another seed.
func (g *RedisGraph) RankNeighbors(ctx context.Context, seedIDs []string) ([]string, error) {
	if len(seedIDs) == 0 {
		return []string{}, nil
	}

	pipe := g.rdb.Pipeline()
	seedHubs := make([]*redis.StringSliceCmd, len(seedIDs))
	for i, id := range seedIDs {
		seedHubs[i] = pipe.SMembers(ctx, articleHubsKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, store.Unavailable("graph seed hubs", err)
	}

	// hub -> seeds that reached it
	reachedBy := map[string][]string{}
	for i, cmd := range seedHubs {
		for _, hub := range cmd.Val() {
			reachedBy[hub] = append(reachedBy[hub], seedIDs[i])
		}
	}
	if len(reachedBy) == 0 {
		return []string{}, nil
	}

	hubs := make([]string, 0, len(reachedBy))
	pipe = g.rdb.Pipeline()
	hubArticles := make([]*redis.StringSliceCmd, 0, len(reachedBy))
	for hub := range reachedBy {
		hubs = append(hubs, hub)
		hubArticles = append(hubArticles, pipe.SMembers(ctx, hubArticlesKey(hub)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, store.Unavailable("graph hub articles", err)
	}

	shared := map[string]map[string]struct{}{}
	for i, cmd := range hubArticles {
		hub := hubs[i]
		for _, candidate := range cmd.Val() {
			if !reachedFromOther(reachedBy[hub], candidate) {
				continue
			}
			if shared[candidate] == nil {
				shared[candidate] = map[string]struct{}{}
			}
			shared[candidate][hub] = struct{}{}
		}
	}
	return rank(shared, g.limit), nil
}

// EnsureArticle links the article to its collection hub, dropping any
// previous collection link.
func (g *RedisGraph) EnsureArticle(ctx context.Context, id, collectionID string) error {
	hubs, err := g.rdb.SMembers(ctx, articleHubsKey(id)).Result()
	if err != nil {
		return store.Unavailable("graph ensure article", err)
	}

	target := ""
	if collectionID != "" {
		target = collectionHubPrefix + collectionID
	}

	_, err = g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hub := range hubs {
			if strings.HasPrefix(hub, collectionHubPrefix) && hub != target {
				pipe.SRem(ctx, articleHubsKey(id), hub)
				pipe.SRem(ctx, hubArticlesKey(hub), id)
			}
		}
		if target != "" {
			pipe.SAdd(ctx, articleHubsKey(id), target)
			pipe.SAdd(ctx, hubArticlesKey(target), id)
		}
		return nil
	})
	if err != nil {
		return store.Unavailable("graph ensure article", err)
	}
	return nil
}

func (g *RedisGraph) RemoveArticle(ctx context.Context, id string) error {
	hubs, err := g.rdb.SMembers(ctx, articleHubsKey(id)).Result()
	if err != nil {
		return store.Unavailable("graph remove article", err)
	}

	_, err = g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, hub := range hubs {
			pipe.SRem(ctx, hubArticlesKey(hub), id)
		}
		pipe.Del(ctx, articleHubsKey(id))
		return nil
	})
	if err != nil {
		return store.Unavailable("graph remove article", err)
	}
	return nil
}

func (g *RedisGraph) RecordLike(ctx context.Context, userID, articleID string) error {
	hub := userHubPrefix + userID
	_, err := g.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, articleHubsKey(articleID), hub)
		pipe.SAdd(ctx, hubArticlesKey(hub), articleID)
		return nil
	})
	if err != nil {
		return store.Unavailable("graph record like", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the caller.
func (g *RedisGraph) Close(ctx context.Context) error {
	return nil
}

func reachedFromOther(seeds []string, candidate string) bool {
	for _, s := range seeds {
		if s != candidate {
			return true
		}
	}
	return false
}
