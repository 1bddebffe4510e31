package graph

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGraph(t *testing.T, limit int) *RedisGraph {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisGraph(rdb, limit)
}

func TestRedisGraph_RankNeighbors_SharedHubCount(t *testing.T) {
	g := newTestGraph(t, 0)
	ctx := context.Background()

	// alice and bob both liked X; alice also liked Y and Z; bob liked Z.
	for _, like := range [][2]string{
		{"alice", "X"}, {"alice", "Y"}, {"alice", "Z"},
		{"bob", "X"}, {"bob", "Z"},
		{"carol", "W"},
	} {
		require.NoError(t, g.RecordLike(ctx, like[0], like[1]))
	}

	ranked, err := g.RankNeighbors(ctx, []string{"X"})
	require.NoError(t, err)
	// Z shares two hubs with X, Y one; X is not credited for its own hubs; W is unrelated.
	assert.Equal(t, []string{"Z", "Y"}, ranked)
}

func TestRedisGraph_RankNeighbors_SeedsCanRankThroughEachOther(t *testing.T) {
	g := newTestGraph(t, 0)
	ctx := context.Background()

	require.NoError(t, g.RecordLike(ctx, "alice", "X"))
	require.NoError(t, g.RecordLike(ctx, "alice", "Y"))

	ranked, err := g.RankNeighbors(ctx, []string{"X", "Y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"X", "Y"}, ranked)
}

func TestRedisGraph_CollectionHubs(t *testing.T) {
	g := newTestGraph(t, 0)
	ctx := context.Background()

	require.NoError(t, g.EnsureArticle(ctx, "A", "c1"))
	require.NoError(t, g.EnsureArticle(ctx, "B", "c1"))
	require.NoError(t, g.EnsureArticle(ctx, "C", "c2"))

	ranked, err := g.RankNeighbors(ctx, []string{"A"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ranked)

	// Moving B to c2 drops the c1 link.
	require.NoError(t, g.EnsureArticle(ctx, "B", "c2"))
	ranked, err = g.RankNeighbors(ctx, []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, ranked)

	ranked, err = g.RankNeighbors(ctx, []string{"C"})
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, ranked)
}

func TestRedisGraph_RemoveArticle(t *testing.T) {
	g := newTestGraph(t, 0)
	ctx := context.Background()

	require.NoError(t, g.RecordLike(ctx, "alice", "X"))
	require.NoError(t, g.RecordLike(ctx, "alice", "Y"))
	require.NoError(t, g.RemoveArticle(ctx, "Y"))

	ranked, err := g.RankNeighbors(ctx, []string{"X"})
	require.NoError(t, err)
	assert.Empty(t, ranked)
}

func TestRedisGraph_Limit(t *testing.T) {
	g := newTestGraph(t, 2)
	ctx := context.Background()

	for _, id := range []string{"S", "A", "B", "C"} {
		require.NoError(t, g.RecordLike(ctx, "alice", id))
	}
	ranked, err := g.RankNeighbors(ctx, []string{"S"})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, ranked)

	ranked, err = g.RankNeighbors(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, ranked)
}
