package graph

import (
	"context"
	"fmt"

	"articlehub/internal/store"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Hubs are any node one hop away from an article: (:User)-[:LIKED]->(:Article)
// and (:Article)-[:IN_COLLECTION]->(:Collection).
const rankNeighborsQuery = `
	MATCH (seed:Article)--(hub)--(candidate:Article)
	WHERE seed.id IN $seeds
	WITH candidate, count(DISTINCT hub) AS shared
	RETURN candidate.id AS id, shared
	ORDER BY shared DESC, id ASC
	LIMIT $limit
`

// Neo4jGraph runs the shared-neighbour ranking in Cypher.
type Neo4jGraph struct {
	driver   neo4j.DriverWithContext
	database string
	limit    int
}

// NewNeo4jGraph connects with basic auth and verifies connectivity.
func NewNeo4jGraph(ctx context.Context, uri, user, password, database string, limit int) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Neo4jGraph{driver: driver, database: database, limit: limit}, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) RankNeighbors(ctx context.Context, seedIDs []string) ([]string, error) {
	if len(seedIDs) == 0 {
		return []string{}, nil
	}

	result, err := neo4j.ExecuteQuery(ctx, g.driver, rankNeighborsQuery,
		map[string]any{
			"seeds": seedIDs,
			"limit": g.limit,
		},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithReadersRouting(),
	)
	if err != nil {
		return nil, store.Unavailable("neo4j rank neighbors", err)
	}

	ids := make([]string, 0, len(result.Records))
	for _, record := range result.Records {
		id, isNil, err := neo4j.GetRecordValue[string](record, "id")
		if err != nil || isNil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (g *Neo4jGraph) EnsureArticle(ctx context.Context, id, collectionID string) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: g.database})
	defer session.Close(ctx)

	params := map[string]any{"id": id, "collectionID": collectionID}
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (a:Article {id: $id})
			WITH a
			OPTIONAL MATCH (a)-[r:IN_COLLECTION]->(c:Collection)
			WHERE c.id <> $collectionID
			DELETE r
		`, params)
		if err != nil || collectionID == "" {
			return nil, err
		}
		_, err = tx.Run(ctx, `
			MATCH (a:Article {id: $id})
			MERGE (c:Collection {id: $collectionID})
			MERGE (a)-[:IN_COLLECTION]->(c)
		`, params)
		return nil, err
	})
	if err != nil {
		return store.Unavailable("neo4j ensure article", err)
	}
	return nil
}

func (g *Neo4jGraph) RemoveArticle(ctx context.Context, id string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver,
		`MATCH (a:Article {id: $id}) DETACH DELETE a`,
		map[string]any{"id": id},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
	)
	if err != nil {
		return store.Unavailable("neo4j remove article", err)
	}
	return nil
}

func (g *Neo4jGraph) RecordLike(ctx context.Context, userID, articleID string) error {
	_, err := neo4j.ExecuteQuery(ctx, g.driver, `
		MERGE (u:User {id: $userID})
		MERGE (a:Article {id: $articleID})
		MERGE (u)-[:LIKED]->(a)
	`,
		map[string]any{"userID": userID, "articleID": articleID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
	)
	if err != nil {
		return store.Unavailable("neo4j record like", err)
	}
	return nil
}
