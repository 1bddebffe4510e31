// Package graph ranks articles by how many hubs (liking users, collections)
// they share with a seed set.
package graph

import (
	"context"
	"sort"
)

const DefaultLimit = 50

// Store is implemented by every graph backend.
type Store interface {
	RankNeighbors(ctx context.Context, seedIDs []string) ([]string, error)
	EnsureArticle(ctx context.Context, id, collectionID string) error
	RemoveArticle(ctx context.Context, id string) error
	RecordLike(ctx context.Context, userID, articleID string) error
	Close(ctx context.Context) error
}

type scored struct {
	id     string
	shared int
}

// rank orders candidates by shared hub count, then id, and caps the result.
func rank(shared map[string]map[string]struct{}, limit int) []string {
	candidates := make([]scored, 0, len(shared))
	for id, hubs := range shared {
		candidates = append(candidates, scored{id: id, shared: len(hubs)})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].shared != candidates[j].shared {
			return candidates[i].shared > candidates[j].shared
		}
		return candidates[i].id < candidates[j].id
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.id
	}
	return ids
}
