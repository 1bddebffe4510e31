package store

import (
	"context"
	"errors"
	"fmt"

	"articlehub/internal/model"
)

var (
	ErrNotFound    = errors.New("record not found")
	ErrUnavailable = errors.New("storage unavailable")
)

// DocumentStore persists article, collection and user records.
type DocumentStore interface {
	InsertArticle(ctx context.Context, article model.Article) error
	ReplaceArticleByID(ctx context.Context, id string, article model.Article) (int64, error)
	DeleteArticleByID(ctx context.Context, id string) (int64, error)
	FindArticleByID(ctx context.Context, id string) (*model.Article, error)
	FindArticlesByCollectionID(ctx context.Context, collectionID string) ([]model.Article, error)
	FindAllArticles(ctx context.Context) ([]model.Article, error)
	FindAllCollections(ctx context.Context) ([]model.Collection, error)
	FindUserByID(ctx context.Context, id string) (*model.User, error)

	// Seeding; the article service never writes collections or users.
	PutCollection(ctx context.Context, c model.Collection) error
	PutUser(ctx context.Context, u model.User) error

	Close() error
}

// Unavailable wraps a transport or connectivity failure from any backend.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
