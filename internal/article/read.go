package article

import (
	"context"
	"fmt"
	"time"

	"articlehub/internal/model"

	"go.uber.org/zap"
)

// GetArticleByID returns the article with its payload resolved.
func (s *Service) GetArticleByID(ctx context.Context, id string) (out model.ArticleOutput, err error) {
	defer observe("get", time.Now(), &err)

	article, err := s.findArticle(ctx, id)
	if err != nil {
		return model.ArticleOutput{}, err
	}
	content, err := s.blobs.Fetch(ctx, article.Text)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("fetch payload: %w", err)
	}

	s.logger.Info("Retrieved article by id", zap.String("article_id", article.ID))
	return model.ContentView(*article, content), nil
}

// GetArticleByIDForUser is GetArticleByID plus whether userID likes the
// article. Both the article and the user must exist.
func (s *Service) GetArticleByIDForUser(ctx context.Context, articleID, userID string) (out model.ArticleOutput, err error) {
	defer observe("get_for_user", time.Now(), &err)

	if err := model.CheckRefID(userID); err != nil {
		return model.ArticleOutput{}, err
	}
	article, err := s.findArticle(ctx, articleID)
	if err != nil {
		return model.ArticleOutput{}, err
	}
	user, err := s.docs.FindUserByID(ctx, userID)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("find user %s: %w", userID, err)
	}
	content, err := s.blobs.Fetch(ctx, article.Text)
	if err != nil {
		return model.ArticleOutput{}, fmt.Errorf("fetch payload: %w", err)
	}

	s.logger.Info("Retrieved article by id",
		zap.String("article_id", article.ID), zap.String("user_id", userID))
	return model.UserView(*article, content, *user), nil
}

// GetAllArticles lists every article joined with its collection. Payloads are
// not resolved. Order follows the document store's enumeration.
func (s *Service) GetAllArticles(ctx context.Context) (out []model.ArticleOutput, err error) {
	defer observe("list", time.Now(), &err)

	articles, err := s.docs.FindAllArticles(ctx)
	if err != nil {
		return nil, fmt.Errorf("list articles: %w", err)
	}
	collections, err := s.docs.FindAllCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	out = make([]model.ArticleOutput, 0, len(articles))
	for _, a := range articles {
		out = append(out, model.CollectionView(a, findCollection(collections, a.CollectionID)))
	}

	s.logger.Info("Retrieved all articles", zap.Int("count", len(out)))
	return out, nil
}

// GetAllArticlesFromCollection lists the articles referencing collectionID.
// An unknown collection yields an empty list, and an empty id lists the
// articles filed under no collection.
func (s *Service) GetAllArticlesFromCollection(ctx context.Context, collectionID string) (out []model.ArticleOutput, err error) {
	defer observe("list_collection", time.Now(), &err)

	articles, err := s.docs.FindArticlesByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list collection articles: %w", err)
	}

	out = make([]model.ArticleOutput, 0, len(articles))
	for _, a := range articles {
		if a.CollectionID != collectionID {
			continue
		}
		out = append(out, model.ListView(a))
	}

	s.logger.Info("Retrieved all articles from collection",
		zap.String("collection_id", collectionID), zap.Int("count", len(out)))
	return out, nil
}

func (s *Service) findArticle(ctx context.Context, id string) (*model.Article, error) {
	id, err := model.ParseArticleID(id)
	if err != nil {
		return nil, err
	}
	article, err := s.docs.FindArticleByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("find article %s: %w", id, err)
	}
	return article, nil
}

func findCollection(collections []model.Collection, id string) *model.Collection {
	if id == "" {
		return nil
	}
	for i := range collections {
		if collections[i].ID == id {
			return &collections[i]
		}
	}
	return nil
}
