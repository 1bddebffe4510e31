package store

import (
	"context"
	"errors"
	"fmt"

	"articlehub/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDocumentStore keeps articles, collections and users in three MongoDB
// collections keyed by _id.
type MongoDocumentStore struct {
	client      *mongo.Client
	articles    *mongo.Collection
	collections *mongo.Collection
	users       *mongo.Collection
}

// NewMongoDocumentStore connects to uri, pings the primary and makes sure
// the collection_id index exists.
func NewMongoDocumentStore(ctx context.Context, uri, database string) (*MongoDocumentStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoDocumentStore{
		client:      client,
		articles:    db.Collection("articles"),
		collections: db.Collection("collections"),
		users:       db.Collection("users"),
	}

	_, err = s.articles.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "collection_id", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create article index: %w", err)
	}
	return s, nil
}

func (s *MongoDocumentStore) Close() error {
	return s.client.Disconnect(context.Background())
}

func (s *MongoDocumentStore) InsertArticle(ctx context.Context, article model.Article) error {
	if _, err := s.articles.InsertOne(ctx, article); err != nil {
		return Unavailable("insert article", err)
	}
	return nil
}

func (s *MongoDocumentStore) ReplaceArticleByID(ctx context.Context, id string, article model.Article) (int64, error) {
	article.ID = id
	res, err := s.articles.ReplaceOne(ctx, bson.M{"_id": id}, article)
	if err != nil {
		return 0, Unavailable("replace article", err)
	}
	return res.MatchedCount, nil
}

func (s *MongoDocumentStore) DeleteArticleByID(ctx context.Context, id string) (int64, error) {
	res, err := s.articles.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, Unavailable("delete article", err)
	}
	return res.DeletedCount, nil
}

func (s *MongoDocumentStore) FindArticleByID(ctx context.Context, id string) (*model.Article, error) {
	var article model.Article
	err := s.articles.FindOne(ctx, bson.M{"_id": id}).Decode(&article)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, Unavailable("find article", err)
	}
	return &article, nil
}

func (s *MongoDocumentStore) FindArticlesByCollectionID(ctx context.Context, collectionID string) ([]model.Article, error) {
	if collectionID == "" {
		// collection_id is omitted when empty; null also matches a missing field.
		return s.findArticles(ctx, bson.M{"collection_id": bson.M{"$in": bson.A{"", nil}}})
	}
	return s.findArticles(ctx, bson.M{"collection_id": collectionID})
}

func (s *MongoDocumentStore) FindAllArticles(ctx context.Context) ([]model.Article, error) {
	return s.findArticles(ctx, bson.M{})
}

func (s *MongoDocumentStore) FindAllCollections(ctx context.Context) ([]model.Collection, error) {
	cur, err := s.collections.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, Unavailable("list collections", err)
	}
	collections := []model.Collection{}
	if err := cur.All(ctx, &collections); err != nil {
		return nil, Unavailable("list collections", err)
	}
	return collections, nil
}

func (s *MongoDocumentStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, Unavailable("find user", err)
	}
	return &u, nil
}

func (s *MongoDocumentStore) PutCollection(ctx context.Context, c model.Collection) error {
	_, err := s.collections.ReplaceOne(ctx, bson.M{"_id": c.ID}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return Unavailable("put collection", err)
	}
	return nil
}

func (s *MongoDocumentStore) PutUser(ctx context.Context, u model.User) error {
	_, err := s.users.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		return Unavailable("put user", err)
	}
	return nil
}

func (s *MongoDocumentStore) findArticles(ctx context.Context, filter bson.M) ([]model.Article, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.articles.Find(ctx, filter, opts)
	if err != nil {
		return nil, Unavailable("list articles", err)
	}
	articles := []model.Article{}
	if err := cur.All(ctx, &articles); err != nil {
		return nil, Unavailable("list articles", err)
	}
	return articles, nil
}
