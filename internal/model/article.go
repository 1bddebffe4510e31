package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidID    = errors.New("invalid id")
	ErrInvalidInput = errors.New("invalid article input")
)

// Article is the document record. Once persisted, Text holds a blob locator,
// never the raw payload.
type Article struct {
	ID           string    `json:"id" bson:"_id"`
	Title        string    `json:"title" bson:"title"`
	Author       string    `json:"author,omitempty" bson:"author,omitempty"`
	Summary      string    `json:"summary,omitempty" bson:"summary,omitempty"`
	Tags         []string  `json:"tags,omitempty" bson:"tags,omitempty"`
	SourceURL    string    `json:"source_url,omitempty" bson:"source_url,omitempty"`
	Text         string    `json:"text" bson:"text"`
	CollectionID string    `json:"collection_id,omitempty" bson:"collection_id,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

// ArticleInput is the draft accepted by create and update.
type ArticleInput struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Author       string   `json:"author,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	SourceURL    string   `json:"source_url,omitempty"`
	Text         string   `json:"text"`
	CollectionID string   `json:"collection_id,omitempty"`
}

// Validate reports whether the draft can be turned into an article.
func (in ArticleInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return errors.Join(ErrInvalidInput, errors.New("title is required"))
	}
	if in.Text == "" {
		return errors.Join(ErrInvalidInput, errors.New("text is required"))
	}
	return nil
}

// ArticleFromInput copies the draft fields into a new record. ID and
// CreatedAt are left for the caller to assign.
func ArticleFromInput(in ArticleInput) Article {
	return Article{
		Title:        in.Title,
		Author:       in.Author,
		Summary:      in.Summary,
		Tags:         append([]string(nil), in.Tags...),
		SourceURL:    in.SourceURL,
		Text:         in.Text,
		CollectionID: in.CollectionID,
	}
}

// NewID returns a fresh article identifier.
func NewID() string {
	return uuid.NewString()
}

// ParseArticleID normalises an article id, failing with ErrInvalidID if it is
// not a UUID.
func ParseArticleID(id string) (string, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return "", errors.Join(ErrInvalidID, err)
	}
	return parsed.String(), nil
}

// NormalizeID returns the canonical lowercase form of a UUID article id.
// Anything that does not parse is returned unchanged.
func NormalizeID(id string) string {
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String()
	}
	return id
}

// CheckRefID validates opaque user and collection identifiers.
func CheckRefID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInvalidID
	}
	return nil
}
