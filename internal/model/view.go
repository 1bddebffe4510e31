package model

import "time"

// ArticleOutput is the per-request view returned to callers.
type ArticleOutput struct {
	ID           string      `json:"id"`
	Title        string      `json:"title"`
	Author       string      `json:"author,omitempty"`
	Summary      string      `json:"summary,omitempty"`
	Tags         []string    `json:"tags,omitempty"`
	SourceURL    string      `json:"source_url,omitempty"`
	Text         string      `json:"text,omitempty"`
	CollectionID string      `json:"collection_id,omitempty"`
	Collection   *Collection `json:"collection,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	LikedByUser  *bool       `json:"liked_by_user,omitempty"`
}

// ListView is the metadata-only view used by list and timeline results.
// The payload field is always empty.
func ListView(a Article) ArticleOutput {
	return ArticleOutput{
		ID:           a.ID,
		Title:        a.Title,
		Author:       a.Author,
		Summary:      a.Summary,
		Tags:         append([]string(nil), a.Tags...),
		SourceURL:    a.SourceURL,
		CollectionID: a.CollectionID,
		CreatedAt:    a.CreatedAt,
	}
}

// ContentView is ListView with the hydrated payload inlined.
func ContentView(a Article, content string) ArticleOutput {
	out := ListView(a)
	out.Text = content
	return out
}

// CollectionView is ListView joined with the article's collection, which may
// be nil when the reference does not resolve.
func CollectionView(a Article, c *Collection) ArticleOutput {
	out := ListView(a)
	if c != nil {
		joined := *c
		out.Collection = &joined
	}
	return out
}

// UserView is ContentView annotated with whether the requesting user likes
// the article.
func UserView(a Article, content string, u User) ArticleOutput {
	out := ContentView(a, content)
	liked := u.Likes(a.ID)
	out.LikedByUser = &liked
	return out
}
