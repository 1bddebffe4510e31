package model

// Collection groups articles. Articles reference it by CollectionID.
type Collection struct {
	ID          string `json:"id" bson:"_id"`
	Name        string `json:"name" bson:"name"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// User is read-only from the article service's point of view.
type User struct {
	ID            string   `json:"id" bson:"_id"`
	Name          string   `json:"name,omitempty" bson:"name,omitempty"`
	LikedArticles []string `json:"liked_articles" bson:"liked_articles"`
}

// Likes reports whether articleID is in the user's affinity set. Ids are
// compared in canonical form.
func (u User) Likes(articleID string) bool {
	want := NormalizeID(articleID)
	for _, id := range u.LikedArticles {
		if NormalizeID(id) == want {
			return true
		}
	}
	return false
}

// LikedIDs returns the affinity set in canonical form.
func (u User) LikedIDs() []string {
	ids := make([]string, 0, len(u.LikedArticles))
	for _, id := range u.LikedArticles {
		ids = append(ids, NormalizeID(id))
	}
	return ids
}
