// Package events announces article state changes on a Redis stream.
package events

import (
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultStream = "stream:articles"

// Type identifies what happened to an article.
type Type string

const (
	ArticleCreated Type = "ArticleCreated"
	ArticleUpdated Type = "ArticleUpdated"
	ArticleDeleted Type = "ArticleDeleted"
)

var ErrMalformed = errors.New("malformed event")

// Event is one stream entry.
type Event struct {
	ID           string
	Type         Type
	ArticleID    string
	CollectionID string
	Payload      []byte
	CreatedAt    time.Time
}

func (e Event) values() map[string]interface{} {
	values := map[string]interface{}{
		"event_id":   e.ID,
		"event_type": string(e.Type),
		"article_id": e.ArticleID,
		"created_at": e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.CollectionID != "" {
		values["collection_id"] = e.CollectionID
	}
	if len(e.Payload) > 0 {
		values["payload"] = string(e.Payload)
	}
	return values
}

// ParseMessage rebuilds an Event from a stream entry.
func ParseMessage(msg redis.XMessage) (Event, error) {
	str := func(key string) string {
		v, _ := msg.Values[key].(string)
		return v
	}

	e := Event{
		ID:           str("event_id"),
		Type:         Type(str("event_type")),
		ArticleID:    str("article_id"),
		CollectionID: str("collection_id"),
	}
	if p := str("payload"); p != "" {
		e.Payload = []byte(p)
	}
	if e.Type == "" || e.ArticleID == "" {
		return Event{}, fmt.Errorf("%w: entry %s", ErrMalformed, msg.ID)
	}
	if ts := str("created_at"); ts != "" {
		created, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Event{}, fmt.Errorf("%w: entry %s: %v", ErrMalformed, msg.ID, err)
		}
		e.CreatedAt = created
	}
	return e, nil
}
