package events

import (
	"time"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
	"github.com/PratikDhanave/event-inbox-service/internal/store"
)

// InboxQuery selects a page of pending events.
type InboxQuery struct {
	Limit  int
	Offset int
	Source string
	Since  *time.Time
}

// Page is one inbox page. Total is the number of matches the index query returned
// before offset/limit trimming, so it never exceeds Limit+Offset.
type Page struct {
	Events []*models.Event
	Total  int
}

// normalize clamps the query into [1, maxLimit] and a non-negative offset.
func (q InboxQuery) normalize(maxLimit int) InboxQuery {
	if q.Limit < 1 {
		q.Limit = 1
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// indexQuery over-fetches limit+offset pending events, most recent first,
// because the offset is applied after the index lookup.
func (q InboxQuery) indexQuery() store.Query {
	iq := store.Query{
		Status:     models.StatusPending,
		Source:     q.Source,
		Limit:      q.Limit + q.Offset,
		Descending: true,
	}
	if q.Since != nil {
		since := q.Since.Unix()
		iq.Since = &since
	}
	return iq
}

// paginate drops the first offset items and keeps at most limit.
func paginate(items []*models.Event, offset, limit int) []*models.Event {
	if offset >= len(items) {
		return []*models.Event{}
	}
	items = items[offset:]
	if len(items) > limit {
		items = items[:limit]
	}
	return items
}
