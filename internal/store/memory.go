package store

import (
	"context"
	"sync"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// MemoryStore keeps events in process. It is the development driver and the test fake.
type MemoryStore struct {
	mu     sync.RWMutex
	events map[string]*models.Event
}

// NewMemoryStore returns an empty in-memory backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]*models.Event)}
}

// Put stores a copy of e.
func (m *MemoryStore) Put(_ context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[e.ID] = cloneEvent(e)
	return nil
}

// Get returns a copy of the event or ErrItemNotFound.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	return cloneEvent(e), nil
}

// Acknowledge flips a pending event under the write lock.
func (m *MemoryStore) Acknowledge(_ context.Context, id string, at int64) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, ErrItemNotFound
	}
	if e.Status != models.StatusPending {
		return cloneEvent(e), ErrConditionFailed
	}
	e.Status = models.StatusAcknowledged
	e.AcknowledgedAt = &at
	return cloneEvent(e), nil
}

// Query scans all events, filters, sorts and truncates to q.Limit.
func (m *MemoryStore) Query(_ context.Context, q Query) (QueryResult, error) {
	m.mu.RLock()
	matched := make([]*models.Event, 0)
	for _, e := range m.events {
		if q.matches(e) {
			matched = append(matched, cloneEvent(e))
		}
	}
	m.mu.RUnlock()

	sortByCreatedAt(matched, q.Descending)
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return QueryResult{Items: matched, Count: len(matched)}, nil
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// cloneEvent deep-copies e so callers never share state with the map.
func cloneEvent(e *models.Event) *models.Event {
	c := *e
	c.Payload = cloneMap(e.Payload)
	c.Metadata = cloneMap(e.Metadata)
	if e.AcknowledgedAt != nil {
		at := *e.AcknowledgedAt
		c.AcknowledgedAt = &at
	}
	if e.Tags != nil {
		c.Tags = append([]string(nil), e.Tags...)
	}
	return &c
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container types a decoded JSON document can hold.
func cloneValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return cloneMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
