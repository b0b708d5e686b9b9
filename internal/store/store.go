package store

import (
	"context"
	"errors"
	"sort"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

var (
	// ErrResourceNotFound means the backing table or index is not provisioned.
	ErrResourceNotFound = errors.New("storage resource not found")
	// ErrItemNotFound means no event exists under the requested id.
	ErrItemNotFound = errors.New("event not found")
	// ErrConditionFailed means a conditional update did not match the current item.
	ErrConditionFailed = errors.New("condition failed")
)

// Backend is the key-value/index store holding events.
//
// Implementations must make Acknowledge atomic: the transition
// pending -> acknowledged either happens once or fails with ErrConditionFailed.
type Backend interface {
	// Put stores a new event under its id.
	Put(ctx context.Context, e *models.Event) error
	// Get returns ErrItemNotFound when no event has the id.
	Get(ctx context.Context, id string) (*models.Event, error)
	// Acknowledge sets status=acknowledged and acknowledged_at=at only if the event is pending.
	// A missing event yields ErrItemNotFound. A non-pending event yields the current
	// item together with ErrConditionFailed.
	Acknowledge(ctx context.Context, id string, at int64) (*models.Event, error)
	// Query runs an index query on status with optional source/since predicates.
	Query(ctx context.Context, q Query) (QueryResult, error)
	Ping(ctx context.Context) error
	Close() error
}

// SchemaEnsurer is implemented by backends that can provision their own tables and indexes.
type SchemaEnsurer interface {
	EnsureSchema(ctx context.Context) error
}

// Query describes an index lookup on (status, created_at).
// All predicates are conjoined. Limit caps the number of matching items returned.
type Query struct {
	Status     models.Status
	Source     string
	Since      *int64
	Limit      int
	Descending bool
}

// QueryResult holds matching items in index order. Count is len(Items).
type QueryResult struct {
	Items []*models.Event
	Count int
}

// matches applies the non-status predicates of q to e.
func (q Query) matches(e *models.Event) bool {
	if e.Status != q.Status {
		return false
	}
	if q.Source != "" && e.Source != q.Source {
		return false
	}
	if q.Since != nil && e.CreatedAt < *q.Since {
		return false
	}
	return true
}

// sortByCreatedAt orders events by created_at, breaking ties on id so results are deterministic.
func sortByCreatedAt(items []*models.Event, descending bool) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.CreatedAt != b.CreatedAt {
			if descending {
				return a.CreatedAt > b.CreatedAt
			}
			return a.CreatedAt < b.CreatedAt
		}
		if descending {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}
