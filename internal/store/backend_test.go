package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// newTestEvent builds a pending event created at the given unix second.
func newTestEvent(createdAt int64, source string) *models.Event {
	return &models.Event{
		ID:        uuid.New().String(),
		Timestamp: fmt.Sprintf("ts-%d", createdAt),
		CreatedAt: createdAt,
		Payload:   map[string]interface{}{"n": float64(createdAt)},
		Source:    source,
		Status:    models.StatusPending,
	}
}

func int64Ptr(v int64) *int64 { return &v }

// runBackendSuite checks the storage contract every driver must satisfy.
func runBackendSuite(t *testing.T, newBackend func(t *testing.T) Backend) {
	ctx := context.Background()

	t.Run("put and get round trip", func(t *testing.T) {
		b := newBackend(t)
		e := newTestEvent(1000, "crm")
		e.Tags = []string{"a", "b"}
		e.Metadata = map[string]interface{}{"trace": "xyz"}
		require.NoError(t, b.Put(ctx, e))

		got, err := b.Get(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, e.ID, got.ID)
		assert.Equal(t, e.Timestamp, got.Timestamp)
		assert.Equal(t, e.CreatedAt, got.CreatedAt)
		assert.Equal(t, e.Payload, got.Payload)
		assert.Equal(t, "crm", got.Source)
		assert.Equal(t, []string{"a", "b"}, got.Tags)
		assert.Equal(t, e.Metadata, got.Metadata)
		assert.Equal(t, models.StatusPending, got.Status)
		assert.Nil(t, got.AcknowledgedAt)
	})

	t.Run("get missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Get(ctx, "does-not-exist")
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("acknowledge transitions once", func(t *testing.T) {
		b := newBackend(t)
		e := newTestEvent(1000, "")
		require.NoError(t, b.Put(ctx, e))

		got, err := b.Acknowledge(ctx, e.ID, 2000)
		require.NoError(t, err)
		assert.Equal(t, models.StatusAcknowledged, got.Status)
		require.NotNil(t, got.AcknowledgedAt)
		assert.Equal(t, int64(2000), *got.AcknowledgedAt)

		current, err := b.Acknowledge(ctx, e.ID, 3000)
		assert.ErrorIs(t, err, ErrConditionFailed)
		require.NotNil(t, current)
		assert.Equal(t, models.StatusAcknowledged, current.Status)
		assert.Equal(t, int64(2000), *current.AcknowledgedAt)
	})

	t.Run("acknowledge missing", func(t *testing.T) {
		b := newBackend(t)
		_, err := b.Acknowledge(ctx, "does-not-exist", 1)
		assert.ErrorIs(t, err, ErrItemNotFound)
	})

	t.Run("concurrent acknowledge has one winner", func(t *testing.T) {
		b := newBackend(t)
		e := newTestEvent(1000, "")
		require.NoError(t, b.Put(ctx, e))

		const workers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			successes int
			failures  int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(at int64) {
				defer wg.Done()
				_, err := b.Acknowledge(ctx, e.ID, at)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, ErrConditionFailed):
					failures++
				}
			}(int64(2000 + i))
		}
		wg.Wait()

		assert.Equal(t, 1, successes)
		assert.Equal(t, workers-1, failures)
	})

	t.Run("query orders and filters", func(t *testing.T) {
		b := newBackend(t)
		e1 := newTestEvent(100, "a")
		e2 := newTestEvent(200, "b")
		e3 := newTestEvent(300, "a")
		e4 := newTestEvent(400, "a")
		for _, e := range []*models.Event{e1, e2, e3, e4} {
			require.NoError(t, b.Put(ctx, e))
		}
		_, err := b.Acknowledge(ctx, e4.ID, 500)
		require.NoError(t, err)

		res, err := b.Query(ctx, Query{Status: models.StatusPending, Limit: 10, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Count)
		assert.Equal(t, []string{e3.ID, e2.ID, e1.ID}, ids(res.Items))

		res, err = b.Query(ctx, Query{Status: models.StatusPending, Source: "a", Limit: 10, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{e3.ID, e1.ID}, ids(res.Items))

		res, err = b.Query(ctx, Query{Status: models.StatusPending, Since: int64Ptr(200), Limit: 10, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{e3.ID, e2.ID}, ids(res.Items))

		res, err = b.Query(ctx, Query{Status: models.StatusPending, Source: "a", Since: int64Ptr(150), Limit: 10, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{e3.ID}, ids(res.Items))

		res, err = b.Query(ctx, Query{Status: models.StatusAcknowledged, Limit: 10, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, []string{e4.ID}, ids(res.Items))
	})

	t.Run("query limit applies to matches", func(t *testing.T) {
		b := newBackend(t)
		var want []string
		for i := int64(0); i < 12; i++ {
			source := "noise"
			if i%3 == 0 {
				source = "signal"
			}
			e := newTestEvent(1000+i, source)
			require.NoError(t, b.Put(ctx, e))
			if source == "signal" {
				want = append([]string{e.ID}, want...)
			}
		}

		res, err := b.Query(ctx, Query{Status: models.StatusPending, Source: "signal", Limit: 3, Descending: true})
		require.NoError(t, err)
		assert.Equal(t, 3, res.Count)
		assert.Equal(t, want[:3], ids(res.Items))
	})
}

func ids(items []*models.Event) []string {
	out := make([]string, 0, len(items))
	for _, e := range items {
		out = append(out, e.ID)
	}
	return out
}
