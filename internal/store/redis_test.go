package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore(t *testing.T) {
	runBackendSuite(t, func(t *testing.T) Backend {
		_, client := setupTestRedis(t)
		return NewRedisStoreWithClient(client, "test")
	})
}

func TestRedisStore_IndexMovesOnAcknowledge(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	b := NewRedisStoreWithClient(client, "inbox")

	e := newTestEvent(42, "")
	require.NoError(t, b.Put(ctx, e))

	pending, err := mr.ZMembers("inbox:status:pending")
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, pending)

	_, err = b.Acknowledge(ctx, e.ID, 43)
	require.NoError(t, err)

	pendingCount, err := client.ZCard(ctx, "inbox:status:pending").Result()
	require.NoError(t, err)
	assert.Zero(t, pendingCount)
	acked, err := mr.ZMembers("inbox:status:acknowledged")
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, acked)

	score, err := mr.ZScore("inbox:status:acknowledged", e.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(42), score)
	assert.Equal(t, string(models.StatusAcknowledged), mr.HGet("inbox:event:"+e.ID, "status"))
}

func TestRedisStore_QuerySkipsDanglingIndexEntries(t *testing.T) {
	ctx := context.Background()
	mr, client := setupTestRedis(t)
	b := NewRedisStoreWithClient(client, "inbox")

	e := newTestEvent(10, "")
	require.NoError(t, b.Put(ctx, e))
	_, err := mr.ZAdd("inbox:status:pending", 20, "ghost")
	require.NoError(t, err)

	res, err := b.Query(ctx, Query{Status: models.StatusPending, Limit: 10, Descending: true})
	require.NoError(t, err)
	assert.Equal(t, []string{e.ID}, ids(res.Items))
}

func TestNewRedisStore_InvalidURL(t *testing.T) {
	_, err := NewRedisStore(context.Background(), "://bad", "inbox")
	require.Error(t, err)
}
