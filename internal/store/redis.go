package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/PratikDhanave/event-inbox-service/internal/models"
)

// redisScanBatch is how many index entries are read per round trip while filtering.
const redisScanBatch = 100

// acknowledgeScript moves a pending event to acknowledged and re-indexes it atomically.
//
// KEYS[1] event hash, KEYS[2] pending index, KEYS[3] acknowledged index
// ARGV[1] pending, ARGV[2] acknowledged, ARGV[3] acknowledged_at, ARGV[4] event id
// Returns 1 on success, 0 when the event is missing, -1 when it is not pending.
var acknowledgeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
if redis.call('HGET', KEYS[1], 'status') ~= ARGV[1] then
	return -1
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'acknowledged_at', ARGV[3])
local score = redis.call('HGET', KEYS[1], 'created_at')
redis.call('ZREM', KEYS[2], ARGV[4])
redis.call('ZADD', KEYS[3], score, ARGV[4])
return 1
`)

// RedisStore keeps one hash per event and one sorted set per status scored by created_at.
// The sorted sets are the secondary index.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore parses url and verifies connectivity.
func NewRedisStore(ctx context.Context, url, prefix string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewRedisStoreWithClient(client, prefix), nil
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) eventKey(id string) string {
	return fmt.Sprintf("%s:event:%s", r.prefix, id)
}

func (r *RedisStore) indexKey(status models.Status) string {
	return fmt.Sprintf("%s:status:%s", r.prefix, status)
}

// Ping checks the redis connection.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisStore) Close() error {
	return r.client.Close()
}

// Put stores the immutable part of the event as JSON next to its mutable fields.
func (r *RedisStore) Put(ctx context.Context, e *models.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	fields := map[string]interface{}{
		"data":       data,
		"status":     string(e.Status),
		"created_at": e.CreatedAt,
	}
	if e.AcknowledgedAt != nil {
		fields["acknowledged_at"] = *e.AcknowledgedAt
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.eventKey(e.ID), fields)
		pipe.ZAdd(ctx, r.indexKey(e.Status), redis.Z{Score: float64(e.CreatedAt), Member: e.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}
	return nil
}

// Get loads one event hash or returns ErrItemNotFound.
func (r *RedisStore) Get(ctx context.Context, id string) (*models.Event, error) {
	vals, err := r.client.HMGet(ctx, r.eventKey(id), "data", "status", "acknowledged_at").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return decodeRedisEvent(vals)
}

// Acknowledge runs acknowledgeScript and reloads the event.
func (r *RedisStore) Acknowledge(ctx context.Context, id string, at int64) (*models.Event, error) {
	keys := []string{r.eventKey(id), r.indexKey(models.StatusPending), r.indexKey(models.StatusAcknowledged)}
	res, err := acknowledgeScript.Run(ctx, r.client, keys,
		string(models.StatusPending), string(models.StatusAcknowledged), at, id).Int()
	if err != nil {
		return nil, fmt.Errorf("failed to acknowledge event: %w", err)
	}

	switch res {
	case 0:
		return nil, ErrItemNotFound
	case -1:
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return current, ErrConditionFailed
	}
	return r.Get(ctx, id)
}

// Query walks the status index from the requested end, reading event hashes in batches
// and keeping the ones that pass the source filter.
func (r *RedisStore) Query(ctx context.Context, q Query) (QueryResult, error) {
	lower := "-inf"
	if q.Since != nil {
		lower = strconv.FormatInt(*q.Since, 10)
	}

	items := []*models.Event{}
	var offset int64
	for {
		rng := &redis.ZRangeBy{Min: lower, Max: "+inf", Offset: offset, Count: redisScanBatch}
		var (
			ids []string
			err error
		)
		if q.Descending {
			ids, err = r.client.ZRevRangeByScore(ctx, r.indexKey(q.Status), rng).Result()
		} else {
			ids, err = r.client.ZRangeByScore(ctx, r.indexKey(q.Status), rng).Result()
		}
		if err != nil {
			return QueryResult{}, fmt.Errorf("failed to read status index: %w", err)
		}
		if len(ids) == 0 {
			break
		}

		cmds := make([]*redis.SliceCmd, len(ids))
		_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, id := range ids {
				cmds[i] = pipe.HMGet(ctx, r.eventKey(id), "data", "status", "acknowledged_at")
			}
			return nil
		})
		if err != nil {
			return QueryResult{}, fmt.Errorf("failed to load events: %w", err)
		}

		for _, cmd := range cmds {
			e, err := decodeRedisEvent(cmd.Val())
			if errors.Is(err, ErrItemNotFound) {
				continue
			}
			if err != nil {
				return QueryResult{}, err
			}
			if !q.matches(e) {
				continue
			}
			items = append(items, e)
			if q.Limit > 0 && len(items) >= q.Limit {
				return QueryResult{Items: items, Count: len(items)}, nil
			}
		}

		if len(ids) < redisScanBatch {
			break
		}
		offset += int64(len(ids))
	}

	return QueryResult{Items: items, Count: len(items)}, nil
}

// decodeRedisEvent rebuilds an event from HMGET(data, status, acknowledged_at).
func decodeRedisEvent(vals []interface{}) (*models.Event, error) {
	if len(vals) != 3 || vals[0] == nil {
		return nil, ErrItemNotFound
	}

	data, _ := vals[0].(string)
	var e models.Event
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	if status, ok := vals[1].(string); ok {
		e.Status = models.Status(status)
	}
	if raw, ok := vals[2].(string); ok && raw != "" {
		at, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode acknowledged_at: %w", err)
		}
		e.AcknowledgedAt = &at
	}
	return &e, nil
}
