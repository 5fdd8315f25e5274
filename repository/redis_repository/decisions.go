package redis_repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/techbrief/internal/store"
)

const (
	decisionKeyPrefix = "decision:"
	// decisionTimeline is a sorted set of ids scored by timestamp.
	decisionTimeline = "decisions:timeline"
)

// redisDecisionRepository stores each decision as a JSON blob with a TTL.
type redisDecisionRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDecisionRepository returns a store.DecisionStore on client. A ttl
// of zero keeps decisions forever.
func NewRedisDecisionRepository(client *redis.Client, ttl time.Duration) *redisDecisionRepository {
	return &redisDecisionRepository{client: client, ttl: ttl}
}

func (r *redisDecisionRepository) Save(ctx context.Context, d store.Decision) (store.Decision, error) {
	d = d.Normalize()
	data, err := json.Marshal(d)
	if err != nil {
		return store.Decision{}, err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, decisionKeyPrefix+d.ID, data, r.ttl)
		pipe.ZAdd(ctx, decisionTimeline, redis.Z{Score: float64(d.Timestamp), Member: d.ID})
		return nil
	})
	if err != nil {
		return store.Decision{}, err
	}
	return d, nil
}

// List reads the timeline newest first and prunes ids whose blob expired.
func (r *redisDecisionRepository) List(ctx context.Context) ([]store.Decision, error) {
	ids, err := r.client.ZRevRange(ctx, decisionTimeline, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := []store.Decision{}
	if len(ids) == 0 {
		return out, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = decisionKeyPrefix + id
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	var stale []any
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var d store.Decision
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return nil, err
		}
		out = append(out, d.Normalize())
	}
	if len(stale) > 0 {
		_ = r.client.ZRem(ctx, decisionTimeline, stale...).Err()
	}
	return out, nil
}

func (r *redisDecisionRepository) Get(ctx context.Context, id string) (store.Decision, error) {
	val, err := r.client.Get(ctx, decisionKeyPrefix+id).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Decision{}, store.ErrNotFound
		}
		return store.Decision{}, err
	}
	var d store.Decision
	if err := json.Unmarshal([]byte(val), &d); err != nil {
		return store.Decision{}, err
	}
	return d.Normalize(), nil
}

func (r *redisDecisionRepository) Delete(ctx context.Context, id string) error {
	n, err := r.client.Del(ctx, decisionKeyPrefix+id).Result()
	if err != nil {
		return err
	}
	_ = r.client.ZRem(ctx, decisionTimeline, id).Err()
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TTL reports the remaining lifetime of a decision, for diagnostics.
func (r *redisDecisionRepository) TTL(ctx context.Context, id string) (time.Duration, error) {
	d, err := r.client.TTL(ctx, decisionKeyPrefix+id).Result()
	if err != nil {
		return 0, err
	}
	if d == -2 {
		return 0, store.ErrNotFound
	}
	return d, nil
}
