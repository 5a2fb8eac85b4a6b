package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hashfydr/void-CLI/internal/crypto"
	"github.com/hashfydr/void-CLI/internal/metrics"
	"github.com/hashfydr/void-CLI/internal/models"
)

// RedisStore is an ItemStore backed by Redis. Each scope owns a hash of
// item documents, a sorted set ordering them by timestamp and a pub/sub
// channel announcing writes.
type RedisStore struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a new Redis store.
func NewRedisStore(ctx context.Context, redisURL string, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, logger: logger}, nil
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// itemsKey returns the key for a scope's item hash.
func itemsKey(scope Scope) string {
	return fmt.Sprintf("void:%s:items", scope)
}

// timelineKey returns the key for a scope's sorted set of item IDs.
func timelineKey(scope Scope) string {
	return fmt.Sprintf("void:%s:timeline", scope)
}

// changesKey returns the pub/sub channel announcing writes to a scope.
func changesKey(scope Scope) string {
	return fmt.Sprintf("void:%s:changes", scope)
}

// Write stores an item. The timestamp comes from the Redis server clock so
// that every client agrees on the ordering.
func (s *RedisStore) Write(ctx context.Context, scope Scope, item *models.Item) error {
	defer metrics.ObserveStore("redis", "write", time.Now())

	now, err := s.client.Time(ctx).Result()
	if err != nil {
		return err
	}

	item.CreatedAt = time.UnixMilli(now.UnixMilli())
	item.ID = crypto.NewItemID(item.CreatedAt)
	item.Scope = string(scope)
	item.Pending = false

	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, itemsKey(scope), item.ID, string(data))
	pipe.ZAdd(ctx, timelineKey(scope), redis.Z{
		Score:  float64(item.CreatedAt.UnixMilli()),
		Member: item.ID,
	})
	pipe.Publish(ctx, changesKey(scope), item.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// Page retrieves items newest first, strictly older than before when set.
func (s *RedisStore) Page(ctx context.Context, scope Scope, limit int, before *Cursor) ([]models.Item, error) {
	defer metrics.ObserveStore("redis", "page", time.Now())

	key := timelineKey(scope)
	var ids []string

	if before == nil {
		stop := int64(-1)
		if limit > 0 {
			stop = int64(limit) - 1
		}
		res, err := s.client.ZRevRange(ctx, key, 0, stop).Result()
		if err != nil {
			return nil, err
		}
		ids = res
	} else {
		ms := strconv.FormatInt(before.CreatedAt.UnixMilli(), 10)

		// Items sharing the cursor timestamp come back in descending ID
		// order; keep the ones past the cursor.
		ties, err := s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
			Min: ms,
			Max: ms,
		}).Result()
		if err != nil {
			return nil, err
		}
		for _, id := range ties {
			if id < before.ID {
				ids = append(ids, id)
			}
		}

		if limit <= 0 || len(ids) < limit {
			rng := &redis.ZRangeBy{Min: "-inf", Max: "(" + ms} // exclusive
			if limit > 0 {
				rng.Count = int64(limit - len(ids))
			}
			older, err := s.client.ZRevRangeByScore(ctx, key, rng).Result()
			if err != nil {
				return nil, err
			}
			ids = append(ids, older...)
		}
	}

	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return s.load(ctx, scope, ids)
}

// load fetches item documents in the order of ids.
func (s *RedisStore) load(ctx context.Context, scope Scope, ids []string) ([]models.Item, error) {
	if len(ids) == 0 {
		return []models.Item{}, nil
	}

	results, err := s.client.HMGet(ctx, itemsKey(scope), ids...).Result()
	if err != nil {
		return nil, err
	}

	// A skipped document would shorten the page, and a short page reads
	// as the end of the stream, so unreadable documents fail the read.
	items := make([]models.Item, 0, len(results))
	var bad []string
	for i, res := range results {
		data, ok := res.(string)
		if !ok {
			bad = append(bad, ids[i])
			continue
		}
		var it models.Item
		if err := json.Unmarshal([]byte(data), &it); err != nil {
			bad = append(bad, ids[i])
			continue
		}
		items = append(items, it)
	}
	if len(bad) > 0 {
		s.logger.Warn().Str("scope", string(scope)).Strs("ids", bad).Msg("unreadable item documents")
		return nil, fmt.Errorf("load %s: %d of %d: %w", scope, len(bad), len(ids), ErrCorrupt)
	}
	return items, nil
}

// Subscribe listens for writes to scope and re-reads the top-limit items
// on each one.
func (s *RedisStore) Subscribe(ctx context.Context, scope Scope, limit int) (Subscription, error) {
	ps := s.client.Subscribe(ctx, changesKey(scope))

	// Wait for the subscription confirmation so no write is missed between
	// the initial read and the first notification.
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	items, err := s.Page(ctx, scope, limit, nil)
	if err != nil {
		ps.Close()
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &redisSub{
		store:  s,
		scope:  scope,
		limit:  limit,
		ps:     ps,
		feed:   newFeed(),
		cancel: cancel,
	}
	sub.feed.push(sub.differ.next(items))

	sub.wg.Add(1)
	go sub.listen(subCtx)

	return sub, nil
}

type redisSub struct {
	store  *RedisStore
	scope  Scope
	limit  int
	ps     *redis.PubSub
	differ differ
	feed   *feed
	cancel context.CancelFunc

	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (r *redisSub) Snapshots() <-chan Snapshot { return r.feed.out }

func (r *redisSub) listen(ctx context.Context) {
	defer r.wg.Done()

	ch := r.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			items, err := r.store.Page(ctx, r.scope, r.limit, nil)
			if err != nil {
				if ctx.Err() == nil {
					r.store.logger.Warn().Err(err).Str("scope", string(r.scope)).Msg("live refresh failed")
				}
				continue
			}
			r.feed.push(r.differ.next(items))
		}
	}
}

// Close unsubscribes and waits for the listener to exit.
func (r *redisSub) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.cancel()
		err = r.ps.Close()
		r.wg.Wait()
		r.feed.close()
	})
	return err
}
