package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisStore хранит записи кеша в Redis.
// Статистика попаданий и промахов считается на стороне клиента,
// чтобы Stats возвращал данные только этого процесса.
type RedisStore struct {
	client        *redis.Client
	hits          atomic.Int64
	misses        atomic.Int64
	invalidations atomic.Int64
}

// NewRedisStore подключается к Redis по указанному адресу и проверяет соединение.
func NewRedisStore(addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		r.misses.Add(1)
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}

	r.hits.Add(1)
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// ClearPrefix удаляет все ключи с указанным префиксом через SCAN,
// не блокируя Redis командой KEYS.
func (r *RedisStore) ClearPrefix(ctx context.Context, prefix string) (int, error) {
	removed := 0
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()

	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return removed, fmt.Errorf("redis del %s: %w", iter.Val(), err)
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("redis scan %s*: %w", prefix, err)
	}

	r.invalidations.Add(int64(removed))
	return removed, nil
}

func (r *RedisStore) Stats(ctx context.Context) (Stats, error) {
	size, err := r.client.DBSize(ctx).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("redis dbsize: %w", err)
	}

	return Stats{
		Hits:          r.hits.Load(),
		Misses:        r.misses.Load(),
		Size:          int(size),
		Invalidations: r.invalidations.Load(),
	}, nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
