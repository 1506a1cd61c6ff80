package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/i474232898/weather-tracker/internal/weather"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "weather:"

// RedisStore is a weather cache backed by Redis. Entries never expire.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisStore{client: client, timeout: timeout}
}

// ConnectRedis parses url, connects and pings.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return client, nil
}

func redisKey(key string) string {
	return redisKeyPrefix + weather.NormalizeKey(key)
}

// Upsert replaces the record stored for key. Redis SET is atomic per key.
// Failures are logged; the cache is best effort.
func (s *RedisStore) Upsert(key string, record weather.Record) {
	data, err := json.Marshal(record)
	if err != nil {
		log.Printf("store: marshal %s: %v", key, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.client.Set(ctx, redisKey(key), data, 0).Err(); err != nil {
		log.Printf("store: redis SET %s: %v", redisKey(key), err)
	}
}

// Lookup returns the record stored for key. Redis errors count as absence.
func (s *RedisStore) Lookup(key string) (weather.Record, bool) {
	rec, err := s.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("store: redis lookup %s: %v", key, err)
		}
		return weather.Record{}, false
	}
	return rec, true
}

// Get is Lookup that surfaces the underlying error.
func (s *RedisStore) Get(key string) (weather.Record, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return weather.Record{}, ErrNotFound
		}
		return weather.Record{}, err
	}

	var rec weather.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return weather.Record{}, fmt.Errorf("decode cached record: %w", err)
	}
	return rec, nil
}
