package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultHistoryKey prefixes the per-newsletter history sets.
const DefaultHistoryKey = "newsbrief:seen_urls"

// HistoryKey names the Redis set holding one newsletter's URL history.
func HistoryKey(newsletter string) string {
	if newsletter == "" {
		return DefaultHistoryKey
	}
	return DefaultHistoryKey + ":" + newsletter
}

// RedisConfig configures the optional cross-run URL history kept in Redis.
type RedisConfig struct {
	Addr     string // e.g. localhost:6379
	Password string
	DB       int
	Key      string
	TTL      time.Duration
}

// RedisHistory persists admitted URLs in a Redis set so that several hosts
// running the generator share one ledger history. Each newsletter gets its
// own set (see HistoryKey).
type RedisHistory struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisHistory connects and verifies the server with PING.
func NewRedisHistory(ctx context.Context, cfg RedisConfig) (*RedisHistory, error) {
	if cfg.Key == "" {
		cfg.Key = DefaultHistoryKey
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	return &RedisHistory{client: client, key: cfg.Key, ttl: cfg.TTL}, nil
}

// WithKey returns a history over another set that shares r's connection.
// Only the original needs to be closed.
func (r *RedisHistory) WithKey(key string) *RedisHistory {
	return &RedisHistory{client: r.client, key: key, ttl: r.ttl}
}

// Key is the Redis set this history reads and writes.
func (r *RedisHistory) Key() string { return r.key }

// SeenURLs returns every URL recorded by previous runs.
func (r *RedisHistory) SeenURLs(ctx context.Context) ([]string, error) {
	urls, err := r.client.SMembers(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("smembers %s: %w", r.key, err)
	}
	return urls, nil
}

// Record adds urls to the set and slides the expiry forward, so the history
// stays alive for ttl after the most recent run.
func (r *RedisHistory) Record(ctx context.Context, urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	members := make([]interface{}, len(urls))
	for i, u := range urls {
		members[i] = u
	}

	pipe := r.client.TxPipeline()
	pipe.SAdd(ctx, r.key, members...)
	pipe.Expire(ctx, r.key, r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record urls: %w", err)
	}
	return nil
}

func (r *RedisHistory) Close() error {
	return r.client.Close()
}
