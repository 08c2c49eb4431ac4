package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "kirana:cache:"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis shares cached payloads between API replicas. Entries carry no TTL
// so stale reads stay possible while a refresh is running.
type Redis struct {
	rdb    *redis.Client
	maxAge time.Duration
	now    func() time.Time
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig, maxAge time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Redis{rdb: rdb, maxAge: maxAge, now: time.Now}, nil
}

func (r *Redis) Read(ctx context.Context, key string, allowStale bool) (map[string]interface{}, bool) {
	data, err := r.rdb.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		return nil, false
	}
	return decode(data, allowStale, r.maxAge, r.now())
}

func (r *Redis) Write(ctx context.Context, key string, data map[string]interface{}) error {
	body, err := stamp(data, r.now())
	if err != nil {
		return errors.Wrap(err, "cache Marshal")
	}
	return errors.Wrap(r.rdb.Set(ctx, keyPrefix+key, body, 0).Err(), "cache Set")
}

func (r *Redis) CachedAt(ctx context.Context, key string) *time.Time {
	m, ok := r.Read(ctx, key, true)
	if !ok {
		return nil
	}
	t, _ := parseStamp(m)
	return &t
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	err := r.rdb.Del(ctx, keyPrefix+key).Err()
	if err != nil && err != redis.Nil {
		return errors.Wrap(err, "cache Del")
	}
	return nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
