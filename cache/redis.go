package cache

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/skyrelay/groundcore/logging"
)

// Config locates the shared redis instance.
type Config struct {
	Host string
	Port int
	DB   int

	// pool sizing; zero values take go-redis defaults
	PoolSize     int
	MinIdleConns int
}

func (c Config) addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// RedisStore implements Store on a shared go-redis client. The client dials
// lazily; call Ping to verify reachability at startup.
type RedisStore struct {
	client *redis.Client
	logger logging.Logger
}

// NewRedisStore returns a Store backed by redis at cfg.
func NewRedisStore(cfg Config, logger logging.Logger) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.addr(),
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return &RedisStore{client: client, logger: logger}
}

// Put writes value under key with the given TTL.
func (s *RedisStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return ErrTTLRequired
	}
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "putting %q", key)
	}
	return nil
}

// Get reads key, reporting absence via the bool.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "getting %q", key)
	}
	return data, true, nil
}

// Ping verifies the redis instance is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "pinging cache")
	}
	return nil
}

// Close releases the client pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
