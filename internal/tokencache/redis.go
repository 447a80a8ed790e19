package tokencache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Redis shares the cache between API replicas.
type Redis struct {
	client  *redis.Client
	logger  *slog.Logger
	prefix  string
	timeout time.Duration
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(addr, password string, db int, logger *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return NewRedisFromClient(client, logger), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, logger *slog.Logger) *Redis {
	if logger == nil {
		logger = slog.Default()
	}
	return &Redis{
		client:  client,
		logger:  logger,
		prefix:  "gooji:token:",
		timeout: 250 * time.Millisecond,
	}
}

// Get looks the token up. Redis failures are reported as misses.
func (r *Redis) Get(ctx context.Context, token string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	uid, err := r.client.Get(ctx, r.prefix+Key(token)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logRedisError("get", err)
		}
		return "", false
	}
	return uid, uid != ""
}

// Set stores uid with the given expiry.
func (r *Redis) Set(ctx context.Context, token, uid string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.client.Set(ctx, r.prefix+Key(token), uid, ttl).Err(); err != nil {
		r.logRedisError("set", err)
	}
}

// Close releases the client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) logRedisError(op string, err error) {
	if r.logger == nil {
		return
	}
	r.logger.Warn("token cache redis error", "op", op, "error", err)
}
