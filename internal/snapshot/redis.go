package snapshot

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKey = "buddyway:sessions"

// Redis keeps the snapshot under a single key.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Load(ctx context.Context) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (r *Redis) Save(ctx context.Context, data []byte) error {
	return r.client.Set(ctx, redisKey, data, 0).Err()
}
