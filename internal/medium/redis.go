package medium

import (
	"context"
	"errors"

	"lernguide/internal/redis"
)

// Redis stores items as plain string keys under a prefix.
type Redis struct {
	client   *redis.Client
	prefix   string
	capacity int
}

func NewRedis(client *redis.Client, prefix string, capacity int) *Redis {
	return &Redis{client: client, prefix: prefix, capacity: capacity}
}

func (r *Redis) SetItem(ctx context.Context, key, value string) error {
	full := r.prefix + key
	if r.capacity > 0 {
		used, err := r.client.UsedBytes(ctx, r.prefix+"*", full)
		if err != nil {
			return err
		}
		if exceeds(r.capacity, used+itemSize(full, value)) {
			return ErrQuotaExceeded
		}
	}
	if err := r.client.Set(ctx, full, value, 0); err != nil {
		if redis.IsOOM(err) {
			return ErrQuotaExceeded
		}
		return err
	}
	return nil
}

func (r *Redis) GetItem(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key)
	if errors.Is(err, redis.ErrCacheMiss) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *Redis) RemoveItem(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key)
}

func (r *Redis) Close() error {
	return r.client.Close()
}
