package medium

import (
	"fmt"

	"lernguide/internal/config"
	"lernguide/internal/redis"
	"lernguide/internal/storage"
)

// RedisKeyPrefix namespaces keys written by the redis medium.
const RedisKeyPrefix = "lernguide:"

// Open builds the medium selected by cfg.Storage.Driver.
func Open(cfg *config.Config) (Medium, error) {
	capacity := cfg.Storage.CapacityBytes
	switch cfg.Storage.Driver {
	case "memory":
		return NewMemory(capacity), nil
	case "badger":
		return NewBadger(cfg.Storage.Path, capacity)
	case "redis":
		client, err := redis.NewRedisClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("create redis client: %w", err)
		}
		return NewRedis(client, RedisKeyPrefix, capacity), nil
	default:
		db, err := storage.Open(cfg.Storage.Driver, cfg)
		if err != nil {
			return nil, err
		}
		m, err := NewSQL(db, cfg.Storage.Driver, capacity)
		if err != nil {
			db.Close()
			return nil, err
		}
		return m, nil
	}
}
