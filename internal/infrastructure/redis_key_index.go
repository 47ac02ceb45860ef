package infrastructure

import (
	"context"
	"fmt"

	"adperf/internal/domain"
	"adperf/pkg/config"
	"adperf/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 1000

// RedisKeyIndex keeps every imported natural key in one Redis set so the
// deduplicator can answer lookups without paging through the record store.
type RedisKeyIndex struct {
	client *redis.Client
	key    string
	logger *logger.Logger
}

// NewRedisKeyIndex connects to Redis and verifies it is reachable.
func NewRedisKeyIndex(ctx context.Context, cfg config.RedisConfig, logger *logger.Logger) (*RedisKeyIndex, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.WithFields(map[string]any{
		"addr": cfg.Addr,
		"db":   cfg.DB,
		"set":  cfg.KeySet,
	}).Info("Connected to Redis key index")

	return &RedisKeyIndex{client: client, key: cfg.KeySet, logger: logger}, nil
}

func (i *RedisKeyIndex) Close() error {
	return i.client.Close()
}

func (i *RedisKeyIndex) Count(ctx context.Context) (int, error) {
	n, err := i.client.SCard(ctx, i.key).Result()
	if err != nil {
		return 0, domain.WrapStoreError("key_index_count", err)
	}
	return int(n), nil
}

// ExistingKeys scans the set and keeps the keys whose day is inside the
// filter's date bounds. Campaign ids are not part of a key and are ignored.
func (i *RedisKeyIndex) ExistingKeys(ctx context.Context, filter domain.RangeFilter) (domain.KeySet, error) {
	keys := domain.NewKeySet()
	var cursor uint64
	for {
		members, next, err := i.client.SScan(ctx, i.key, cursor, "", scanBatch).Result()
		if err != nil {
			return nil, domain.WrapStoreError("key_index_scan", err)
		}
		for _, member := range members {
			key, ok := domain.ParseNaturalKey(member)
			if !ok {
				i.logger.WithContext(ctx).WithField("member", member).Warn("Skipping malformed key in index")
				continue
			}
			if filter.StartDate != "" && key.Day < filter.StartDate {
				continue
			}
			if filter.EndDate != "" && key.Day > filter.EndDate {
				continue
			}
			keys.Add(key)
		}
		if next == 0 {
			return keys, nil
		}
		cursor = next
	}
}

// Remember adds keys to the set once their records are stored.
func (i *RedisKeyIndex) Remember(ctx context.Context, keys []domain.NaturalKey) error {
	if len(keys) == 0 {
		return nil
	}
	members := make([]any, len(keys))
	for n, k := range keys {
		members[n] = k.String()
	}
	if err := i.client.SAdd(ctx, i.key, members...).Err(); err != nil {
		return domain.WrapStoreError("key_index_add", err)
	}
	return nil
}
