package idempotency

import (
	"context"
	"encoding/json"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps idempotency records in Redis. SET NX with an expiry is
// the atomic insert-if-absent, and Redis' own TTL handling makes expired
// records absent without any reaper.
type RedisStore struct {
	client  *redis.Client
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewRedisStore connects and verifies the server is reachable.
func NewRedisStore(ctx context.Context, addr, password string, db int, logger *zap.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	logger.Info("Connected to Redis idempotency store", zap.String("addr", addr))

	return &RedisStore{
		client:  client,
		logger:  logger,
		timeout: 5 * time.Second,
		now:     time.Now,
	}, nil
}

func (s *RedisStore) TryBegin(ctx context.Context, key, payloadHash string, ttl time.Duration, metadata map[string]string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	record := newRecord(key, payloadHash, ttl, metadata, s.now().UTC())
	value, err := json.Marshal(record)
	if err != nil {
		return FirstSeen, err
	}

	set, err := s.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		s.logger.Error("Failed to write idempotency record",
			zap.Error(err),
			zap.String("key", key))
		return FirstSeen, err
	}
	if set {
		return FirstSeen, nil
	}

	raw, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		// Expired between SETNX and GET; claim it.
		set, err := s.client.SetNX(ctx, key, value, ttl).Result()
		if err != nil {
			return FirstSeen, err
		}
		if set {
			return FirstSeen, nil
		}
		raw, err = s.client.Get(ctx, key).Bytes()
		if err != nil {
			return FirstSeen, err
		}
	} else if err != nil {
		return FirstSeen, err
	}

	var existing models.IdempotencyRecord
	if err := json.Unmarshal(raw, &existing); err != nil {
		return FirstSeen, err
	}

	if existing.PayloadHash == payloadHash {
		return DuplicateSameBody, nil
	}
	return DuplicateBodyMismatch, nil
}

func (s *RedisStore) Close(ctx context.Context) error {
	return s.client.Close()
}
