package repository

import (
	"context"
	"errors"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"

	"github.com/unique-nft/marketgate/internal/middleware"
	"github.com/unique-nft/marketgate/internal/pkg/logger"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// RedisIdempotencyStore shares idempotency keys between gateway replicas.
type RedisIdempotencyStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

func NewRedisIdempotencyStore(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisIdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyStore{
		client: client,
		ttl:    ttl,
		prefix: keyPrefix + "idem:",
	}
}

type idemWire struct {
	Status     int    `json:"status"`
	Body       []byte `json:"body"`
	CreatedAt  int64  `json:"created_at"`
	Processing bool   `json:"processing"`
}

func (s *RedisIdempotencyStore) GetOrLock(ctx context.Context, key string) (*middleware.IdempotencyRecord, bool) {
	lock, _ := json.Marshal(idemWire{CreatedAt: time.Now().UTC().Unix(), Processing: true})

	ok, err := s.client.SetNX(ctx, s.prefix+key, lock, s.ttl).Result()
	if err != nil {
		// Fail open: without Redis the request is simply not deduplicated.
		logger.Warn("idempotency lock failed", logger.Err(err))
		return nil, false
	}
	if ok {
		return nil, false
	}

	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.Warn("idempotency read failed", logger.Err(err))
		return nil, false
	}

	var wire idemWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, false
	}
	return &middleware.IdempotencyRecord{
		Status:     wire.Status,
		Body:       wire.Body,
		CreatedAt:  time.Unix(wire.CreatedAt, 0).UTC(),
		Processing: wire.Processing,
	}, true
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, status int, body []byte) {
	payload, _ := json.Marshal(idemWire{
		Status:    status,
		Body:      body,
		CreatedAt: time.Now().UTC().Unix(),
	})
	if err := s.client.Set(ctx, s.prefix+key, payload, s.ttl).Err(); err != nil {
		logger.Warn("idempotency save failed", logger.Err(err))
	}
}

func (s *RedisIdempotencyStore) Unlock(ctx context.Context, key string) {
	_ = s.client.Del(ctx, s.prefix+key).Err()
}
