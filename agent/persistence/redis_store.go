package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisTraceStore is a Redis-based implementation of TraceStore.
// Suitable for distributed production deployments.
type RedisTraceStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
	closed    atomic.Bool
}

// NewRedisTraceStore 连接 Redis 并创建存储。连接失败时直接返回错误。
func NewRedisTraceStore(cfg RedisStoreConfig, ttl time.Duration, logger *zap.Logger) (*RedisTraceStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisTraceStoreWithClient(client, cfg.KeyPrefix, ttl, logger), nil
}

// NewRedisTraceStoreWithClient 复用已有客户端，Close 时会关闭该客户端。
func NewRedisTraceStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisTraceStore {
	if keyPrefix == "" {
		keyPrefix = "agentteam:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTraceStore{
		client:    client,
		keyPrefix: keyPrefix + "trace:",
		ttl:       ttl,
		logger:    logger.With(zap.String("component", "redis_trace_store")),
	}
}

func (s *RedisTraceStore) traceKey(key string) string {
	return s.keyPrefix + key
}

func (s *RedisTraceStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	data, err := s.client.Get(ctx, s.traceKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		s.logger.Error("trace get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("failed to get trace: %w", err)
	}
	return data, nil
}

func (s *RedisTraceStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	if err := s.client.Set(ctx, s.traceKey(key), data, s.ttl).Err(); err != nil {
		s.logger.Error("trace put failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to put trace: %w", err)
	}
	return nil
}

func (s *RedisTraceStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if err := s.client.Del(ctx, s.traceKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to remove trace: %w", err)
	}
	return nil
}

func (s *RedisTraceStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.client.Close()
}
