package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/agentteam/internal/metrics"
)

type instrumentedStore struct {
	inner   TraceStore
	backend string
	metrics *metrics.Collector
}

// Instrument 包装 store，为 get/put/remove 记录操作计数与耗时。
// 未命中（ErrNotFound）按成功计。
func Instrument(store TraceStore, backend string, c *metrics.Collector) TraceStore {
	if c == nil {
		return store
	}
	return &instrumentedStore{inner: store, backend: backend, metrics: c}
}

func (s *instrumentedStore) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	s.metrics.RecordStoreOp(s.backend, op, err, time.Since(start))
}

func (s *instrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := s.inner.Get(ctx, key)
	s.observe("get", start, err)
	return data, err
}

func (s *instrumentedStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := s.inner.Put(ctx, key, data)
	s.observe("put", start, err)
	return err
}

func (s *instrumentedStore) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := s.inner.Remove(ctx, key)
	s.observe("remove", start, err)
	return err
}

func (s *instrumentedStore) Close() error { return s.inner.Close() }
