package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/internal/database"
	"github.com/BaSui01/agentteam/internal/metrics"
)

// =============================================================================
// 🧪 通用行为测试：每个后端都必须满足
// =============================================================================

func runStoreSuite(t *testing.T, newStore func(t *testing.T) TraceStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGet", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "session-1", []byte(`{"id":"t1"}`)))

		got, err := s.Get(ctx, "session-1")
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":"t1"}`, string(got))
	})

	t.Run("Overwrite", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("v1")))
		require.NoError(t, s.Put(ctx, "k", []byte("v2")))

		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "v2", string(got))
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Remove", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Put(ctx, "k", []byte("v")))
		require.NoError(t, s.Remove(ctx, "k"))
		require.NoError(t, s.Remove(ctx, "k"))

		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("KeyWithSeparators", func(t *testing.T) {
		s := newStore(t)
		key := "team/a:session 1"
		require.NoError(t, s.Put(ctx, key, []byte("v")))
		got, err := s.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, "v", string(got))
	})

	t.Run("EmptyKey", func(t *testing.T) {
		s := newStore(t)
		assert.ErrorIs(t, s.Put(ctx, "", []byte("v")), ErrInvalidInput)
		_, err := s.Get(ctx, "")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("Concurrent", func(t *testing.T) {
		s := newStore(t)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				key := fmt.Sprintf("k-%d", i)
				assert.NoError(t, s.Put(ctx, key, []byte(key)))
				got, err := s.Get(ctx, key)
				assert.NoError(t, err)
				assert.Equal(t, key, string(got))
			}(i)
		}
		wg.Wait()
	})

	t.Run("Closed", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Close())
		assert.ErrorIs(t, s.Put(ctx, "k", []byte("v")), ErrStoreClosed)
		_, err := s.Get(ctx, "k")
		assert.ErrorIs(t, err, ErrStoreClosed)
	})
}

func TestMemoryTraceStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, func(t *testing.T) TraceStore {
		return NewMemoryTraceStore()
	})
}

func TestMemoryTraceStore_CopiesData(t *testing.T) {
	t.Parallel()

	s := NewMemoryTraceStore()
	buf := []byte("abc")
	require.NoError(t, s.Put(context.Background(), "k", buf))
	buf[0] = 'x'

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
	assert.Equal(t, 1, s.Len())
}

func TestFileTraceStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, func(t *testing.T) TraceStore {
		s, err := NewFileTraceStore(t.TempDir())
		require.NoError(t, err)
		return s
	})
}

func TestFileTraceStore_StaysInsideDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := NewFileTraceStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Put(context.Background(), "../escape", []byte("v")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "escape.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestFileTraceStore_EmptyDir(t *testing.T) {
	t.Parallel()

	_, err := NewFileTraceStore("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func newMiniredisStore(t *testing.T, ttl time.Duration) (*miniredis.Miniredis, *RedisTraceStore) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisTraceStoreWithClient(client, "test:", ttl, zap.NewNop())
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestRedisTraceStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, func(t *testing.T) TraceStore {
		_, s := newMiniredisStore(t, 0)
		return s
	})
}

func TestRedisTraceStore_KeyPrefixAndTTL(t *testing.T) {
	t.Parallel()

	mr, s := newMiniredisStore(t, time.Minute)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "session-1", []byte("v")))

	assert.True(t, mr.Exists("test:trace:session-1"))
	assert.Equal(t, time.Minute, mr.TTL("test:trace:session-1"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Get(ctx, "session-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewRedisTraceStore_ConnectFailure(t *testing.T) {
	t.Parallel()

	_, err := NewRedisTraceStore(RedisStoreConfig{Addr: "127.0.0.1:1"}, 0, nil)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func newSQLiteStore(t *testing.T) *SQLTraceStore {
	t.Helper()
	s, err := NewSQLTraceStore(SQLStoreConfig{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "traces.db"),
		Pool:   database.PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1},
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLTraceStore(t *testing.T) {
	t.Parallel()
	runStoreSuite(t, func(t *testing.T) TraceStore {
		return newSQLiteStore(t)
	})
}

func TestSQLTraceStore_UpsertKeepsSingleRow(t *testing.T) {
	t.Parallel()

	s := newSQLiteStore(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.Put(ctx, "k", []byte(fmt.Sprintf("v%d", i))))
	}

	db, err := s.pool.DB(ctx)
	require.NoError(t, err)
	var count int64
	require.NoError(t, db.Model(&TraceRecord{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestNewMongoTraceStore_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewMongoTraceStore(MongoStoreConfig{}, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	s, err := NewMongoTraceStore(MongoStoreConfig{URI: "mongodb://127.0.0.1:1", Database: "agentteam"}, nil)
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Put(context.Background(), "k", nil), ErrStoreClosed)
}

// =============================================================================
// 🏭 工厂与指标
// =============================================================================

func TestStoreConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(c *StoreConfig)
		wantErr bool
	}{
		{name: "default memory", mutate: func(c *StoreConfig) {}},
		{name: "file without dir", mutate: func(c *StoreConfig) { c.Type = StoreTypeFile; c.BaseDir = "" }, wantErr: true},
		{name: "redis without addr", mutate: func(c *StoreConfig) { c.Type = StoreTypeRedis; c.Redis.Addr = "" }, wantErr: true},
		{name: "sql bad driver", mutate: func(c *StoreConfig) { c.Type = StoreTypeSQL; c.SQL.Driver = "oracle" }, wantErr: true},
		{name: "sql ok", mutate: func(c *StoreConfig) { c.Type = StoreTypeSQL }},
		{name: "mongo without db", mutate: func(c *StoreConfig) { c.Type = StoreTypeMongo; c.Mongo.Database = "" }, wantErr: true},
		{name: "unknown", mutate: func(c *StoreConfig) { c.Type = "etcd" }, wantErr: true},
		{name: "negative ttl", mutate: func(c *StoreConfig) { c.TTL = -time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStoreConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewTraceStore(t *testing.T) {
	t.Parallel()

	t.Run("memory", func(t *testing.T) {
		s, err := NewTraceStore(DefaultStoreConfig())
		require.NoError(t, err)
		assert.IsType(t, &MemoryTraceStore{}, s)
	})

	t.Run("file", func(t *testing.T) {
		cfg := DefaultStoreConfig()
		cfg.Type = StoreTypeFile
		cfg.BaseDir = t.TempDir()
		s, err := NewTraceStore(cfg, WithLogger(zap.NewNop()))
		require.NoError(t, err)
		assert.IsType(t, &FileTraceStore{}, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)
		cfg := DefaultStoreConfig()
		cfg.Type = StoreTypeRedis
		cfg.Redis.Addr = mr.Addr()
		s, err := NewTraceStore(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		require.NoError(t, s.Put(context.Background(), "k", []byte("v")))
		assert.True(t, mr.Exists("agentteam:trace:k"))
	})

	t.Run("sql", func(t *testing.T) {
		cfg := DefaultStoreConfig()
		cfg.Type = StoreTypeSQL
		cfg.SQL.DSN = filepath.Join(t.TempDir(), "f.db")
		s, err := NewTraceStore(cfg)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		assert.IsType(t, &SQLTraceStore{}, s)
	})

	t.Run("unsupported", func(t *testing.T) {
		cfg := DefaultStoreConfig()
		cfg.Type = "etcd"
		_, err := NewTraceStore(cfg)
		assert.ErrorContains(t, err, "unsupported trace store type")
	})
}

func TestMustNewTraceStore_Panics(t *testing.T) {
	t.Parallel()

	cfg := DefaultStoreConfig()
	cfg.Type = "etcd"
	assert.Panics(t, func() { MustNewTraceStore(cfg) })
}

func TestInstrument_RecordsOperations(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := metrics.NewCollectorWithRegisterer("test", reg, nil)

	s, err := NewTraceStore(DefaultStoreConfig(), WithMetrics(c))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Put(ctx, "k", []byte("v")))
	_, err = s.Get(ctx, "k")
	require.NoError(t, err)
	_, err = s.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "")
	require.Error(t, err)
	require.NoError(t, s.Remove(ctx, "k"))

	// put/success, get/success, get/error, remove/success
	count, err := testutil.GatherAndCount(reg, "test_store_operations_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestInstrument_NilCollector(t *testing.T) {
	t.Parallel()

	inner := NewMemoryTraceStore()
	assert.Same(t, inner, Instrument(inner, "memory", nil).(*MemoryTraceStore))
}
