package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/BaSui01/agentteam/internal/database"
)

// TraceRecord 是 SQL 后端的表结构。
type TraceRecord struct {
	Key       string `gorm:"column:trace_key;primaryKey;size:191"`
	Data      []byte `gorm:"column:data;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's tabler.
func (TraceRecord) TableName() string { return "agentteam_traces" }

// SQLTraceStore 基于 GORM 的实现，支持 sqlite、postgres 与 mysql。
type SQLTraceStore struct {
	pool       *database.PoolManager
	maxRetries int
	logger     *zap.Logger
	closed     atomic.Bool
}

// NewSQLTraceStore 打开数据库并自动迁移 agentteam_traces 表。
func NewSQLTraceStore(cfg SQLStoreConfig, logger *zap.Logger) (*SQLTraceStore, error) {
	pool, err := database.Open(database.Config{
		Driver: cfg.Driver,
		DSN:    cfg.DSN,
		Pool:   cfg.Pool,
	}, logger)
	if err != nil {
		return nil, err
	}
	s, err := NewSQLTraceStoreWithPool(pool, cfg.MaxRetries, logger)
	if err != nil {
		_ = pool.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLTraceStoreWithPool 复用已有连接池，Close 时会关闭该连接池。
func NewSQLTraceStoreWithPool(pool *database.PoolManager, maxRetries int, logger *zap.Logger) (*SQLTraceStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 1 {
		maxRetries = 1
	}

	db, err := pool.DB(context.Background())
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&TraceRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate trace table: %w", err)
	}

	return &SQLTraceStore{
		pool:       pool,
		maxRetries: maxRetries,
		logger:     logger.With(zap.String("component", "sql_trace_store")),
	}, nil
}

func (s *SQLTraceStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	db, err := s.pool.DB(ctx)
	if err != nil {
		return nil, err
	}

	var rec TraceRecord
	err = db.Where("trace_key = ?", key).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	return rec.Data, nil
}

func (s *SQLTraceStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	rec := TraceRecord{Key: key, Data: data}
	err := s.pool.WithTransactionRetry(ctx, s.maxRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trace_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
		}).Create(&rec).Error
	})
	if err != nil {
		s.logger.Error("trace put failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save trace: %w", err)
	}
	return nil
}

func (s *SQLTraceStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	db, err := s.pool.DB(ctx)
	if err != nil {
		return err
	}
	if err := db.Where("trace_key = ?", key).Delete(&TraceRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove trace: %w", err)
	}
	return nil
}

func (s *SQLTraceStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.pool.Close()
}
