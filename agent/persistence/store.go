package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentteam/internal/database"
)

// Common errors
var (
	ErrNotFound     = errors.New("trace not found")
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// TraceStore 按键持久化 Trace 快照。实现必须可并发调用。
type TraceStore interface {
	// Get 返回键对应的数据，不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Put 写入或覆盖键对应的数据。
	Put(ctx context.Context, key string, data []byte) error

	// Remove 删除键，不存在时不报错。
	Remove(ctx context.Context, key string) error

	// Close 释放底层资源，之后的调用返回 ErrStoreClosed。
	Close() error
}

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeFile   StoreType = "file"
	StoreTypeRedis  StoreType = "redis"
	StoreTypeSQL    StoreType = "sql"
	StoreTypeMongo  StoreType = "mongo"
)

// StoreConfig is the base configuration for all store implementations
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type" env:"TYPE"`

	// BaseDir is the base directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir" env:"BASE_DIR"`

	// TTL 为 0 表示永不过期，仅 redis 后端生效
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"TTL"`

	Redis RedisStoreConfig `json:"redis" yaml:"redis" env:"REDIS"`
	SQL   SQLStoreConfig   `json:"sql" yaml:"sql" env:"SQL"`
	Mongo MongoStoreConfig `json:"mongo" yaml:"mongo" env:"MONGO"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr      string `json:"addr" yaml:"addr" env:"ADDR"`
	Password  string `json:"password" yaml:"password" env:"PASSWORD"`
	DB        int    `json:"db" yaml:"db" env:"DB"`
	PoolSize  int    `json:"pool_size" yaml:"pool_size"`
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix" env:"KEY_PREFIX"`
}

// SQLStoreConfig 配置 GORM 存储。
type SQLStoreConfig struct {
	Driver database.Driver     `json:"driver" yaml:"driver" env:"DRIVER"`
	DSN    string              `json:"dsn" yaml:"dsn" env:"DSN"`
	Pool   database.PoolConfig `json:"pool" yaml:"pool"`
	// MaxRetries 写入事务在死锁等瞬时错误下的最大尝试次数
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// MongoStoreConfig 配置 MongoDB 存储。
type MongoStoreConfig struct {
	URI            string        `json:"uri" yaml:"uri" env:"URI"`
	Database       string        `json:"database" yaml:"database" env:"DATABASE"`
	Collection     string        `json:"collection" yaml:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/traces",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "agentteam:",
		},
		SQL: SQLStoreConfig{
			Driver:     database.DriverSQLite,
			DSN:        "./data/agentteam.db",
			Pool:       database.DefaultPoolConfig(),
			MaxRetries: 3,
		},
		Mongo: MongoStoreConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "agentteam",
			Collection:     "traces",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Validate 检查所选后端的必填项。
func (c StoreConfig) Validate() error {
	switch c.Type {
	case StoreTypeMemory, "":
	case StoreTypeFile:
		if c.BaseDir == "" {
			return fmt.Errorf("file store requires base_dir")
		}
	case StoreTypeRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis store requires addr")
		}
	case StoreTypeSQL:
		if c.SQL.DSN == "" {
			return fmt.Errorf("sql store requires dsn")
		}
		if _, err := database.Dialector(c.SQL.Driver, c.SQL.DSN); err != nil {
			return err
		}
	case StoreTypeMongo:
		if c.Mongo.URI == "" || c.Mongo.Database == "" {
			return fmt.Errorf("mongo store requires uri and database")
		}
	default:
		return fmt.Errorf("unsupported trace store type: %s", c.Type)
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl must not be negative")
	}
	return nil
}

func checkKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidInput)
	}
	return nil
}
