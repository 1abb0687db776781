package persistence

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/agentteam/internal/metrics"
)

type factoryOptions struct {
	logger  *zap.Logger
	metrics *metrics.Collector
}

// Option 配置 NewTraceStore。
type Option func(*factoryOptions)

// WithLogger 设置后端使用的日志记录器。
func WithLogger(logger *zap.Logger) Option {
	return func(o *factoryOptions) { o.logger = logger }
}

// WithMetrics 让返回的存储为每次操作记录指标。
func WithMetrics(c *metrics.Collector) Option {
	return func(o *factoryOptions) { o.metrics = c }
}

// NewTraceStore creates a new TraceStore based on the configuration
func NewTraceStore(config StoreConfig, opts ...Option) (TraceStore, error) {
	o := factoryOptions{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store TraceStore
		err   error
	)
	switch config.Type {
	case StoreTypeMemory, "":
		config.Type = StoreTypeMemory
		store = NewMemoryTraceStore()
	case StoreTypeFile:
		store, err = NewFileTraceStore(config.BaseDir)
	case StoreTypeRedis:
		store, err = NewRedisTraceStore(config.Redis, config.TTL, o.logger)
	case StoreTypeSQL:
		store, err = NewSQLTraceStore(config.SQL, o.logger)
	case StoreTypeMongo:
		store, err = NewMongoTraceStore(config.Mongo, o.logger)
	default:
		return nil, fmt.Errorf("unsupported trace store type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Info("trace store initialized", zap.String("type", string(config.Type)))
	if o.metrics != nil {
		store = Instrument(store, string(config.Type), o.metrics)
	}
	return store, nil
}

// MustNewTraceStore creates a new TraceStore or panics on error.
// Only for use during program initialization.
func MustNewTraceStore(config StoreConfig, opts ...Option) TraceStore {
	store, err := NewTraceStore(config, opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to create trace store: %v", err))
	}
	return store
}
