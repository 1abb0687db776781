package persistence

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type traceDocument struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// MongoTraceStore 基于 MongoDB 的实现，文档以键作为 _id。
type MongoTraceStore struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *zap.Logger
	closed     atomic.Bool
}

// NewMongoTraceStore 连接 MongoDB。驱动连接是惰性的，首次操作时才真正建立连接。
func NewMongoTraceStore(cfg MongoStoreConfig, logger *zap.Logger) (*MongoTraceStore, error) {
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%w: mongo store requires uri and database", ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = "traces"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := options.Client().ApplyURI(cfg.URI)
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
	}
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	return &MongoTraceStore{
		client:     client,
		collection: client.Database(cfg.Database).Collection(cfg.Collection),
		logger:     logger.With(zap.String("component", "mongo_trace_store")),
	}, nil
}

func (s *MongoTraceStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := checkKey(key); err != nil {
		return nil, err
	}
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}

	var doc traceDocument
	err := s.collection.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load trace: %w", err)
	}
	return doc.Data, nil
}

func (s *MongoTraceStore) Put(ctx context.Context, key string, data []byte) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}

	doc := traceDocument{Key: key, Data: data, UpdatedAt: time.Now().UTC()}
	_, err := s.collection.ReplaceOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		s.logger.Error("trace put failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save trace: %w", err)
	}
	return nil
}

func (s *MongoTraceStore) Remove(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	if s.closed.Load() {
		return ErrStoreClosed
	}
	if _, err := s.collection.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("failed to remove trace: %w", err)
	}
	return nil
}

func (s *MongoTraceStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
