package idempotency

import (
	"context"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoStore persists idempotency records in a collection with a unique
// index on key. InsertOne against that index is the atomic insert-if-absent;
// a TTL index on expires_at evicts stale records server-side, and the
// conditional takeover in TryBegin covers records that have expired but not
// been evicted yet.
type MongoStore struct {
	collection *mongo.Collection
	logger     *zap.Logger
	timeout    time.Duration
	now        func() time.Time
}

// NewMongoStore wires the collection and creates its indexes.
func NewMongoStore(ctx context.Context, collection *mongo.Collection, logger *zap.Logger) (*MongoStore, error) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "key", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
		{
			Keys: bson.D{{Key: "operation_type", Value: 1}},
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, err
	}

	return &MongoStore{
		collection: collection,
		logger:     logger,
		timeout:    5 * time.Second,
		now:        time.Now,
	}, nil
}

func (s *MongoStore) TryBegin(ctx context.Context, key, payloadHash string, ttl time.Duration, metadata map[string]string) (Outcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := s.now().UTC()
	record := newRecord(key, payloadHash, ttl, metadata, now)

	_, err := s.collection.InsertOne(ctx, record)
	if err == nil {
		return FirstSeen, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		s.logger.Error("Failed to insert idempotency record",
			zap.Error(err),
			zap.String("key", key))
		return FirstSeen, err
	}

	// The key exists. If the existing record has expired but the TTL
	// monitor has not evicted it yet, take it over conditionally; the
	// filter on expires_at keeps the takeover race-free.
	res, err := s.collection.ReplaceOne(ctx,
		bson.M{"key": key, "expires_at": bson.M{"$lte": now}},
		record)
	if err != nil {
		return FirstSeen, err
	}
	if res.ModifiedCount == 1 {
		return FirstSeen, nil
	}

	var existing models.IdempotencyRecord
	if err := s.collection.FindOne(ctx, bson.M{"key": key}).Decode(&existing); err != nil {
		if err == mongo.ErrNoDocuments {
			// Evicted between the insert conflict and the read; retry
			// the insert once.
			if _, err := s.collection.InsertOne(ctx, record); err == nil {
				return FirstSeen, nil
			} else if !mongo.IsDuplicateKeyError(err) {
				return FirstSeen, err
			}
			if err := s.collection.FindOne(ctx, bson.M{"key": key}).Decode(&existing); err != nil {
				return FirstSeen, err
			}
		} else {
			return FirstSeen, err
		}
	}

	if existing.PayloadHash == payloadHash {
		return DuplicateSameBody, nil
	}
	return DuplicateBodyMismatch, nil
}

func (s *MongoStore) Close(ctx context.Context) error {
	return nil
}
