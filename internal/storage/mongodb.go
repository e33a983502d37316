package storage

import (
	"context"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// MongoDB wraps the client plus the delivery-record collection consumed by
// the worker. The idempotency store gets its own collection handle via
// Collection.
type MongoDB struct {
	client     *mongo.Client
	database   *mongo.Database
	deliveries *mongo.Collection
	logger     *zap.Logger
}

func NewMongoDB(uri, database, deliveryCollection string, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri).
		SetMaxPoolSize(100).
		SetMaxConnIdleTime(30 * time.Second).
		SetConnectTimeout(10 * time.Second).
		SetSocketTimeout(30 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	logger.Info("Successfully connected to MongoDB",
		zap.String("database", database),
		zap.String("collection", deliveryCollection),
	)

	db := client.Database(database)
	coll := db.Collection(deliveryCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "message_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "provider", Value: 1},
				{Key: "event_id", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "received_at", Value: 1}},
		},
		{
			Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "provider", Value: 1},
			},
		},
	}

	if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
		return nil, err
	}

	return &MongoDB{
		client:     client,
		database:   db,
		deliveries: coll,
		logger:     logger,
	}, nil
}

// Collection exposes a named collection on the gateway database, used to
// hand the idempotency store its own collection.
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

func (m *MongoDB) InsertDelivery(ctx context.Context, record *models.DeliveryRecord) error {
	if record.Status == "" {
		record.Status = models.DeliveryStatusPending
	}

	doc := bson.M{
		"message_id":  record.MessageID,
		"provider":    record.Provider,
		"event_id":    record.EventID,
		"received_at": record.ReceivedAt,
		"status":      record.Status,
		"retry_count": record.RetryCount,
	}
	if record.EventType != "" {
		doc["event_type"] = record.EventType
	}

	_, err := m.deliveries.InsertOne(ctx, doc)
	if err != nil {
		m.logger.Error("Failed to insert delivery record",
			zap.Error(err),
			zap.String("provider", string(record.Provider)),
			zap.String("event_id", record.EventID))
		return err
	}
	return nil
}

func (m *MongoDB) UpdateDeliveryStatus(ctx context.Context, record *models.DeliveryRecord, status models.DeliveryStatus) error {
	filter := bson.M{
		"message_id": record.MessageID,
	}

	update := bson.M{
		"$set": bson.M{
			"status":      status,
			"retry_count": record.RetryCount,
			"updated_at":  time.Now().UTC(),
		},
	}

	_, err := m.deliveries.UpdateOne(ctx, filter, update)
	return err
}

func (m *MongoDB) GetFailedDeliveries(ctx context.Context, provider models.Provider) ([]*models.DeliveryRecord, error) {
	filter := bson.M{
		"provider": provider,
		"status":   models.DeliveryStatusFailed,
	}

	cursor, err := m.deliveries.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*models.DeliveryRecord
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
