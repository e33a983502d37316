package worker

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/models"
	"github.com/c50bossio/6fb-booking-sub035/internal/storage"
	"github.com/c50bossio/6fb-booking-sub035/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Worker drains validated events from the queue and persists delivery
// records. Events arriving here already passed signature, freshness and
// dedup checks; the worker's retries only cover storage failures.
type Worker struct {
	channel    *amqp.Channel
	db         *storage.MongoDB
	logger     *zap.Logger
	maxRetries int
	baseDelay  time.Duration
}

func NewWorker(channel *amqp.Channel, db *storage.MongoDB, logger *zap.Logger) *Worker {
	return &Worker{
		channel:    channel,
		db:         db,
		logger:     logger,
		maxRetries: 3,
		baseDelay:  10 * time.Second,
	}
}

func (w *Worker) Start(ctx context.Context, queueName string) error {
	msgs, err := w.channel.Consume(
		queueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			var event models.ValidatedEvent
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				w.logger.Error("Failed to unmarshal message",
					zap.Error(err),
					zap.String("message_id", msg.MessageId))
				msg.Nack(false, false)
				continue
			}

			record := &models.DeliveryRecord{
				MessageID:  event.MessageID,
				Provider:   event.Provider,
				EventID:    event.EventID,
				EventType:  event.EventType,
				ReceivedAt: event.ReceivedAt,
				Status:     models.DeliveryStatusPending,
			}

			// Headers win over the body when both are present; they are
			// what the gateway actually routed on.
			if headers := msg.Headers; headers != nil {
				if provider, _ := headers["provider"].(string); provider != "" {
					record.Provider = models.Provider(provider)
				}
				if eventID, _ := headers["event_id"].(string); eventID != "" {
					record.EventID = eventID
				}
			}

			start := time.Now()

			if err := w.processDelivery(ctx, record); err != nil {
				w.handleError(ctx, record, msg, err)
				continue
			}

			metrics.EventsDispatched.WithLabelValues(string(record.Provider), "processed").Inc()
			w.logger.Debug("Processed validated event",
				zap.String("provider", string(record.Provider)),
				zap.String("event_id", record.EventID),
				zap.Float64("duration_seconds", time.Since(start).Seconds()))

			msg.Ack(false)
		}
	}()

	return nil
}

func (w *Worker) processDelivery(ctx context.Context, record *models.DeliveryRecord) error {
	if err := w.db.InsertDelivery(ctx, record); err != nil {
		return err
	}
	return w.db.UpdateDeliveryStatus(ctx, record, models.DeliveryStatusProcessed)
}

func (w *Worker) handleError(ctx context.Context, record *models.DeliveryRecord, msg amqp.Delivery, err error) {
	w.logger.Error("Failed to process validated event",
		zap.Error(err),
		zap.String("provider", string(record.Provider)),
		zap.String("event_id", record.EventID))

	record.RetryCount++
	metrics.DeliveryRetries.WithLabelValues(string(record.Provider)).Inc()

	if record.RetryCount >= w.maxRetries {
		// Max retries reached, mark as failed
		if err := w.db.UpdateDeliveryStatus(ctx, record, models.DeliveryStatusFailed); err != nil {
			w.logger.Error("Failed to update delivery status", zap.Error(err))
		}
		metrics.EventsDispatched.WithLabelValues(string(record.Provider), "failed").Inc()
		msg.Ack(false)
		return
	}

	if err := w.db.UpdateDeliveryStatus(ctx, record, models.DeliveryStatusRetrying); err != nil {
		w.logger.Error("Failed to update delivery status", zap.Error(err))
	}

	// Requeue with delay
	time.Sleep(w.calculateBackoff(record.RetryCount))
	msg.Nack(false, true)
}

func (w *Worker) calculateBackoff(retryCount int) time.Duration {
	// Exponential backoff with jitter
	backoff := float64(w.baseDelay) * math.Pow(2, float64(retryCount-1))
	jitter := rand.Float64()*0.5 + 0.5
	return time.Duration(backoff * jitter)
}
