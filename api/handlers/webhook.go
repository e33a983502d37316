package handlers

import (
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/dispatch"
	"github.com/c50bossio/6fb-booking-sub035/internal/models"
	"github.com/c50bossio/6fb-booking-sub035/internal/validation"
	"github.com/c50bossio/6fb-booking-sub035/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Provider signature headers as the providers send them.
const (
	HeaderStripeSignature  = "Stripe-Signature"
	HeaderTwilioSignature  = "X-Twilio-Signature"
	HeaderGenericSignature = "X-Signature"
	HeaderGenericEventID   = "X-Event-Id"
	HeaderGenericEventType = "X-Event-Type"
)

// WebhookHandler terminates provider webhook endpoints. It reads the raw
// body (the bytes that were signed), runs the validation service, and
// dispatches first-seen accepted events. Duplicates still get a success
// answer so the provider stops retrying, but trigger no dispatch.
type WebhookHandler struct {
	logger      *zap.Logger
	service     *validation.Service
	dispatcher  dispatch.Dispatcher
	rateLimiter *RateLimiter
}

func NewWebhookHandler(logger *zap.Logger, service *validation.Service, dispatcher dispatch.Dispatcher) *WebhookHandler {
	return &WebhookHandler{
		logger:      logger,
		service:     service,
		dispatcher:  dispatcher,
		rateLimiter: NewRateLimiter(100, 50),
	}
}

// HandleStripe processes Stripe deliveries: timestamped HMAC-SHA256
// envelope in Stripe-Signature, JSON body carrying id and type.
func (h *WebhookHandler) HandleStripe(c *gin.Context) {
	h.handle(c, func(body []byte) validation.Request {
		return validation.Request{
			Provider:        models.ProviderStripe,
			Body:            body,
			SignatureHeader: c.GetHeader(HeaderStripeSignature),
			ClientIP:        c.ClientIP(),
		}
	})
}

// HandleTwilio processes Twilio deliveries: HMAC-SHA1 over the registered
// URL plus sorted form fields, signature in X-Twilio-Signature.
func (h *WebhookHandler) HandleTwilio(c *gin.Context) {
	h.handle(c, func(body []byte) validation.Request {
		values, err := url.ParseQuery(string(body))
		if err != nil {
			values = url.Values{}
		}
		fields := make(map[string]string, len(values))
		for k := range values {
			fields[k] = values.Get(k)
		}
		return validation.Request{
			Provider:        models.ProviderTwilio,
			Body:            body,
			SignatureHeader: c.GetHeader(HeaderTwilioSignature),
			FormFields:      fields,
			ClientIP:        c.ClientIP(),
		}
	})
}

// HandleGeneric processes generic HMAC deliveries: HMAC-SHA256 over the raw
// body in X-Signature, event identity in headers.
func (h *WebhookHandler) HandleGeneric(c *gin.Context) {
	h.handle(c, func(body []byte) validation.Request {
		return validation.Request{
			Provider:        models.ProviderGeneric,
			Body:            body,
			SignatureHeader: c.GetHeader(HeaderGenericSignature),
			EventIDHeader:   c.GetHeader(HeaderGenericEventID),
			EventTypeHeader: c.GetHeader(HeaderGenericEventType),
			ClientIP:        c.ClientIP(),
		}
	})
}

func (h *WebhookHandler) handle(c *gin.Context, buildRequest func(body []byte) validation.Request) {
	start := time.Now()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Failed to read request body"})
		return
	}

	req := buildRequest(body)
	provider := string(req.Provider)
	metrics.WebhookReceived.WithLabelValues(provider).Inc()

	if !h.rateLimiter.AllowRequest(provider) {
		metrics.RateLimitExceeded.WithLabelValues(provider).Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
		return
	}

	result := h.service.Validate(c.Request.Context(), req)

	metrics.ValidationTime.WithLabelValues(provider).Observe(time.Since(start).Seconds())

	if !result.Accepted {
		h.renderRejection(c, provider, result.Reason)
		return
	}

	metrics.WebhookValidated.WithLabelValues(provider, "accepted").Inc()

	if result.Duplicate {
		metrics.DuplicateDeliveries.WithLabelValues(provider).Inc()
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"event_id":  result.Event.EventID,
			"duplicate": true,
		})
		return
	}

	event := models.ValidatedEvent{
		MessageID:  uuid.New().String(),
		Provider:   result.Event.Provider,
		EventID:    result.Event.EventID,
		EventType:  result.Event.EventType,
		Payload:    body,
		ReceivedAt: result.Event.ReceivedAt,
	}

	if err := h.dispatcher.Dispatch(c.Request.Context(), event); err != nil {
		metrics.EventsDispatched.WithLabelValues(provider, "failed").Inc()
		h.logger.Error("Failed to dispatch validated event",
			zap.Error(err),
			zap.String("provider", provider),
			zap.String("event_id", event.EventID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	metrics.EventsDispatched.WithLabelValues(provider, "published").Inc()

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"event_id":  event.EventID,
		"duplicate": false,
	})
}

func (h *WebhookHandler) renderRejection(c *gin.Context, provider string, reason models.RejectReason) {
	metrics.WebhookValidated.WithLabelValues(provider, "rejected").Inc()
	metrics.SignatureFailures.WithLabelValues(provider, string(reason)).Inc()

	switch reason {
	case models.ReasonStoreUnavailable:
		// 5xx makes the provider retry once the store is back
		metrics.StoreErrors.WithLabelValues(provider).Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Temporarily unable to process event"})
	case models.ReasonBodyMismatch:
		c.JSON(http.StatusConflict, gin.H{"error": "Event conflicts with a previously seen delivery"})
	default:
		// Signature and freshness failures must not be retried
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook request"})
	}
}
