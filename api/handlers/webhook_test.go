package handlers

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/internal/audit"
	"github.com/c50bossio/6fb-booking-sub035/internal/idempotency"
	"github.com/c50bossio/6fb-booking-sub035/internal/models"
	"github.com/c50bossio/6fb-booking-sub035/internal/replay"
	"github.com/c50bossio/6fb-booking-sub035/internal/validation"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, event models.ValidatedEvent) error {
	args := m.Called(event)
	return args.Error(0)
}

func (m *MockDispatcher) Close() error {
	return nil
}

const testStripeSecret = "whsec_handler_test"

func signStripe(t *testing.T, payload []byte, ts int64) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testStripeSecret))
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func newTestHandler(dispatcher *MockDispatcher) *WebhookHandler {
	logger := zap.NewNop()
	providers := map[models.Provider]validation.ProviderConfig{
		models.ProviderStripe: {Secret: testStripeSecret},
	}
	service := validation.NewService(
		providers,
		replay.NewGuard(300, 60),
		idempotency.NewMemoryStore(),
		audit.NewMemorySink(),
		48*time.Hour,
		logger,
	)
	return NewWebhookHandler(logger, service, dispatcher)
}

func TestHandleStripe(t *testing.T) {
	gin.SetMode(gin.TestMode)
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)

	tests := []struct {
		name       string
		signature  func(t *testing.T) string
		setupMock  func(*MockDispatcher)
		wantStatus int
	}{
		{
			name: "valid delivery is dispatched",
			signature: func(t *testing.T) string {
				return signStripe(t, payload, time.Now().Unix())
			},
			setupMock: func(m *MockDispatcher) {
				m.On("Dispatch", mock.MatchedBy(func(e models.ValidatedEvent) bool {
					return e.Provider == models.ProviderStripe && e.EventID == "evt_1"
				})).Return(nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "forged signature rejected without dispatch",
			signature: func(t *testing.T) string {
				return fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix())
			},
			setupMock:  func(m *MockDispatcher) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "stale timestamp rejected without dispatch",
			signature: func(t *testing.T) string {
				return signStripe(t, payload, time.Now().Unix()-600)
			},
			setupMock:  func(m *MockDispatcher) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "missing signature header rejected",
			signature: func(t *testing.T) string {
				return ""
			},
			setupMock:  func(m *MockDispatcher) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockDispatcher := new(MockDispatcher)
			tt.setupMock(mockDispatcher)

			handler := newTestHandler(mockDispatcher)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
			req.Header.Set("Content-Type", "application/json")
			if sig := tt.signature(t); sig != "" {
				req.Header.Set(HeaderStripeSignature, sig)
			}

			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = req

			handler.HandleStripe(c)

			assert.Equal(t, tt.wantStatus, w.Code)
			mockDispatcher.AssertExpectations(t)
		})
	}
}

func TestHandleStripeDuplicateNotRedispatched(t *testing.T) {
	gin.SetMode(gin.TestMode)
	payload := []byte(`{"id":"evt_dup","type":"payment_intent.succeeded"}`)
	sig := signStripe(t, payload, time.Now().Unix())

	mockDispatcher := new(MockDispatcher)
	mockDispatcher.On("Dispatch", mock.Anything).Return(nil).Once()

	handler := newTestHandler(mockDispatcher)

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderStripeSignature, sig)
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		handler.HandleStripe(c)
		return w
	}

	// First delivery dispatches
	w := send()
	require.Equal(t, http.StatusOK, w.Code)

	// The retry still gets a success so the provider stops resending, but
	// the dispatcher must not fire again: the Once() above enforces it.
	w = send()
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["duplicate"])

	mockDispatcher.AssertExpectations(t)
}

func TestHandleStripeDispatcherFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)
	payload := []byte(`{"id":"evt_err","type":"payment_intent.succeeded"}`)

	mockDispatcher := new(MockDispatcher)
	mockDispatcher.On("Dispatch", mock.Anything).Return(assert.AnError)

	handler := newTestHandler(mockDispatcher)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderStripeSignature, signStripe(t, payload, time.Now().Unix()))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req

	handler.HandleStripe(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	mockDispatcher.AssertExpectations(t)
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(3, 0.001)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.AllowRequest("stripe"), "request %d within burst", i)
	}
	assert.False(t, rl.AllowRequest("stripe"), "burst exhausted")

	// Other providers have independent buckets
	assert.True(t, rl.AllowRequest("twilio"))
}
