package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SecurityMiddleware guards the webhook endpoints before any signature work
// happens: request size and content type. Authentication itself is the
// signature check downstream; API keys play no role on these routes.
type SecurityMiddleware struct {
	logger      *zap.Logger
	maxBodySize int64
}

func NewSecurityMiddleware(logger *zap.Logger, maxBodySize int64) *SecurityMiddleware {
	if maxBodySize <= 0 {
		maxBodySize = 1 << 20 // 1MB, far above any provider payload
	}
	return &SecurityMiddleware{
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// LimitBodySize caps the request body. An oversized body fails on read in
// the handler with a 413 from this wrapper.
func (m *SecurityMiddleware) LimitBodySize() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > m.maxBodySize {
			m.logger.Warn("Oversized webhook payload",
				zap.Int64("content_length", c.Request.ContentLength),
				zap.String("ip", c.ClientIP()))
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Payload too large"})
			c.Abort()
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, m.maxBodySize)
		c.Next()
	}
}

// RequireContentType enforces the content type a provider actually sends:
// JSON for Stripe and generic HMAC, form encoding for Twilio.
func (m *SecurityMiddleware) RequireContentType(prefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.GetHeader("Content-Type"), prefix) {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "Unsupported content type"})
			c.Abort()
			return
		}

		if c.Request.Body == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Empty request body"})
			c.Abort()
			return
		}

		c.Next()
	}
}
