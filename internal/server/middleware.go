package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/brainspark/engine/internal/auth"
	"github.com/brainspark/engine/internal/logger"
	"github.com/brainspark/engine/internal/ratelimit"
)

const (
	identityKey  = "identity"
	requestIDKey = "requestId"
)

// requestID assigns each request an id for log correlation, honoring an
// inbound X-Request-ID from the platform gateway.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)
		c.Next()
	}
}

// requireAuth verifies the bearer token and attaches the caller
// identity to the gin context.
func requireAuth(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := verifier.Verify(bearerToken(c))
		if err != nil {
			abortError(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// identityFrom returns the verified identity requireAuth attached.
func identityFrom(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*auth.Identity)
	return id
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return h[7:]
	}
	return ""
}

// rateLimit bounds per-user throughput. Runs after requireAuth so the
// key is the verified user id, not a spoofable header.
func rateLimit(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := identityFrom(c)
		if id == nil {
			abortError(c, auth.ErrUnauthenticated)
			return
		}
		if err := limiter.Allow(c.Request.Context(), id.UserID); err != nil {
			abortError(c, err)
			return
		}
		c.Next()
	}
}

// requestLog emits one structured line per request.
func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			"requestId", c.GetString(requestIDKey),
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latencyMs", time.Since(start).Milliseconds(),
		)
	}
}
