package middleware

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"lexmatch.backend/internal/interfaces/http/response"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/redis"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	// LockDuration is the time we hold the lock while processing
	LockDuration = 30 * time.Second
	// RetentionDuration is how long we keep the response
	RetentionDuration = 24 * time.Hour

	idempotencyProcessing = "processing"
)

var (
	redisGet   = redis.Get
	redisSet   = redis.Set
	redisSetNX = redis.SetNX
	redisDel   = redis.Del
	redisIsNil = redis.IsNil
)

type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// cachedResponse is what a completed request leaves behind for replays
type cachedResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key from the same user. Redis errors fail open.
func IdempotencyMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		userID := c.GetString(UserIDKey)
		storageKey := fmt.Sprintf("idempotency:%s:%s", userID, key)
		ctx := c.Request.Context()

		val, err := redisGet(ctx, storageKey)
		switch {
		case err == nil:
			if val == idempotencyProcessing {
				response.ErrorWithError(c, http.StatusConflict, "ERR_IDEMPOTENCY_CONFLICT", "Request already in progress")
				c.Abort()
				return
			}
			var cached cachedResponse
			if err := json.Unmarshal([]byte(val), &cached); err != nil || cached.Status == 0 {
				logger.Warn(ctx, "discarding unreadable idempotency record", zap.String("key", storageKey))
				_ = redisDel(ctx, storageKey)
				break
			}
			c.Header("X-Idempotency-Hit", "true")
			c.Data(cached.Status, "application/json; charset=utf-8", cached.Body)
			c.Abort()
			return
		case !redisIsNil(err):
			logger.Warn(ctx, "idempotency store unavailable, processing without it", zap.Error(err))
			c.Next()
			return
		}

		success, err := redisSetNX(ctx, storageKey, idempotencyProcessing, LockDuration)
		if err != nil || !success {
			response.ErrorWithError(c, http.StatusConflict, "ERR_IDEMPOTENCY_CONFLICT", "Request in progress")
			c.Abort()
			return
		}

		w := &responseWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 300 && json.Valid(w.body.Bytes()) {
			raw, _ := json.Marshal(cachedResponse{Status: status, Body: w.body.Bytes()})
			_ = redisSet(ctx, storageKey, string(raw), RetentionDuration)
			return
		}
		// failed requests may be retried under the same key
		_ = redisDel(ctx, storageKey)
	}
}
