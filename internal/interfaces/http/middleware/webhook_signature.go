package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/interfaces/http/response"
	"lexmatch.backend/pkg/logger"
)

const (
	SignatureHeader = "X-Signature"
	// MaxWebhookBody caps how much of a webhook body is read
	MaxWebhookBody = 1 << 20
)

// WebhookSignatureMiddleware checks the hex HMAC-SHA256 of the raw body
// against X-Signature. An optional "sha256=" prefix is accepted. The body is
// restored for the handler.
func WebhookSignatureMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if secret == "" {
			logger.Error(ctx, "webhook secret not configured, rejecting delivery")
			response.Abort(c, domainerrors.Unauthenticated("webhook signature cannot be verified"))
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxWebhookBody+1))
		if err != nil {
			response.Abort(c, domainerrors.BadRequest("unreadable request body"))
			return
		}
		if len(body) > MaxWebhookBody {
			response.Abort(c, domainerrors.BadRequest("request body too large"))
			return
		}

		if !ValidSignature(secret, body, c.GetHeader(SignatureHeader)) {
			logger.Warn(ctx, "webhook signature mismatch", zap.String("path", c.Request.URL.Path))
			response.Abort(c, domainerrors.Unauthenticated("invalid webhook signature"))
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}

// ValidSignature compares the signature header against the body in constant time
func ValidSignature(secret string, body []byte, header string) bool {
	got := strings.TrimPrefix(strings.TrimSpace(header), "sha256=")
	if got == "" {
		return false
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, Sign(secret, body))
}

// Sign returns the raw HMAC-SHA256 of body under secret
func Sign(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}
