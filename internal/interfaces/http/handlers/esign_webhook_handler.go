package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/infrastructure/esign"
	"lexmatch.backend/internal/interfaces/http/response"
	"lexmatch.backend/internal/usecases"
	"lexmatch.backend/pkg/logger"
)

type envelopeEventService interface {
	ApplyWebhookEvent(ctx context.Context, snap entities.EnvelopeSnapshot) (*usecases.SyncResult, error)
}

// ESignWebhookHandler receives envelope status pushes from the provider
type ESignWebhookHandler struct {
	service envelopeEventService
}

// NewESignWebhookHandler creates a new webhook handler
func NewESignWebhookHandler(service envelopeEventService) *ESignWebhookHandler {
	return &ESignWebhookHandler{service: service}
}

// HandleEnvelopeEvent applies one envelope event. Only retryable failures
// get a non-2xx answer; the provider redelivers on those and nothing else
// would change on redelivery.
// POST /api/v1/webhooks/esign
func (h *ESignWebhookHandler) HandleEnvelopeEvent(c *gin.Context) {
	ctx := c.Request.Context()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, domainerrors.BadRequest("unreadable request body"))
		return
	}
	snap, err := esign.DecodeEnvelope(body)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.service.ApplyWebhookEvent(ctx, snap)
	if err != nil {
		appErr, ok := domainerrors.AsAppError(err)
		if !ok || appErr.Retryable() || appErr.Status >= http.StatusInternalServerError {
			response.Error(c, err)
			return
		}
		logger.Warn(ctx, "envelope event acknowledged without effect",
			zap.String("envelope_id", snap.EnvelopeID),
			zap.String("code", appErr.Code),
			zap.String("reason", appErr.Message),
		)
		c.JSON(http.StatusOK, gin.H{
			"received": true,
			"applied":  false,
			"code":     appErr.Code,
			"message":  appErr.Message,
		})
		return
	}

	out := gin.H{
		"received": true,
		"applied":  true,
		"changed":  res.Changed,
	}
	if res.Warning != "" {
		out["warning"] = res.Warning
	}
	c.JSON(http.StatusOK, out)
}
