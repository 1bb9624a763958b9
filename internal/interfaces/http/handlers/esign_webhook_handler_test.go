package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/usecases"
)

type envelopeEventServiceStub struct {
	applyFn func(ctx context.Context, snap entities.EnvelopeSnapshot) (*usecases.SyncResult, error)
}

func (s envelopeEventServiceStub) ApplyWebhookEvent(ctx context.Context, snap entities.EnvelopeSnapshot) (*usecases.SyncResult, error) {
	return s.applyFn(ctx, snap)
}

func TestESignWebhookHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var got entities.EnvelopeSnapshot
	service := envelopeEventServiceStub{
		applyFn: func(_ context.Context, snap entities.EnvelopeSnapshot) (*usecases.SyncResult, error) {
			got = snap
			switch snap.EnvelopeID {
			case "env-unknown":
				return nil, domainerrors.NotFound("no contract is linked to this envelope")
			case "env-active":
				return nil, domainerrors.TerminalState("envelope declined cannot regress a active contract")
			case "env-db":
				return nil, domainerrors.Transport("contract store unavailable", errors.New("conn reset"))
			case "env-odd":
				return &usecases.SyncResult{Warning: `unrecognised envelope status "archived"`}, nil
			}
			return &usecases.SyncResult{Changed: true}, nil
		},
	}
	h := NewESignWebhookHandler(service)
	r := gin.New()
	r.POST("/webhooks/esign", h.HandleEnvelopeEvent)

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/esign", bytes.NewBufferString(body))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(`{"envelopeId":"env-1","status":"Completed","completedAt":"2026-03-01T11:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true,"applied":true,"changed":true}`, w.Body.String())
	assert.Equal(t, entities.EnvelopeStatusCompleted, got.Status)
	require.NotNil(t, got.CompletedAt)

	w = send(`{"envelopeId":"env-odd","status":"archived"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"warning"`)

	w = send(`{"envelopeId":"env-unknown","status":"completed"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"applied":false`)
	assert.Contains(t, w.Body.String(), domainerrors.CodeNotFound)

	w = send(`{"envelopeId":"env-active","status":"declined"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), domainerrors.CodeTerminalState)

	w = send(`{"envelopeId":"env-db","status":"completed"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	assert.Equal(t, http.StatusBadRequest, send(`not json`).Code)
	assert.Equal(t, http.StatusBadRequest, send(`{"status":"completed"}`).Code)
}
