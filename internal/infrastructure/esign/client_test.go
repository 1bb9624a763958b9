package esign

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
)

func TestClient_FetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/envelopes/env-1", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"envelopeId": "env-1",
			"status": "Completed",
			"completedAt": "2026-03-02T09:00:00Z",
			"documentUrl": "https://esign.example.com/envelopes/env-1/document",
			"recipients": [
				{"role": "client", "signedAt": "2026-03-01T12:00:00Z"},
				{"role": "lawyer", "signedAt": null},
				{"role": "witness", "signedAt": "2026-03-01T13:00:00Z"}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "key-1", time.Second)
	snap, err := c.FetchStatus(context.Background(), "env-1")
	require.NoError(t, err)
	assert.Equal(t, entities.EnvelopeStatusCompleted, snap.Status)
	require.NotNil(t, snap.ClientSignedAt)
	assert.Equal(t, time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC), snap.ClientSignedAt.UTC())
	assert.Nil(t, snap.LawyerSignedAt)
	require.NotNil(t, snap.CompletedAt)
	assert.Equal(t, "https://esign.example.com/envelopes/env-1/document", snap.DocumentURL)
}

func TestClient_FetchStatusErrors(t *testing.T) {
	status := http.StatusNotFound
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "", time.Second)
	ctx := context.Background()

	_, err := c.FetchStatus(ctx, "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrNotFound)

	status = http.StatusBadGateway
	_, err = c.FetchStatus(ctx, "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrTransport)
	appErr, ok := domainerrors.AsAppError(err)
	require.True(t, ok)
	assert.True(t, appErr.Retryable())

	status = http.StatusTooManyRequests
	_, err = c.FetchStatus(ctx, "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrTransport)

	status = http.StatusUnauthorized
	_, err = c.FetchStatus(ctx, "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrProviderRejected)
}

func TestClient_FetchStatusRejectsForeignEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"envelopeId":"env-2","status":"sent"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "", time.Second).FetchStatus(context.Background(), "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrProviderRejected)
}

func TestClient_NetworkFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	_, err := NewClient(base, "", 200*time.Millisecond).FetchStatus(context.Background(), "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrTransport)

	_, err = NewClient("", "", time.Second).FetchStatus(context.Background(), "env-1")
	assert.ErrorIs(t, err, domainerrors.ErrTransport)
}

func TestClient_DownloadSignedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/envelopes/env-1/document", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="contract-signed.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.7 signed"))
	}))
	defer srv.Close()

	doc, err := NewClient(srv.URL, "", time.Second).DownloadSignedDocument(context.Background(), "env-1")
	require.NoError(t, err)
	assert.Equal(t, "contract-signed.pdf", doc.FileName)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.Equal(t, []byte("%PDF-1.7 signed"), doc.Content)
	assert.Equal(t, "env-1", doc.EnvelopeID)
}

func TestDecodeEnvelope_WebhookShape(t *testing.T) {
	snap, err := DecodeEnvelope([]byte(`{"envelopeId":"env-9","status":"declined","lawyerSignedAt":"2026-03-01T08:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, entities.EnvelopeStatusDeclined, snap.Status)
	require.NotNil(t, snap.LawyerSignedAt)

	_, err = DecodeEnvelope([]byte(`not json`))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	_, err = DecodeEnvelope([]byte(`{"status":"sent"}`))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
	_, err = DecodeEnvelope([]byte(`{"envelopeId":"env-9"}`))
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	// unknown statuses are passed through for the caller to report
	snap, err = DecodeEnvelope([]byte(`{"envelopeId":"env-9","status":"Archived"}`))
	require.NoError(t, err)
	assert.Equal(t, entities.EnvelopeStatus("archived"), snap.Status)
}

func TestFileNameFallback(t *testing.T) {
	assert.Equal(t, "env-3.pdf", fileName("", "env-3"))
	assert.Equal(t, "env-3.pdf", fileName("attachment", "env-3"))
}
