package esign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/pkg/logger"
)

// MaxDocumentBytes caps a signed document download
const MaxDocumentBytes = 25 << 20

// Client talks to the e-signature provider's REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a provider client. A zero timeout keeps the http.Client default.
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient replaces the underlying transport (used in tests)
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

type recipient struct {
	Role     string     `json:"role"`
	Status   string     `json:"status"`
	SignedAt *time.Time `json:"signedAt"`
}

// Envelope is the provider's representation of an envelope. The webhook
// payload uses the flat timestamp fields, the REST API lists recipients.
type Envelope struct {
	EnvelopeID     string      `json:"envelopeId"`
	Status         string      `json:"status"`
	ClientSignedAt *time.Time  `json:"clientSignedAt"`
	LawyerSignedAt *time.Time  `json:"lawyerSignedAt"`
	CompletedAt    *time.Time  `json:"completedAt"`
	DocumentURL    string      `json:"documentUrl"`
	Recipients     []recipient `json:"recipients"`
}

// Snapshot normalises the envelope into the domain observation
func (e Envelope) Snapshot() entities.EnvelopeSnapshot {
	snap := entities.EnvelopeSnapshot{
		EnvelopeID:     strings.TrimSpace(e.EnvelopeID),
		Status:         entities.NormalizeEnvelopeStatus(e.Status),
		ClientSignedAt: e.ClientSignedAt,
		LawyerSignedAt: e.LawyerSignedAt,
		CompletedAt:    e.CompletedAt,
		DocumentURL:    strings.TrimSpace(e.DocumentURL),
	}
	for _, r := range e.Recipients {
		if r.SignedAt == nil {
			continue
		}
		role, err := entities.ParseRole(r.Role)
		if err != nil {
			continue
		}
		switch role {
		case entities.RoleClient:
			if snap.ClientSignedAt == nil {
				snap.ClientSignedAt = r.SignedAt
			}
		case entities.RoleLawyer:
			if snap.LawyerSignedAt == nil {
				snap.LawyerSignedAt = r.SignedAt
			}
		}
	}
	return snap
}

// DecodeEnvelope parses a provider envelope document
func DecodeEnvelope(raw []byte) (entities.EnvelopeSnapshot, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return entities.EnvelopeSnapshot{}, domainerrors.BadRequest("malformed envelope payload")
	}
	snap := env.Snapshot()
	if snap.EnvelopeID == "" {
		return entities.EnvelopeSnapshot{}, domainerrors.BadRequest("envelopeId is required")
	}
	if snap.Status == "" {
		return entities.EnvelopeSnapshot{}, domainerrors.BadRequest("status is required")
	}
	return snap, nil
}

// FetchStatus retrieves the current envelope state
func (c *Client) FetchStatus(ctx context.Context, envelopeID string) (*entities.EnvelopeSnapshot, error) {
	resp, err := c.get(ctx, "/envelopes/"+url.PathEscape(envelopeID), "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, domainerrors.Transport("failed to read provider response", err)
	}
	snap, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, domainerrors.ProviderRejected("provider returned an unreadable envelope")
	}
	if snap.EnvelopeID != envelopeID {
		return nil, domainerrors.ProviderRejected(fmt.Sprintf("provider answered for envelope %q", snap.EnvelopeID))
	}
	return &snap, nil
}

// DownloadSignedDocument fetches the completed document
func (c *Client) DownloadSignedDocument(ctx context.Context, envelopeID string) (*entities.SignedDocument, error) {
	resp, err := c.get(ctx, "/envelopes/"+url.PathEscape(envelopeID)+"/document", "application/pdf")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes+1))
	if err != nil {
		return nil, domainerrors.Transport("failed to read signed document", err)
	}
	if len(content) > MaxDocumentBytes {
		return nil, domainerrors.ProviderRejected("signed document exceeds size limit")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	return &entities.SignedDocument{
		EnvelopeID:  envelopeID,
		FileName:    fileName(resp.Header.Get("Content-Disposition"), envelopeID),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func (c *Client) get(ctx context.Context, path, accept string) (*http.Response, error) {
	if c.baseURL == "" {
		return nil, domainerrors.Transport("e-signature provider is not configured", errors.New("empty base url"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, domainerrors.InternalError(err)
	}
	req.Header.Set("Accept", accept)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		logger.Warn(ctx, "esign request failed", zap.String("path", path), zap.Error(err))
		return nil, domainerrors.Transport("e-signature provider unreachable", err)
	}
	logger.Debug(ctx, "esign request",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	resp.Body.Close()
	detail := strings.TrimSpace(string(body))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, domainerrors.NotFound("envelope not found at provider")
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, domainerrors.Transport(
			fmt.Sprintf("e-signature provider returned %d", resp.StatusCode),
			fmt.Errorf("esign: status %d: %s", resp.StatusCode, detail),
		)
	}
	return nil, domainerrors.ProviderRejected(fmt.Sprintf("e-signature provider returned %d", resp.StatusCode))
}

func fileName(disposition, envelopeID string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return envelopeID + ".pdf"
}
