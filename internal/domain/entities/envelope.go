package entities

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EnvelopeStatus is the lifecycle state reported by the e-signature provider
type EnvelopeStatus string

const (
	EnvelopeStatusSent      EnvelopeStatus = "sent"
	EnvelopeStatusDelivered EnvelopeStatus = "delivered"
	EnvelopeStatusCompleted EnvelopeStatus = "completed"
	EnvelopeStatusDeclined  EnvelopeStatus = "declined"
	EnvelopeStatusVoided    EnvelopeStatus = "voided"
)

// NormalizeEnvelopeStatus lowercases and trims a provider status. Unknown
// values are kept as-is so they can be reported.
func NormalizeEnvelopeStatus(raw string) EnvelopeStatus {
	return EnvelopeStatus(strings.ToLower(strings.TrimSpace(raw)))
}

// EnvelopeSnapshot is one observation of an external envelope
type EnvelopeSnapshot struct {
	EnvelopeID     string         `json:"envelopeId"`
	Status         EnvelopeStatus `json:"status"`
	ClientSignedAt *time.Time     `json:"clientSignedAt,omitempty"`
	LawyerSignedAt *time.Time     `json:"lawyerSignedAt,omitempty"`
	CompletedAt    *time.Time     `json:"completedAt,omitempty"`
	DocumentURL    string         `json:"documentUrl,omitempty"`
}

// SignedDocument is the fully signed artifact downloaded from the provider
type SignedDocument struct {
	EnvelopeID  string `json:"envelopeId"`
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Content     []byte `json:"-"`
}

// IsExternallyManaged reports whether the contract's document lives with the
// e-signature provider rather than being rendered locally. providerHost is
// the host the provider serves documents from; it is compared, never dialed.
func IsExternallyManaged(c *Contract, providerHost string) bool {
	if c == nil {
		return false
	}
	if c.EnvelopeID != "" {
		return true
	}
	if c.DocURL == "" || providerHost == "" {
		return false
	}
	u, err := url.Parse(c.DocURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), providerHost)
}

// TransitionSource identifies who drove a transition
type TransitionSource string

const (
	TransitionSourceAPI      TransitionSource = "api"
	TransitionSourceProvider TransitionSource = "provider"
	TransitionSourceSystem   TransitionSource = "system"
)

// ContractEvent names an effective mutation of a contract
type ContractEvent string

const (
	ContractEventCreated          ContractEvent = "created"
	ContractEventSigned           ContractEvent = "signed"
	ContractEventCanceled         ContractEvent = "canceled"
	ContractEventClosed           ContractEvent = "closed"
	ContractEventEnvelopeAttached ContractEvent = "envelope_attached"
	ContractEventEnvelopeComplete ContractEvent = "envelope_completed"
	ContractEventEnvelopeDeclined ContractEvent = "envelope_declined"
	ContractEventEnvelopeVoided   ContractEvent = "envelope_voided"
)

// Transition describes the outcome of applying an operation to a contract.
// Changed is false for idempotent no-ops, which are never persisted.
type Transition struct {
	Event    ContractEvent
	From     ContractStatus
	To       ContractStatus
	Role     Role
	Changed  bool
	Metadata map[string]string
}

// ContractTransition is one row of a contract's audit trail
type ContractTransition struct {
	ID         uuid.UUID         `json:"id"`
	ContractID uuid.UUID         `json:"contractId"`
	FromStatus ContractStatus    `json:"fromStatus,omitempty"`
	ToStatus   ContractStatus    `json:"toStatus"`
	Event      ContractEvent     `json:"event"`
	ActorID    string            `json:"actorId,omitempty"`
	Source     TransitionSource  `json:"source"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Record turns a transition into an audit row
func (t Transition) Record(id, contractID uuid.UUID, actorID string, source TransitionSource, at time.Time) *ContractTransition {
	meta := map[string]string{}
	for k, v := range t.Metadata {
		meta[k] = v
	}
	if t.Role != "" {
		meta["role"] = string(t.Role)
	}
	return &ContractTransition{
		ID:         id,
		ContractID: contractID,
		FromStatus: t.From,
		ToStatus:   t.To,
		Event:      t.Event,
		ActorID:    actorID,
		Source:     source,
		Metadata:   meta,
		CreatedAt:  at,
	}
}
