package entities

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	domainerrors "lexmatch.backend/internal/domain/errors"
)

// ContractStatus represents the status of a service contract
type ContractStatus string

const (
	ContractStatusPendingSignature ContractStatus = "pending-signature"
	ContractStatusActive           ContractStatus = "active"
	ContractStatusClosed           ContractStatus = "closed"
	ContractStatusCanceled         ContractStatus = "canceled"
)

// ParseContractStatus converts a raw string into a known status
func ParseContractStatus(raw string) (ContractStatus, error) {
	switch s := ContractStatus(strings.TrimSpace(strings.ToLower(raw))); s {
	case ContractStatusPendingSignature, ContractStatusActive, ContractStatusClosed, ContractStatusCanceled:
		return s, nil
	}
	return "", domainerrors.Validation(fmt.Sprintf("unknown contract status %q", raw))
}

// IsTerminal reports whether no further transition is permitted
func (s ContractStatus) IsTerminal() bool {
	return s == ContractStatusClosed || s == ContractStatusCanceled
}

// Role is one of the two parties to a contract
type Role string

const (
	RoleClient Role = "client"
	RoleLawyer Role = "lawyer"
)

// ParseRole converts a raw string into a Role
func ParseRole(raw string) (Role, error) {
	switch r := Role(strings.TrimSpace(strings.ToLower(raw))); r {
	case RoleClient, RoleLawyer:
		return r, nil
	}
	return "", domainerrors.Validation(fmt.Sprintf("unknown role %q", raw))
}

// Contract is a service contract between a client and a lawyer for a case
type Contract struct {
	ID           uuid.UUID      `json:"id"`
	CaseID       string         `json:"caseId"`
	LawyerID     string         `json:"lawyerId"`
	ClientID     string         `json:"clientId"`
	Status       ContractStatus `json:"status"`
	FeeModel     FeeModel       `json:"feeModel"`
	SignedClient *time.Time     `json:"signedClient"`
	SignedLawyer *time.Time     `json:"signedLawyer"`
	DocURL       string         `json:"docUrl,omitempty"`
	EnvelopeID   string         `json:"envelopeId,omitempty"`
	Version      int            `json:"version"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// NewContractParams holds the inputs for a new contract
type NewContractParams struct {
	ID       uuid.UUID
	CaseID   string
	LawyerID string
	ClientID string
	FeeModel FeeModel
	DocURL   string
}

// NewContract validates the parameters and returns a contract awaiting both signatures.
func NewContract(p NewContractParams, now time.Time) (*Contract, error) {
	caseID := strings.TrimSpace(p.CaseID)
	lawyerID := strings.TrimSpace(p.LawyerID)
	clientID := strings.TrimSpace(p.ClientID)

	switch {
	case p.ID == uuid.Nil:
		return nil, domainerrors.Validation("contract id is required")
	case caseID == "":
		return nil, domainerrors.Validation("caseId is required")
	case lawyerID == "":
		return nil, domainerrors.Validation("lawyerId is required")
	case clientID == "":
		return nil, domainerrors.Validation("clientId is required")
	case lawyerID == clientID:
		return nil, domainerrors.Validation("client and lawyer must be different users")
	}
	if err := p.FeeModel.Validate(); err != nil {
		return nil, err
	}

	return &Contract{
		ID:        p.ID,
		CaseID:    caseID,
		LawyerID:  lawyerID,
		ClientID:  clientID,
		Status:    ContractStatusPendingSignature,
		FeeModel:  p.FeeModel.clone(),
		DocURL:    strings.TrimSpace(p.DocURL),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// RoleOf resolves which party userID is; ok is false for uninvolved users.
func (c *Contract) RoleOf(userID string) (Role, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == c.ClientID:
		return RoleClient, true
	case userID == c.LawyerID:
		return RoleLawyer, true
	}
	return "", false
}

// IsParty reports whether userID is the client or the lawyer
func (c *Contract) IsParty(userID string) bool {
	_, ok := c.RoleOf(userID)
	return ok
}

// SignedAt returns the signature timestamp for role, nil when unsigned
func (c *Contract) SignedAt(role Role) *time.Time {
	switch role {
	case RoleClient:
		return c.SignedClient
	case RoleLawyer:
		return c.SignedLawyer
	}
	return nil
}

// CheckInvariants verifies the entity-level rules that every persisted state must satisfy.
func (c *Contract) CheckInvariants() error {
	if _, err := ParseContractStatus(string(c.Status)); err != nil {
		return err
	}
	// closed is only reachable from active, canceled only from pending-signature
	bothSigned := c.SignedClient != nil && c.SignedLawyer != nil
	switch c.Status {
	case ContractStatusActive, ContractStatusClosed:
		if !bothSigned {
			return domainerrors.InvalidTransition(fmt.Sprintf("%s contract must be signed by both parties", c.Status))
		}
	case ContractStatusPendingSignature, ContractStatusCanceled:
		if bothSigned {
			return domainerrors.InvalidTransition(fmt.Sprintf("%s contract cannot carry both signatures", c.Status))
		}
	}
	return c.FeeModel.Validate()
}

// Clone returns a deep copy
func (c *Contract) Clone() *Contract {
	out := *c
	out.FeeModel = c.FeeModel.clone()
	out.SignedClient = cloneTime(c.SignedClient)
	out.SignedLawyer = cloneTime(c.SignedLawyer)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
