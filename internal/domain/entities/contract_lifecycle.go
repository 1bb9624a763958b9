package entities

import (
	"fmt"
	"time"

	domainerrors "lexmatch.backend/internal/domain/errors"
)

// The transition methods below never mutate the receiver. They return the
// next state (a copy when something changed, the receiver otherwise) so a
// rejected or failed write leaves the caller's value untouched.

// CanSign reports whether role may still sign: the contract is awaiting
// signatures and that role has not signed yet.
func (c *Contract) CanSign(role Role) bool {
	if c.Status != ContractStatusPendingSignature {
		return false
	}
	switch role {
	case RoleClient:
		return c.SignedClient == nil
	case RoleLawyer:
		return c.SignedLawyer == nil
	}
	return false
}

// Sign records role's signature at the given time. Signing a role that has
// already signed is a no-op. The second signature activates the contract.
func (c *Contract) Sign(role Role, at time.Time) (*Contract, Transition, error) {
	if role != RoleClient && role != RoleLawyer {
		return c, Transition{}, domainerrors.Validation(fmt.Sprintf("unknown role %q", role))
	}
	if c.Status.IsTerminal() {
		return c, Transition{}, terminalError(c.Status)
	}
	if c.SignedAt(role) != nil {
		return c, Transition{Event: ContractEventSigned, From: c.Status, To: c.Status, Role: role}, nil
	}
	if !c.CanSign(role) {
		return c, Transition{}, domainerrors.InvalidTransition(fmt.Sprintf("contract in status %s cannot be signed", c.Status))
	}

	next := c.Clone()
	ts := at
	switch role {
	case RoleClient:
		next.SignedClient = &ts
	case RoleLawyer:
		next.SignedLawyer = &ts
	}
	if next.SignedClient != nil && next.SignedLawyer != nil {
		next.Status = ContractStatusActive
	}
	next.UpdatedAt = at

	return next, Transition{
		Event:   ContractEventSigned,
		From:    c.Status,
		To:      next.Status,
		Role:    role,
		Changed: true,
	}, nil
}

// Cancel moves a contract awaiting signatures to canceled. Any other status is rejected.
func (c *Contract) Cancel(at time.Time) (*Contract, Transition, error) {
	switch c.Status {
	case ContractStatusPendingSignature:
	case ContractStatusActive:
		return c, Transition{}, domainerrors.TerminalState("an active contract can no longer be canceled")
	default:
		return c, Transition{}, terminalError(c.Status)
	}

	next := c.Clone()
	next.Status = ContractStatusCanceled
	next.UpdatedAt = at
	return next, Transition{Event: ContractEventCanceled, From: c.Status, To: next.Status, Changed: true}, nil
}

// CloseOut completes an active contract
func (c *Contract) CloseOut(at time.Time) (*Contract, Transition, error) {
	switch c.Status {
	case ContractStatusActive:
	case ContractStatusPendingSignature:
		return c, Transition{}, domainerrors.InvalidTransition("only an active contract can be closed")
	default:
		return c, Transition{}, terminalError(c.Status)
	}

	next := c.Clone()
	next.Status = ContractStatusClosed
	next.UpdatedAt = at
	return next, Transition{Event: ContractEventClosed, From: c.Status, To: next.Status, Changed: true}, nil
}

// AttachEnvelope links the contract to a provider envelope and, optionally,
// its document. Both references are write-once.
func (c *Contract) AttachEnvelope(envelopeID, docURL string, at time.Time) (*Contract, Transition, error) {
	if envelopeID == "" {
		return c, Transition{}, domainerrors.Validation("envelopeId is required")
	}
	if c.Status.IsTerminal() {
		return c, Transition{}, terminalError(c.Status)
	}
	if c.Status != ContractStatusPendingSignature {
		return c, Transition{}, domainerrors.InvalidTransition("an envelope can only be attached while signatures are pending")
	}
	if c.EnvelopeID != "" && c.EnvelopeID != envelopeID {
		return c, Transition{}, domainerrors.Conflict("contract is already linked to another envelope")
	}
	if docURL != "" && c.DocURL != "" && c.DocURL != docURL {
		return c, Transition{}, domainerrors.Conflict("contract document is already set")
	}
	if c.EnvelopeID == envelopeID && (docURL == "" || c.DocURL == docURL) {
		return c, Transition{Event: ContractEventEnvelopeAttached, From: c.Status, To: c.Status}, nil
	}

	next := c.Clone()
	next.EnvelopeID = envelopeID
	if docURL != "" {
		next.DocURL = docURL
	}
	next.UpdatedAt = at
	return next, Transition{
		Event:    ContractEventEnvelopeAttached,
		From:     c.Status,
		To:       next.Status,
		Changed:  true,
		Metadata: map[string]string{"envelopeId": envelopeID},
	}, nil
}

// ApplyEnvelope mirrors a provider snapshot onto the contract. State only
// moves forward: completion activates, decline/void cancels a contract that
// is still awaiting signatures, and nothing ever regresses an active or
// closed contract. Unrecognised statuses yield an ExternalSyncWarning and no
// change. Re-applying the same snapshot is a no-op.
func (c *Contract) ApplyEnvelope(snap EnvelopeSnapshot, now time.Time) (*Contract, Transition, error) {
	if c.EnvelopeID != "" && snap.EnvelopeID != "" && snap.EnvelopeID != c.EnvelopeID {
		return c, Transition{}, domainerrors.Validation("envelope does not belong to this contract")
	}
	noop := Transition{From: c.Status, To: c.Status}

	switch snap.Status {
	case EnvelopeStatusSent, EnvelopeStatusDelivered:
		return c, noop, nil

	case EnvelopeStatusCompleted:
		noop.Event = ContractEventEnvelopeComplete
		switch c.Status {
		case ContractStatusActive, ContractStatusClosed:
			return c, noop, nil
		case ContractStatusCanceled:
			return c, Transition{}, domainerrors.TerminalState("envelope completed but the contract is already canceled")
		}
		next := c.Clone()
		if next.SignedClient == nil {
			next.SignedClient = firstTime(now, snap.ClientSignedAt, snap.CompletedAt)
		}
		if next.SignedLawyer == nil {
			next.SignedLawyer = firstTime(now, snap.LawyerSignedAt, snap.CompletedAt)
		}
		if next.DocURL == "" && snap.DocumentURL != "" {
			next.DocURL = snap.DocumentURL
		}
		if next.EnvelopeID == "" {
			next.EnvelopeID = snap.EnvelopeID
		}
		next.Status = ContractStatusActive
		next.UpdatedAt = now
		return next, Transition{
			Event:    ContractEventEnvelopeComplete,
			From:     c.Status,
			To:       next.Status,
			Changed:  true,
			Metadata: map[string]string{"envelopeId": next.EnvelopeID},
		}, nil

	case EnvelopeStatusDeclined, EnvelopeStatusVoided:
		event := ContractEventEnvelopeDeclined
		if snap.Status == EnvelopeStatusVoided {
			event = ContractEventEnvelopeVoided
		}
		noop.Event = event
		switch c.Status {
		case ContractStatusCanceled:
			return c, noop, nil
		case ContractStatusActive, ContractStatusClosed:
			return c, Transition{}, domainerrors.TerminalState(fmt.Sprintf("envelope %s cannot regress a %s contract", snap.Status, c.Status))
		}
		next := c.Clone()
		next.Status = ContractStatusCanceled
		next.UpdatedAt = now
		return next, Transition{
			Event:    event,
			From:     c.Status,
			To:       next.Status,
			Changed:  true,
			Metadata: map[string]string{"envelopeId": snap.EnvelopeID},
		}, nil
	}

	return c, noop, domainerrors.ExternalSyncWarning(fmt.Sprintf("unrecognised envelope status %q", snap.Status))
}

func terminalError(status ContractStatus) error {
	return domainerrors.TerminalState(fmt.Sprintf("contract is %s and can no longer change", status))
}

// firstTime returns a copy of the first non-nil candidate, else fallback.
func firstTime(fallback time.Time, candidates ...*time.Time) *time.Time {
	for _, c := range candidates {
		if c != nil {
			t := *c
			return &t
		}
	}
	return &fallback
}
