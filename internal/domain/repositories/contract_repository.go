package repositories

import (
	"context"

	"github.com/google/uuid"
	"lexmatch.backend/internal/domain/entities"
)

// ContractFilter narrows a contract listing
type ContractFilter struct {
	// PartyID restricts results to contracts where the user is client or lawyer.
	// Empty means no restriction.
	PartyID      string
	Status       *entities.ContractStatus
	WithEnvelope bool
	Limit        int
	Offset       int
}

// ContractRepository is the sole mutation authority for contracts
type ContractRepository interface {
	Create(ctx context.Context, contract *entities.Contract) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.Contract, error)
	GetByEnvelopeID(ctx context.Context, envelopeID string) (*entities.Contract, error)
	List(ctx context.Context, filter ContractFilter) ([]*entities.Contract, int, error)
	// Update writes contract only if the stored version still equals
	// contract.Version, then bumps the version. A stale version yields ErrConflict.
	Update(ctx context.Context, contract *entities.Contract) error
}

// ContractTransitionRepository stores the audit trail of contract mutations
type ContractTransitionRepository interface {
	Create(ctx context.Context, transition *entities.ContractTransition) error
	ListByContractID(ctx context.Context, contractID uuid.UUID) ([]*entities.ContractTransition, error)
}
