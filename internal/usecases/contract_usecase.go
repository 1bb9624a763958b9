package usecases

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/utils"
)

// CreateContractInput is the payload for a new contract. The client is
// always the authenticated caller.
type CreateContractInput struct {
	CaseID   string            `json:"caseId" binding:"required"`
	LawyerID string            `json:"lawyerId" binding:"required"`
	FeeModel entities.FeeModel `json:"feeModel"`
	DocURL   string            `json:"docUrl"`
}

// ListContractsInput filters a contract listing
type ListContractsInput struct {
	Status string
	Page   int
	Limit  int
}

// ContractList is one page of contract views
type ContractList struct {
	Items []*entities.ContractView `json:"items"`
	Meta  utils.PaginationMeta     `json:"meta"`
}

// SyncView is the outcome of a provider sync as seen by the caller
type SyncView struct {
	Contract *entities.ContractView `json:"contract"`
	Changed  bool                   `json:"changed"`
	Warning  string                 `json:"warning,omitempty"`
}

// DocumentRef points at the contract document
type DocumentRef struct {
	DocURL            string `json:"docUrl"`
	EnvelopeID        string `json:"envelopeId,omitempty"`
	ExternallyManaged bool   `json:"externallyManaged"`
}

// ContractUsecase is the boundary consumed by the HTTP layer
type ContractUsecase struct {
	contractRepo   repositories.ContractRepository
	transitionRepo repositories.ContractTransitionRepository
	uow            repositories.UnitOfWork
	coordinator    *SignatureCoordinator
	sync           *SignatureSyncUsecase
	observer       TransitionObserver
	now            func() time.Time
}

// NewContractUsecase creates a new contract usecase
func NewContractUsecase(
	contractRepo repositories.ContractRepository,
	transitionRepo repositories.ContractTransitionRepository,
	uow repositories.UnitOfWork,
	coordinator *SignatureCoordinator,
	sync *SignatureSyncUsecase,
	observer TransitionObserver,
) *ContractUsecase {
	if observer == nil {
		observer = noopObserver{}
	}
	return &ContractUsecase{
		contractRepo:   contractRepo,
		transitionRepo: transitionRepo,
		uow:            uow,
		coordinator:    coordinator,
		sync:           sync,
		observer:       observer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Create validates the fee model and stores a contract awaiting both signatures
func (u *ContractUsecase) Create(ctx context.Context, actor Actor, input CreateContractInput) (*entities.ContractView, error) {
	if strings.TrimSpace(actor.UserID) == "" {
		return nil, domainerrors.Unauthenticated("caller identity is required")
	}

	now := u.now()
	contract, err := entities.NewContract(entities.NewContractParams{
		ID:       utils.GenerateUUIDv7(),
		CaseID:   input.CaseID,
		LawyerID: input.LawyerID,
		ClientID: actor.UserID,
		FeeModel: input.FeeModel,
		DocURL:   input.DocURL,
	}, now)
	if err != nil {
		return nil, err
	}

	created := entities.Transition{
		Event:   entities.ContractEventCreated,
		To:      contract.Status,
		Changed: true,
		Metadata: map[string]string{
			"caseId":  contract.CaseID,
			"feeType": string(contract.FeeModel.Type),
		},
	}
	err = u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.contractRepo.Create(txCtx, contract); err != nil {
			return err
		}
		return u.transitionRepo.Create(txCtx, created.Record(utils.GenerateUUIDv7(), contract.ID, actor.UserID, entities.TransitionSourceAPI, now))
	})
	if err != nil {
		logger.Error(ctx, "create contract failed", zap.Error(err))
		return nil, mapRepoError(err)
	}

	u.observer.ObserveTransition(string(entities.ContractEventCreated), string(entities.TransitionSourceAPI))
	logger.Info(ctx, "contract created",
		zap.String("contract_id", contract.ID.String()),
		zap.String("case_id", contract.CaseID),
		zap.String("fee_type", string(contract.FeeModel.Type)),
	)
	return entities.Project(contract, actor.UserID), nil
}

// Get returns the projected contract. Only the parties and admins may read it.
func (u *ContractUsecase) Get(ctx context.Context, actor Actor, id uuid.UUID) (*entities.ContractView, error) {
	c, err := u.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return entities.Project(c, actor.UserID), nil
}

// List returns the contracts the caller is a party to, newest first.
// Admins see every contract.
func (u *ContractUsecase) List(ctx context.Context, actor Actor, input ListContractsInput) (*ContractList, error) {
	filter := repositories.ContractFilter{}
	if !actor.Admin {
		if actor.UserID == "" {
			return nil, domainerrors.Unauthenticated("caller identity is required")
		}
		filter.PartyID = actor.UserID
	}
	if input.Status != "" {
		status, err := entities.ParseContractStatus(input.Status)
		if err != nil {
			return nil, err
		}
		filter.Status = &status
	}

	page := utils.GetPaginationParams(input.Page, input.Limit)
	filter.Limit = page.Limit
	filter.Offset = page.CalculateOffset()

	contracts, total, err := u.contractRepo.List(ctx, filter)
	if err != nil {
		return nil, mapRepoError(err)
	}

	items := make([]*entities.ContractView, 0, len(contracts))
	for _, c := range contracts {
		items = append(items, entities.Project(c, actor.UserID))
	}
	return &ContractList{
		Items: items,
		Meta:  utils.CalculateMeta(int64(total), page.Page, page.Limit),
	}, nil
}

// Sign records the caller's signature. asRole is optional.
func (u *ContractUsecase) Sign(ctx context.Context, actor Actor, id uuid.UUID, asRole string) (*entities.ContractView, error) {
	var role entities.Role
	if strings.TrimSpace(asRole) != "" {
		parsed, err := entities.ParseRole(asRole)
		if err != nil {
			return nil, err
		}
		role = parsed
	}
	c, _, err := u.coordinator.Sign(ctx, id, actor.UserID, role)
	if err != nil {
		return nil, err
	}
	return entities.Project(c, actor.UserID), nil
}

// Cancel withdraws a contract still awaiting signatures
func (u *ContractUsecase) Cancel(ctx context.Context, actor Actor, id uuid.UUID) (*entities.ContractView, error) {
	c, _, err := u.coordinator.Cancel(ctx, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	return entities.Project(c, actor.UserID), nil
}

// CloseOut marks an active contract as done. Reserved for admins and system callers.
func (u *ContractUsecase) CloseOut(ctx context.Context, actor Actor, id uuid.UUID) (*entities.ContractView, error) {
	if !actor.Admin {
		return nil, domainerrors.Unauthorized("closing a contract requires an administrator")
	}
	c, _, err := u.coordinator.CloseOut(ctx, id, actor.UserID)
	if err != nil {
		return nil, err
	}
	return entities.Project(c, actor.UserID), nil
}

// AttachEnvelope records that the contract was sent out for e-signature
func (u *ContractUsecase) AttachEnvelope(ctx context.Context, actor Actor, id uuid.UUID, envelopeID, docURL string) (*entities.ContractView, error) {
	c, _, err := u.coordinator.AttachEnvelope(ctx, id, actor, strings.TrimSpace(envelopeID), strings.TrimSpace(docURL))
	if err != nil {
		return nil, err
	}
	return entities.Project(c, actor.UserID), nil
}

// SyncExternalStatus mirrors the provider's envelope state onto the contract
func (u *ContractUsecase) SyncExternalStatus(ctx context.Context, actor Actor, id uuid.UUID) (*SyncView, error) {
	if _, err := u.load(ctx, actor, id); err != nil {
		return nil, err
	}
	res, err := u.sync.SyncExternalStatus(ctx, id)
	if err != nil {
		return nil, err
	}
	return &SyncView{
		Contract: entities.Project(res.Contract, actor.UserID),
		Changed:  res.Changed,
		Warning:  res.Warning,
	}, nil
}

// GetDocument returns the contract document reference
func (u *ContractUsecase) GetDocument(ctx context.Context, actor Actor, id uuid.UUID) (*DocumentRef, error) {
	c, err := u.load(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if c.DocURL == "" {
		return nil, domainerrors.NotFound("document not available")
	}
	return &DocumentRef{
		DocURL:            c.DocURL,
		EnvelopeID:        c.EnvelopeID,
		ExternallyManaged: u.sync.IsExternallyManaged(c),
	}, nil
}

// DownloadSignedDocument returns the fully signed document from the provider
func (u *ContractUsecase) DownloadSignedDocument(ctx context.Context, actor Actor, id uuid.UUID) (*SignedDocumentResult, error) {
	if _, err := u.load(ctx, actor, id); err != nil {
		return nil, err
	}
	return u.sync.DownloadSignedDocument(ctx, id)
}

// History returns the contract's audit trail, oldest first
func (u *ContractUsecase) History(ctx context.Context, actor Actor, id uuid.UUID) ([]*entities.ContractTransition, error) {
	if _, err := u.load(ctx, actor, id); err != nil {
		return nil, err
	}
	history, err := u.transitionRepo.ListByContractID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return history, nil
}

func (u *ContractUsecase) load(ctx context.Context, actor Actor, id uuid.UUID) (*entities.Contract, error) {
	c, err := u.contractRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if !actor.Admin && !c.IsParty(actor.UserID) {
		return nil, domainerrors.Unauthorized("user is not a party to this contract")
	}
	return c, nil
}
