package usecases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/pkg/logger"
)

// Sync outcomes reported to the SyncObserver
const (
	SyncOutcomeChanged   = "changed"
	SyncOutcomeUnchanged = "unchanged"
	SyncOutcomeWarning   = "warning"
	SyncOutcomeFailed    = "failed"
)

// EnvelopeProvider is the external e-signature service
type EnvelopeProvider interface {
	FetchStatus(ctx context.Context, envelopeID string) (*entities.EnvelopeSnapshot, error)
	DownloadSignedDocument(ctx context.Context, envelopeID string) (*entities.SignedDocument, error)
}

// DocumentArchive keeps a copy of every downloaded signed document
type DocumentArchive interface {
	Store(ctx context.Context, contractID uuid.UUID, doc *entities.SignedDocument) (string, error)
}

// SyncObserver counts sync outcomes per trigger
type SyncObserver interface {
	ObserveSync(trigger, outcome string)
}

// SyncResult is the outcome of mirroring the provider onto a contract
type SyncResult struct {
	Contract *entities.Contract
	Changed  bool
	Warning  string
}

// SignedDocumentResult is a downloaded signed document and where it was archived
type SignedDocumentResult struct {
	Document   *entities.SignedDocument
	ArchiveKey string
}

// SignatureSyncUsecase reconciles contracts with the e-signature provider
type SignatureSyncUsecase struct {
	contractRepo repositories.ContractRepository
	coordinator  *SignatureCoordinator
	provider     EnvelopeProvider
	archive      DocumentArchive
	observer     SyncObserver
	providerHost string

	syncs     singleflight.Group
	downloads singleflight.Group
}

// NewSignatureSyncUsecase creates the sync adapter. archive and observer may be nil.
func NewSignatureSyncUsecase(
	contractRepo repositories.ContractRepository,
	coordinator *SignatureCoordinator,
	provider EnvelopeProvider,
	archive DocumentArchive,
	observer SyncObserver,
	providerHost string,
) *SignatureSyncUsecase {
	return &SignatureSyncUsecase{
		contractRepo: contractRepo,
		coordinator:  coordinator,
		provider:     provider,
		archive:      archive,
		observer:     observer,
		providerHost: providerHost,
	}
}

// IsExternallyManaged reports whether the contract's document lives with the provider
func (u *SignatureSyncUsecase) IsExternallyManaged(c *entities.Contract) bool {
	return entities.IsExternallyManaged(c, u.providerHost)
}

// SyncExternalStatus pulls the envelope state for a contract and applies it
func (u *SignatureSyncUsecase) SyncExternalStatus(ctx context.Context, contractID uuid.UUID) (*SyncResult, error) {
	return u.Sync(ctx, contractID, SyncTriggerAPI)
}

// Sync is SyncExternalStatus with an explicit trigger label. Concurrent
// calls for the same contract share one provider round trip.
func (u *SignatureSyncUsecase) Sync(ctx context.Context, contractID uuid.UUID, trigger string) (*SyncResult, error) {
	v, shared, err := joinFlight(ctx, &u.syncs, contractID.String(), func(runCtx context.Context) (interface{}, error) {
		return u.syncOnce(runCtx, contractID, trigger)
	})
	if shared {
		logger.Debug(ctx, "sync collapsed with an in-flight call", zap.String("contract_id", contractID.String()))
	}
	if err != nil {
		return nil, err
	}
	return v.(*SyncResult), nil
}

func (u *SignatureSyncUsecase) syncOnce(ctx context.Context, contractID uuid.UUID, trigger string) (*SyncResult, error) {
	ctx = logger.WithContractID(ctx, contractID.String())

	c, err := u.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		u.observe(trigger, SyncOutcomeFailed)
		return nil, mapRepoError(err)
	}
	if c.EnvelopeID == "" {
		return nil, domainerrors.Validation("contract is not linked to an e-signature envelope")
	}

	snap, err := u.provider.FetchStatus(ctx, c.EnvelopeID)
	if err != nil {
		u.observe(trigger, SyncOutcomeFailed)
		logger.Warn(ctx, "fetch envelope status failed", zap.String("envelope_id", c.EnvelopeID), zap.Error(err))
		return nil, err
	}

	return u.apply(ctx, contractID, *snap, trigger)
}

// ApplyWebhookEvent applies a snapshot pushed by the provider
func (u *SignatureSyncUsecase) ApplyWebhookEvent(ctx context.Context, snap entities.EnvelopeSnapshot) (*SyncResult, error) {
	if snap.EnvelopeID == "" {
		return nil, domainerrors.Validation("envelopeId is required")
	}
	c, err := u.contractRepo.GetByEnvelopeID(ctx, snap.EnvelopeID)
	if err != nil {
		u.observe(SyncTriggerWebhook, SyncOutcomeFailed)
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("no contract is linked to this envelope")
		}
		return nil, mapRepoError(err)
	}
	return u.apply(logger.WithContractID(ctx, c.ID.String()), c.ID, snap, SyncTriggerWebhook)
}

func (u *SignatureSyncUsecase) apply(ctx context.Context, contractID uuid.UUID, snap entities.EnvelopeSnapshot, trigger string) (*SyncResult, error) {
	c, tr, warning, err := u.coordinator.ApplyEnvelope(ctx, contractID, snap)
	if err != nil {
		u.observe(trigger, SyncOutcomeFailed)
		logger.Warn(ctx, "apply envelope snapshot rejected",
			zap.String("envelope_id", snap.EnvelopeID),
			zap.String("envelope_status", string(snap.Status)),
			zap.Error(err),
		)
		return nil, err
	}

	switch {
	case warning != "":
		u.observe(trigger, SyncOutcomeWarning)
		logger.Warn(ctx, "envelope status not recognised, contract left unchanged",
			zap.String("envelope_id", snap.EnvelopeID),
			zap.String("envelope_status", string(snap.Status)),
		)
	case tr.Changed:
		u.observe(trigger, SyncOutcomeChanged)
	default:
		u.observe(trigger, SyncOutcomeUnchanged)
	}

	return &SyncResult{Contract: c, Changed: tr.Changed, Warning: warning}, nil
}

// DownloadSignedDocument fetches the completed document from the provider
// and archives a copy when an archive is configured. Archive failures are
// logged and do not fail the download.
func (u *SignatureSyncUsecase) DownloadSignedDocument(ctx context.Context, contractID uuid.UUID) (*SignedDocumentResult, error) {
	v, _, err := joinFlight(ctx, &u.downloads, contractID.String(), func(runCtx context.Context) (interface{}, error) {
		return u.download(logger.WithContractID(runCtx, contractID.String()), contractID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*SignedDocumentResult), nil
}

func (u *SignatureSyncUsecase) download(ctx context.Context, contractID uuid.UUID) (*SignedDocumentResult, error) {
	c, err := u.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	if c.EnvelopeID == "" {
		return nil, domainerrors.NotFound("contract has no signed document at the provider")
	}
	if c.Status != entities.ContractStatusActive && c.Status != entities.ContractStatusClosed {
		return nil, domainerrors.InvalidTransition("the signed document is available once both parties have signed")
	}

	doc, err := u.provider.DownloadSignedDocument(ctx, c.EnvelopeID)
	if err != nil {
		logger.Warn(ctx, "download signed document failed", zap.String("envelope_id", c.EnvelopeID), zap.Error(err))
		return nil, err
	}

	result := &SignedDocumentResult{Document: doc}
	if u.archive != nil {
		key, err := u.archive.Store(ctx, c.ID, doc)
		if err != nil {
			logger.Warn(ctx, "signed document not archived", zap.Error(err))
		} else {
			result.ArchiveKey = key
		}
	}
	return result, nil
}

// joinFlight runs fn once per key for all concurrent callers. The shared call
// is detached from the leader's cancellation and bounded by SyncTimeout, so a
// caller that gives up never fails the others; each caller still stops
// waiting when its own ctx is done.
func joinFlight(ctx context.Context, g *singleflight.Group, key string, fn func(context.Context) (interface{}, error)) (interface{}, bool, error) {
	ch := g.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SyncTimeout)
		defer cancel()
		return fn(runCtx)
	})
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	}
}

func (u *SignatureSyncUsecase) observe(trigger, outcome string) {
	if u.observer != nil {
		u.observer.ObserveSync(trigger, outcome)
	}
}
