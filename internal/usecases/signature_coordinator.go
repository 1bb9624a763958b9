package usecases

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/utils"
)

// TransitionObserver receives a notification for every persisted transition
// and every lost compare-and-swap.
type TransitionObserver interface {
	ObserveTransition(event, source string)
	ObserveConflict()
}

type noopObserver struct{}

func (noopObserver) ObserveTransition(string, string) {}
func (noopObserver) ObserveConflict()                 {}

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID string
	Admin  bool
}

type applyFunc func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error)

// SignatureCoordinator applies lifecycle transitions and persists them with
// a versioned write and an audit row in one transaction.
type SignatureCoordinator struct {
	contractRepo   repositories.ContractRepository
	transitionRepo repositories.ContractTransitionRepository
	uow            repositories.UnitOfWork
	observer       TransitionObserver
	now            func() time.Time
}

// NewSignatureCoordinator creates a new coordinator. observer may be nil.
func NewSignatureCoordinator(
	contractRepo repositories.ContractRepository,
	transitionRepo repositories.ContractTransitionRepository,
	uow repositories.UnitOfWork,
	observer TransitionObserver,
) *SignatureCoordinator {
	if observer == nil {
		observer = noopObserver{}
	}
	return &SignatureCoordinator{
		contractRepo:   contractRepo,
		transitionRepo: transitionRepo,
		uow:            uow,
		observer:       observer,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Sign records the caller's signature. The caller's role is resolved from
// the contract; asRole, when set, must match it.
func (s *SignatureCoordinator) Sign(ctx context.Context, contractID uuid.UUID, userID string, asRole entities.Role) (*entities.Contract, entities.Transition, error) {
	return s.transition(ctx, contractID, userID, entities.TransitionSourceAPI, func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error) {
		role, ok := c.RoleOf(userID)
		if !ok {
			return c, entities.Transition{}, domainerrors.Unauthorized("user is not a party to this contract")
		}
		if asRole != "" && asRole != role {
			return c, entities.Transition{}, domainerrors.Unauthorized(fmt.Sprintf("user cannot sign as %s", asRole))
		}
		return c.Sign(role, now)
	})
}

// Cancel withdraws a contract that is still awaiting signatures. Only a party may cancel.
func (s *SignatureCoordinator) Cancel(ctx context.Context, contractID uuid.UUID, userID string) (*entities.Contract, entities.Transition, error) {
	return s.transition(ctx, contractID, userID, entities.TransitionSourceAPI, func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error) {
		if !c.IsParty(userID) {
			return c, entities.Transition{}, domainerrors.Unauthorized("user is not a party to this contract")
		}
		return c.Cancel(now)
	})
}

// CloseOut completes an active contract once the case is finished
func (s *SignatureCoordinator) CloseOut(ctx context.Context, contractID uuid.UUID, actorID string) (*entities.Contract, entities.Transition, error) {
	return s.transition(ctx, contractID, actorID, entities.TransitionSourceSystem, func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error) {
		return c.CloseOut(now)
	})
}

// AttachEnvelope links the contract to the provider envelope it was sent out in
func (s *SignatureCoordinator) AttachEnvelope(ctx context.Context, contractID uuid.UUID, actor Actor, envelopeID, docURL string) (*entities.Contract, entities.Transition, error) {
	return s.transition(ctx, contractID, actor.UserID, entities.TransitionSourceAPI, func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error) {
		if !actor.Admin && !c.IsParty(actor.UserID) {
			return c, entities.Transition{}, domainerrors.Unauthorized("user is not a party to this contract")
		}
		return c.AttachEnvelope(envelopeID, docURL, now)
	})
}

// ApplyEnvelope mirrors a provider snapshot. An unrecognised provider status
// is not an error: the contract is returned unchanged with the warning text.
func (s *SignatureCoordinator) ApplyEnvelope(ctx context.Context, contractID uuid.UUID, snap entities.EnvelopeSnapshot) (*entities.Contract, entities.Transition, string, error) {
	var warning string
	c, tr, err := s.transition(ctx, contractID, "", entities.TransitionSourceProvider, func(c *entities.Contract, now time.Time) (*entities.Contract, entities.Transition, error) {
		warning = ""
		next, tr, err := c.ApplyEnvelope(snap, now)
		if errors.Is(err, domainerrors.ErrExternalSyncWarning) {
			warning = err.Error()
			return c, tr, nil
		}
		return next, tr, err
	})
	return c, tr, warning, err
}

// transition runs read, apply, compare-and-swap. A lost swap re-reads and
// re-applies, so the outcome always reflects the latest stored state. A
// rejected transition returns the stored contract unchanged with the error.
func (s *SignatureCoordinator) transition(ctx context.Context, contractID uuid.UUID, actorID string, source entities.TransitionSource, apply applyFunc) (*entities.Contract, entities.Transition, error) {
	ctx = logger.WithContractID(ctx, contractID.String())

	for attempt := 1; ; attempt++ {
		current, err := s.contractRepo.GetByID(ctx, contractID)
		if err != nil {
			return nil, entities.Transition{}, mapRepoError(err)
		}

		now := s.now()
		next, tr, err := apply(current, now)
		if err != nil {
			return current, tr, err
		}
		if !tr.Changed {
			return current, tr, nil
		}
		if err := next.CheckInvariants(); err != nil {
			logger.Error(ctx, "transition would break contract invariants", zap.String("event", string(tr.Event)), zap.Error(err))
			return nil, tr, domainerrors.InternalError(err)
		}

		err = s.uow.Do(ctx, func(txCtx context.Context) error {
			if err := s.contractRepo.Update(txCtx, next); err != nil {
				return err
			}
			return s.transitionRepo.Create(txCtx, tr.Record(utils.GenerateUUIDv7(), next.ID, actorID, source, now))
		})
		if err == nil {
			s.observer.ObserveTransition(string(tr.Event), string(source))
			logger.Info(ctx, "contract transition",
				zap.String("event", string(tr.Event)),
				zap.String("from", string(tr.From)),
				zap.String("to", string(tr.To)),
				zap.String("source", string(source)),
				zap.Int("version", next.Version),
			)
			return next, tr, nil
		}

		if !errors.Is(err, domainerrors.ErrConflict) {
			logger.Error(ctx, "persist contract transition failed", zap.Error(err))
			return nil, tr, mapRepoError(err)
		}
		s.observer.ObserveConflict()
		if attempt >= MaxTransitionAttempts {
			logger.Warn(ctx, "contract transition gave up after repeated conflicts", zap.Int("attempts", attempt))
			return nil, tr, domainerrors.Conflict("contract was modified concurrently, please retry")
		}
		logger.Debug(ctx, "contract write conflict, re-reading", zap.Int("attempt", attempt))
	}
}

// mapRepoError turns store sentinels into caller-facing errors. AppErrors pass through.
func mapRepoError(err error) error {
	if _, ok := domainerrors.AsAppError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, domainerrors.ErrNotFound):
		return domainerrors.NotFound("contract not found")
	case errors.Is(err, domainerrors.ErrConflict):
		return domainerrors.Conflict("contract was modified concurrently, please retry")
	case isUnavailable(err):
		return domainerrors.Transport("contract store unavailable", err)
	}
	return domainerrors.InternalError(err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
