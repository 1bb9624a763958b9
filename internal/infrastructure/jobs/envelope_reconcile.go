package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"lexmatch.backend/internal/domain/entities"
	"lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/internal/usecases"
	"lexmatch.backend/pkg/logger"
	"lexmatch.backend/pkg/redis"
	"lexmatch.backend/pkg/utils"
)

const reconcileLockKey = "lexmatch:reconcile:envelopes"

// ErrSweepInProgress is returned when another process holds the sweep lock
var ErrSweepInProgress = errors.New("envelope reconcile already running")

var (
	acquireLock = redis.AcquireLock
	releaseLock = redis.ReleaseLock
)

type contractLister interface {
	List(ctx context.Context, filter repositories.ContractFilter) ([]*entities.Contract, int, error)
}

type envelopeSyncer interface {
	Sync(ctx context.Context, contractID uuid.UUID, trigger string) (*usecases.SyncResult, error)
}

// ReconcileSummary counts what one sweep did
type ReconcileSummary struct {
	Scanned  int
	Changed  int
	Warnings int
	Failed   int
}

// EnvelopeReconcileJob re-syncs pending contracts that are linked to an
// envelope, catching provider events whose webhook never arrived.
type EnvelopeReconcileJob struct {
	repo      contractLister
	syncer    envelopeSyncer
	batchSize int
	lockTTL   time.Duration
	useLock   bool
	interval  time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
	onSweep   func(ctx context.Context, summary ReconcileSummary, err error)
}

// NewEnvelopeReconcileJob creates the job. useLock guards the sweep with a
// Redis lock so overlapping runs skip instead of racing.
func NewEnvelopeReconcileJob(repo contractLister, syncer envelopeSyncer, batchSize int, lockTTL time.Duration, useLock bool) *EnvelopeReconcileJob {
	if batchSize <= 0 {
		batchSize = utils.DefaultPageLimit
	}
	return &EnvelopeReconcileJob{
		repo:      repo,
		syncer:    syncer,
		batchSize: batchSize,
		lockTTL:   lockTTL,
		useLock:   useLock,
		interval:  5 * time.Minute,
		stop:      make(chan struct{}),
	}
}

// WithInterval sets the period used by Start
func (j *EnvelopeReconcileJob) WithInterval(d time.Duration) *EnvelopeReconcileJob {
	if d > 0 {
		j.interval = d
	}
	return j
}

// OnSweep registers fn to run after every sweep started by Start
func (j *EnvelopeReconcileJob) OnSweep(fn func(ctx context.Context, summary ReconcileSummary, err error)) *EnvelopeReconcileJob {
	j.onSweep = fn
	return j
}

// Start sweeps immediately, then once per interval until ctx is done or
// Stop is called
func (j *EnvelopeReconcileJob) Start(ctx context.Context) {
	logger.Info(ctx, "starting envelope reconcile job", zap.Duration("interval", j.interval))
	j.sweep(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "envelope reconcile job stopped (context cancelled)")
			return
		case <-j.stop:
			logger.Info(ctx, "envelope reconcile job stopped")
			return
		case <-ticker.C:
			j.sweep(ctx)
		}
	}
}

// Stop ends a running Start loop. Safe to call more than once.
func (j *EnvelopeReconcileJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
}

func (j *EnvelopeReconcileJob) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := j.RunOnce(ctx)
	if err != nil && !errors.Is(err, ErrSweepInProgress) && !errors.Is(err, context.Canceled) {
		logger.Error(ctx, "envelope reconcile sweep failed", zap.Error(err))
	}
	if j.onSweep != nil {
		j.onSweep(ctx, summary, err)
	}
}

// RunOnce syncs every pending contract with an envelope. Individual sync
// failures are counted, not returned.
func (j *EnvelopeReconcileJob) RunOnce(ctx context.Context) (ReconcileSummary, error) {
	var summary ReconcileSummary

	if j.useLock {
		token := utils.GenerateUUIDv7().String()
		ok, err := acquireLock(ctx, reconcileLockKey, token, j.lockTTL)
		if err != nil {
			return summary, err
		}
		if !ok {
			logger.Info(ctx, "envelope reconcile skipped, another sweep holds the lock")
			return summary, ErrSweepInProgress
		}
		defer func() {
			if err := releaseLock(context.WithoutCancel(ctx), reconcileLockKey, token); err != nil {
				logger.Warn(ctx, "release reconcile lock failed", zap.Error(err))
			}
		}()
	}

	ids, err := j.pendingIDs(ctx)
	if err != nil {
		return summary, err
	}
	if len(ids) == 0 {
		return summary, nil
	}

	logger.Info(ctx, "reconciling pending envelopes", zap.Int("count", len(ids)))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Scanned++
		res, err := j.syncer.Sync(ctx, id, usecases.SyncTriggerReconcile)
		switch {
		case err != nil:
			summary.Failed++
			logger.Warn(ctx, "reconcile contract failed", zap.String("contract_id", id.String()), zap.Error(err))
		case res.Warning != "":
			summary.Warnings++
		case res.Changed:
			summary.Changed++
		}
	}

	logger.Info(ctx, "envelope reconcile finished",
		zap.Int("scanned", summary.Scanned),
		zap.Int("changed", summary.Changed),
		zap.Int("warnings", summary.Warnings),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// pendingIDs collects the ids up front; syncing moves contracts out of the
// pending filter, which would shift later pages.
func (j *EnvelopeReconcileJob) pendingIDs(ctx context.Context) ([]uuid.UUID, error) {
	status := entities.ContractStatusPendingSignature
	var ids []uuid.UUID
	for offset := 0; ; offset += j.batchSize {
		batch, total, err := j.repo.List(ctx, repositories.ContractFilter{
			Status:       &status,
			WithEnvelope: true,
			Limit:        j.batchSize,
			Offset:       offset,
		})
		if err != nil {
			return nil, err
		}
		for _, c := range batch {
			ids = append(ids, c.ID)
		}
		if len(batch) < j.batchSize || offset+len(batch) >= total {
			return ids, nil
		}
	}
}
