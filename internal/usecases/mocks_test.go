package usecases_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	"lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/internal/usecases"
)

// memContractStore is an in-memory ContractRepository with real
// compare-and-swap semantics.
type memContractStore struct {
	mu        sync.Mutex
	contracts map[uuid.UUID]*entities.Contract
	updates   int

	// injectConflicts makes the next n updates fail as stale
	injectConflicts int
	updateErr       error

	// readGate, when set, holds the first gateSize reads until all of them arrived
	readGate chan struct{}
	gateSize int
	gateSeen int
}

func newMemContractStore() *memContractStore {
	return &memContractStore{contracts: map[uuid.UUID]*entities.Contract{}}
}

func (s *memContractStore) holdReads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readGate = make(chan struct{})
	s.gateSize = n
	s.gateSeen = 0
}

func (s *memContractStore) Create(_ context.Context, c *entities.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contracts[c.ID]; ok {
		return domainerrors.Conflict("duplicate contract id")
	}
	if c.Version == 0 {
		c.Version = 1
	}
	s.contracts[c.ID] = c.Clone()
	return nil
}

func (s *memContractStore) GetByID(_ context.Context, id uuid.UUID) (*entities.Contract, error) {
	s.mu.Lock()
	c, ok := s.contracts[id]
	var out *entities.Contract
	if ok {
		out = c.Clone()
	}
	gate := s.readGate
	if gate != nil {
		s.gateSeen++
		if s.gateSeen == s.gateSize {
			close(gate)
			s.readGate = nil
		}
	}
	s.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return out, nil
}

func (s *memContractStore) GetByEnvelopeID(_ context.Context, envelopeID string) (*entities.Contract, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.contracts {
		if envelopeID != "" && c.EnvelopeID == envelopeID {
			return c.Clone(), nil
		}
	}
	return nil, domainerrors.ErrNotFound
}

func (s *memContractStore) List(_ context.Context, f repositories.ContractFilter) ([]*entities.Contract, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var matched []*entities.Contract
	for _, c := range s.contracts {
		if f.PartyID != "" && !c.IsParty(f.PartyID) {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.WithEnvelope && c.EnvelopeID == "" {
			continue
		}
		matched = append(matched, c.Clone())
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID.String() < matched[j].ID.String() })

	total := len(matched)
	start := f.Offset
	if start > total {
		start = total
	}
	end := total
	if f.Limit > 0 && start+f.Limit < end {
		end = start + f.Limit
	}
	return matched[start:end], total, nil
}

func (s *memContractStore) Update(_ context.Context, c *entities.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	if s.injectConflicts > 0 {
		s.injectConflicts--
		return domainerrors.ErrConflict
	}
	stored, ok := s.contracts[c.ID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	if stored.Version != c.Version {
		return domainerrors.ErrConflict
	}
	c.Version++
	s.contracts[c.ID] = c.Clone()
	s.updates++
	return nil
}

func (s *memContractStore) get(id uuid.UUID) *entities.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contracts[id].Clone()
}

func (s *memContractStore) snapshot() map[uuid.UUID]*entities.Contract {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uuid.UUID]*entities.Contract, len(s.contracts))
	for k, v := range s.contracts {
		out[k] = v.Clone()
	}
	return out
}

func (s *memContractStore) restore(state map[uuid.UUID]*entities.Contract) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts = state
}

type memTransitionStore struct {
	mu        sync.Mutex
	rows      []*entities.ContractTransition
	createErr error
}

func (s *memTransitionStore) Create(_ context.Context, t *entities.ContractTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.rows = append(s.rows, t)
	return nil
}

func (s *memTransitionStore) ListByContractID(_ context.Context, id uuid.UUID) ([]*entities.ContractTransition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.ContractTransition
	for _, r := range s.rows {
		if r.ContractID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *memTransitionStore) restore(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = s.rows[:n]
}

func (s *memTransitionStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// memUnitOfWork serialises transactions and rolls both stores back on error
type memUnitOfWork struct {
	mu          sync.Mutex
	contracts   *memContractStore
	transitions *memTransitionStore
}

func (u *memUnitOfWork) Do(ctx context.Context, fn repositories.TxFunc) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	state := u.contracts.snapshot()
	rows := u.transitions.count()
	if err := fn(ctx); err != nil {
		u.contracts.restore(state)
		u.transitions.restore(rows)
		return err
	}
	return nil
}

// MockEnvelopeProvider mocks the e-signature provider
type MockEnvelopeProvider struct {
	mock.Mock
}

func (m *MockEnvelopeProvider) FetchStatus(ctx context.Context, envelopeID string) (*entities.EnvelopeSnapshot, error) {
	args := m.Called(ctx, envelopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.EnvelopeSnapshot), args.Error(1)
}

func (m *MockEnvelopeProvider) DownloadSignedDocument(ctx context.Context, envelopeID string) (*entities.SignedDocument, error) {
	args := m.Called(ctx, envelopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.SignedDocument), args.Error(1)
}

// MockDocumentArchive mocks the signed document archive
type MockDocumentArchive struct {
	mock.Mock
}

func (m *MockDocumentArchive) Store(ctx context.Context, contractID uuid.UUID, doc *entities.SignedDocument) (string, error) {
	args := m.Called(ctx, contractID, doc)
	return args.String(0), args.Error(1)
}

type recordingObserver struct {
	mu          sync.Mutex
	transitions []string
	conflicts   int
	syncs       []string
}

func (o *recordingObserver) ObserveTransition(event, source string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.transitions = append(o.transitions, event+"/"+source)
}

func (o *recordingObserver) ObserveConflict() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.conflicts++
}

func (o *recordingObserver) ObserveSync(trigger, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.syncs = append(o.syncs, trigger+"/"+outcome)
}

func (o *recordingObserver) conflictCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.conflicts
}

// fixture wires the usecases over the in-memory stores
type fixture struct {
	contracts   *memContractStore
	transitions *memTransitionStore
	provider    *MockEnvelopeProvider
	archive     *MockDocumentArchive
	observer    *recordingObserver
	coordinator *usecases.SignatureCoordinator
	sync        *usecases.SignatureSyncUsecase
	usecase     *usecases.ContractUsecase
}

const providerHost = "esign.example.com"

var (
	client = usecases.Actor{UserID: "U1"}
	lawyer = usecases.Actor{UserID: "L1"}
	admin  = usecases.Actor{UserID: "ops-1", Admin: true}
	other  = usecases.Actor{UserID: "stranger"}
)

func newFixture() *fixture {
	f := &fixture{
		contracts:   newMemContractStore(),
		transitions: &memTransitionStore{},
		provider:    &MockEnvelopeProvider{},
		archive:     &MockDocumentArchive{},
		observer:    &recordingObserver{},
	}
	uow := &memUnitOfWork{contracts: f.contracts, transitions: f.transitions}
	f.coordinator = usecases.NewSignatureCoordinator(f.contracts, f.transitions, uow, f.observer)
	f.sync = usecases.NewSignatureSyncUsecase(f.contracts, f.coordinator, f.provider, f.archive, f.observer, providerHost)
	f.usecase = usecases.NewContractUsecase(f.contracts, f.transitions, uow, f.coordinator, f.sync, f.observer)
	return f
}

func ts(hour int) *time.Time {
	t := time.Date(2026, 3, 1, hour, 0, 0, 0, time.UTC)
	return &t
}
