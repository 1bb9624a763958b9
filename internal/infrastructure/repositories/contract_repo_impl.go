package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"lexmatch.backend/internal/domain/entities"
	domainerrors "lexmatch.backend/internal/domain/errors"
	domainrepos "lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/internal/infrastructure/models"
)

// ContractRepositoryImpl implements ContractRepository
type ContractRepositoryImpl struct {
	db *gorm.DB
}

func NewContractRepository(db *gorm.DB) *ContractRepositoryImpl {
	return &ContractRepositoryImpl{db: db}
}

var _ domainrepos.ContractRepository = (*ContractRepositoryImpl)(nil)

func (r *ContractRepositoryImpl) Create(ctx context.Context, contract *entities.Contract) error {
	m := toContractModel(contract)
	if m.Version == 0 {
		m.Version = 1
	}
	if err := GetDB(ctx, r.db).WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	contract.Version = m.Version
	return nil
}

func (r *ContractRepositoryImpl) GetByID(ctx context.Context, id uuid.UUID) (*entities.Contract, error) {
	var m models.Contract
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toContractEntity(&m), nil
}

func (r *ContractRepositoryImpl) GetByEnvelopeID(ctx context.Context, envelopeID string) (*entities.Contract, error) {
	if envelopeID == "" {
		return nil, domainerrors.ErrNotFound
	}
	var m models.Contract
	if err := GetDB(ctx, r.db).WithContext(ctx).Where("envelope_id = ?", envelopeID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domainerrors.ErrNotFound
		}
		return nil, err
	}
	return toContractEntity(&m), nil
}

func (r *ContractRepositoryImpl) List(ctx context.Context, filter domainrepos.ContractFilter) ([]*entities.Contract, int, error) {
	query := GetDB(ctx, r.db).WithContext(ctx).Model(&models.Contract{})
	if filter.PartyID != "" {
		query = query.Where("client_id = ? OR lawyer_id = ?", filter.PartyID, filter.PartyID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", string(*filter.Status))
	}
	if filter.WithEnvelope {
		query = query.Where("envelope_id IS NOT NULL AND envelope_id <> ''")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var ms []models.Contract
	if err := query.Order("created_at DESC").Order("id").Find(&ms).Error; err != nil {
		return nil, 0, err
	}

	contracts := make([]*entities.Contract, 0, len(ms))
	for i := range ms {
		contracts = append(contracts, toContractEntity(&ms[i]))
	}
	return contracts, int(total), nil
}

// Update is a compare-and-swap on the version column.
func (r *ContractRepositoryImpl) Update(ctx context.Context, contract *entities.Contract) error {
	m := toContractModel(contract)
	next := contract.Version + 1
	updatedAt := contract.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result := GetDB(ctx, r.db).WithContext(ctx).Model(&models.Contract{}).
		Where("id = ? AND version = ?", contract.ID, contract.Version).
		Updates(map[string]interface{}{
			"status":           m.Status,
			"signed_client_at": m.SignedClientAt,
			"signed_lawyer_at": m.SignedLawyerAt,
			"doc_url":          m.DocURL,
			"envelope_id":      m.EnvelopeID,
			"version":          next,
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrConflict
	}

	contract.Version = next
	contract.UpdatedAt = updatedAt
	return nil
}

func toContractModel(c *entities.Contract) *models.Contract {
	m := &models.Contract{
		ID:         c.ID,
		CaseID:     c.CaseID,
		LawyerID:   c.LawyerID,
		ClientID:   c.ClientID,
		Status:     string(c.Status),
		FeeType:    string(c.FeeModel.Type),
		FeePercent: null.Float64FromPtr(c.FeeModel.Percent),
		FeeValue:   null.Float64FromPtr(c.FeeModel.Value),
		FeeRate:    null.Float64FromPtr(c.FeeModel.Rate),
		Version:    c.Version,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.SignedClient != nil {
		m.SignedClientAt = null.TimeFrom(*c.SignedClient)
	}
	if c.SignedLawyer != nil {
		m.SignedLawyerAt = null.TimeFrom(*c.SignedLawyer)
	}
	if c.DocURL != "" {
		m.DocURL = null.StringFrom(c.DocURL)
	}
	if c.EnvelopeID != "" {
		m.EnvelopeID = null.StringFrom(c.EnvelopeID)
	}
	return m
}

func toContractEntity(m *models.Contract) *entities.Contract {
	return &entities.Contract{
		ID:       m.ID,
		CaseID:   m.CaseID,
		LawyerID: m.LawyerID,
		ClientID: m.ClientID,
		Status:   entities.ContractStatus(m.Status),
		FeeModel: entities.FeeModel{
			Type:    entities.FeeModelType(m.FeeType),
			Percent: m.FeePercent.Ptr(),
			Value:   m.FeeValue.Ptr(),
			Rate:    m.FeeRate.Ptr(),
		},
		SignedClient: m.SignedClientAt.Ptr(),
		SignedLawyer: m.SignedLawyerAt.Ptr(),
		DocURL:       m.DocURL.String,
		EnvelopeID:   m.EnvelopeID.String,
		Version:      m.Version,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
