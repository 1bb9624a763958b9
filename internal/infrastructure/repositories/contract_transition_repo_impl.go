package repositories

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"lexmatch.backend/internal/domain/entities"
	domainrepos "lexmatch.backend/internal/domain/repositories"
	"lexmatch.backend/internal/infrastructure/models"
)

// ContractTransitionRepositoryImpl implements ContractTransitionRepository
type ContractTransitionRepositoryImpl struct {
	db *gorm.DB
}

func NewContractTransitionRepository(db *gorm.DB) *ContractTransitionRepositoryImpl {
	return &ContractTransitionRepositoryImpl{db: db}
}

var _ domainrepos.ContractTransitionRepository = (*ContractTransitionRepositoryImpl)(nil)

func (r *ContractTransitionRepositoryImpl) Create(ctx context.Context, transition *entities.ContractTransition) error {
	metadata := "{}"
	if len(transition.Metadata) > 0 {
		raw, err := json.Marshal(transition.Metadata)
		if err != nil {
			return err
		}
		metadata = string(raw)
	}

	m := &models.ContractTransition{
		ID:         transition.ID,
		ContractID: transition.ContractID,
		FromStatus: string(transition.FromStatus),
		ToStatus:   string(transition.ToStatus),
		Event:      string(transition.Event),
		ActorID:    transition.ActorID,
		Source:     string(transition.Source),
		Metadata:   metadata,
		CreatedAt:  transition.CreatedAt,
	}
	return GetDB(ctx, r.db).WithContext(ctx).Create(m).Error
}

func (r *ContractTransitionRepositoryImpl) ListByContractID(ctx context.Context, contractID uuid.UUID) ([]*entities.ContractTransition, error) {
	var ms []models.ContractTransition
	if err := GetDB(ctx, r.db).WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&ms).Error; err != nil {
		return nil, err
	}

	out := make([]*entities.ContractTransition, 0, len(ms))
	for i := range ms {
		m := ms[i]
		meta := map[string]string{}
		if m.Metadata != "" {
			// tolerate rows written by hand
			_ = json.Unmarshal([]byte(m.Metadata), &meta)
		}
		out = append(out, &entities.ContractTransition{
			ID:         m.ID,
			ContractID: m.ContractID,
			FromStatus: entities.ContractStatus(m.FromStatus),
			ToStatus:   entities.ContractStatus(m.ToStatus),
			Event:      entities.ContractEvent(m.Event),
			ActorID:    m.ActorID,
			Source:     entities.TransitionSource(m.Source),
			Metadata:   meta,
			CreatedAt:  m.CreatedAt,
		})
	}
	return out, nil
}
