package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
)

type Contract struct {
	ID             uuid.UUID    `gorm:"type:uuid;primaryKey"`
	CaseID         string       `gorm:"type:varchar(128);not null;index"`
	LawyerID       string       `gorm:"type:varchar(128);not null;index"`
	ClientID       string       `gorm:"type:varchar(128);not null;index"`
	Status         string       `gorm:"type:varchar(32);not null;index"`
	FeeType        string       `gorm:"type:varchar(16);not null"`
	FeePercent     null.Float64 `gorm:"type:decimal(9,4)"`
	FeeValue       null.Float64 `gorm:"type:decimal(18,2)"`
	FeeRate        null.Float64 `gorm:"type:decimal(18,2)"`
	SignedClientAt null.Time
	SignedLawyerAt null.Time
	DocURL         null.String `gorm:"column:doc_url;type:text"`
	EnvelopeID     null.String `gorm:"type:varchar(255);uniqueIndex"`
	Version        int         `gorm:"not null;default:1"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (Contract) TableName() string { return "contracts" }

type ContractTransition struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	ContractID uuid.UUID `gorm:"type:uuid;not null;index"`
	FromStatus string    `gorm:"type:varchar(32)"`
	ToStatus   string    `gorm:"type:varchar(32);not null"`
	Event      string    `gorm:"type:varchar(50);not null;index"`
	ActorID    string    `gorm:"type:varchar(128)"`
	Source     string    `gorm:"type:varchar(16);not null"`
	Metadata   string    `gorm:"type:jsonb;default:'{}'"`
	CreatedAt  time.Time
}

func (ContractTransition) TableName() string { return "contract_transitions" }

// AutoMigrate creates or updates the contract tables
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Contract{}, &ContractTransition{})
}
