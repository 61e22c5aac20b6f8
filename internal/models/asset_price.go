package models

import (
	"time"

	"tessera/internal/uuid"

	"gorm.io/gorm"
)

// AssetPrice represents a historical market price entry for an asset,
// reported by an external market feed. The most recent row is the asset's
// current price. Immutable time-series data — no Base embed, no soft deletes.
type AssetPrice struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	AssetID    string    `gorm:"type:uuid;not null;index" json:"asset_id"`
	Price      int64     `gorm:"type:bigint;not null" json:"price"`
	RecordedAt time.Time `gorm:"not null" json:"recorded_at"`
	Asset      Asset     `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}

// BeforeCreate hook generates a UUIDv7 for new records
func (p *AssetPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New()
	}
	return nil
}
