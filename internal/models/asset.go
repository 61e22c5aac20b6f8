package models

import "time"

// AssetCategory classifies the real-world asset backing a token issuance.
type AssetCategory string

const (
	AssetCategoryRealEstate    AssetCategory = "real_estate"
	AssetCategoryFineArt       AssetCategory = "fine_art"
	AssetCategoryCommodity     AssetCategory = "commodity"
	AssetCategoryCollectible   AssetCategory = "collectible"
	AssetCategoryPrivateEquity AssetCategory = "private_equity"
)

// AssetCategories lists every recognized category.
var AssetCategories = []AssetCategory{
	AssetCategoryRealEstate,
	AssetCategoryFineArt,
	AssetCategoryCommodity,
	AssetCategoryCollectible,
	AssetCategoryPrivateEquity,
}

// Asset represents a tokenized real-world asset. TotalSupply is fixed at
// issuance and never changes; assets are marked inactive rather than deleted.
// Halted is set when a conservation check fails and blocks all further
// mutations on the asset until manual audit.
type Asset struct {
	Base
	Name          string        `gorm:"not null" json:"name"`
	Category      AssetCategory `gorm:"not null;index" json:"category"`
	TotalSupply   int64         `gorm:"type:bigint;not null" json:"total_supply"`
	PricePerToken int64         `gorm:"type:bigint;not null" json:"price_per_token"`
	LaunchedAt    time.Time     `gorm:"not null" json:"launched_at"`
	IsActive      bool          `gorm:"not null;default:true" json:"is_active"`
	Halted        bool          `gorm:"not null;default:false" json:"halted"`
}
