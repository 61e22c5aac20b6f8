package models

// TokenBalance records how many tokens of an asset an investor holds.
// For every asset the sum of all balances equals the asset's total supply;
// the treasury row holds the unissued remainder. Rows are only mutated by
// validated ledger transfers.
type TokenBalance struct {
	Base
	InvestorID string `gorm:"type:uuid;not null;uniqueIndex:idx_balance_investor_asset" json:"investor_id"`
	AssetID    string `gorm:"type:uuid;not null;uniqueIndex:idx_balance_investor_asset" json:"asset_id"`
	Quantity   int64  `gorm:"type:bigint;not null" json:"quantity"`

	// Relationships
	Investor Investor `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
	Asset    Asset    `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
