package models

// TreasuryInvestorID is the reserved investor that holds the unissued pool
// of every asset. It is seeded by migrations and exempt from compliance
// gating on the treasury side of a transfer.
const TreasuryInvestorID = "00000000-0000-0000-0000-000000000000"

// Investor represents a platform participant who can hold token balances.
type Investor struct {
	Base
	Name  string `gorm:"not null" json:"name"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`
}

// IsTreasury reports whether the given investor ID is the reserved treasury.
func IsTreasury(investorID string) bool {
	return investorID == TreasuryInvestorID
}
