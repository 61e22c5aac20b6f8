package models

import "time"

// DividendFrequency is how often a schedule pays out.
type DividendFrequency string

const (
	DividendFrequencyMonthly   DividendFrequency = "monthly"
	DividendFrequencyQuarterly DividendFrequency = "quarterly"
	DividendFrequencyAnnual    DividendFrequency = "annual"
)

// PeriodsPerYear returns how many payouts the frequency produces per year.
func (f DividendFrequency) PeriodsPerYear() int {
	switch f {
	case DividendFrequencyMonthly:
		return 12
	case DividendFrequencyQuarterly:
		return 4
	default:
		return 1
	}
}

// Advance returns the payout date one period after t.
func (f DividendFrequency) Advance(t time.Time) time.Time {
	switch f {
	case DividendFrequencyMonthly:
		return t.AddDate(0, 1, 0)
	case DividendFrequencyQuarterly:
		return t.AddDate(0, 3, 0)
	default:
		return t.AddDate(1, 0, 0)
	}
}

// DividendSchedule declares a recurring per-token payout for an asset.
// Written by yield declarations; read by the scheduler and the valuation
// calculator to project income.
type DividendSchedule struct {
	Base
	AssetID        string            `gorm:"type:uuid;not null;uniqueIndex" json:"asset_id"`
	PerTokenAmount int64             `gorm:"type:bigint;not null" json:"per_token_amount"`
	Frequency      DividendFrequency `gorm:"not null" json:"frequency"`
	NextPayoutAt   time.Time         `gorm:"not null;index" json:"next_payout_at"`

	// Relationships
	Asset Asset `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
}
