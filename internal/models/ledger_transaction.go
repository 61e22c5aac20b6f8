package models

import "time"

// LedgerTransactionType represents the type of a committed ledger mutation.
type LedgerTransactionType string

const (
	LedgerTransactionPurchase LedgerTransactionType = "purchase"
	LedgerTransactionSale     LedgerTransactionType = "sale"
	LedgerTransactionDividend LedgerTransactionType = "dividend"
)

// LedgerTransaction is the immutable record of a committed ledger mutation.
// Rows are written in the same database transaction as the balance updates
// they describe, so the audit trail can never diverge from the ledger.
// CommitSeq is a global, gap-free ordering assigned from ledger_sequences
// inside that transaction. Rows are never updated or deleted.
type LedgerTransaction struct {
	Base
	CommitSeq      int64                 `gorm:"type:bigint;not null;uniqueIndex" json:"commit_seq"`
	Type           LedgerTransactionType `gorm:"not null;index" json:"type"`
	AssetID        string                `gorm:"type:uuid;not null;index" json:"asset_id"`
	InvestorID     string                `gorm:"type:uuid;not null;index" json:"investor_id"`
	CounterpartyID string                `gorm:"type:uuid" json:"counterparty_id,omitempty"`
	Quantity       int64                 `gorm:"type:bigint;not null" json:"quantity"`
	Amount         int64                 `gorm:"type:bigint;not null" json:"amount"`
	PricePerToken  int64                 `gorm:"type:bigint" json:"price_per_token"`
	Date           time.Time             `gorm:"not null" json:"date"`

	// ResultingBalance is the investor's token balance after this mutation.
	ResultingBalance int64 `gorm:"type:bigint" json:"resulting_balance"`

	// PayoutRef dedupes dividend credits: at most one dividend row may exist
	// per (payout_ref, investor_id), so re-running a partially failed fan-out
	// never double-pays a holder. The unique constraint lives in migrations;
	// the check also runs inside each credit's transaction.
	PayoutRef string `gorm:"index" json:"payout_ref,omitempty"`

	// Relationships
	Asset    Asset    `gorm:"foreignKey:AssetID" json:"asset,omitempty"`
	Investor Investor `gorm:"foreignKey:InvestorID" json:"investor,omitempty"`
}

// LedgerSequence is a single-row table that hands out commit sequence
// numbers under a row lock, inside the mutation's own transaction.
type LedgerSequence struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	NextSeq int64 `gorm:"type:bigint;not null" json:"next_seq"`
}
