package services

import (
	"time"

	"tessera/internal/models"
	"tessera/internal/pagination"
)

// TransactionFilter holds optional filter parameters for listing ledger transactions.
type TransactionFilter struct {
	FromDate   *time.Time
	ToDate     *time.Time
	Type       *models.LedgerTransactionType
	InvestorID *string
}

// HolderCredit describes one successful dividend credit.
type HolderCredit struct {
	InvestorID    string `json:"investor_id"`
	Quantity      int64  `json:"quantity"`
	Amount        int64  `json:"amount"`
	TransactionID string `json:"transaction_id"`
}

// HolderFailure describes one holder whose dividend credit failed. The
// caller re-invokes RecordDividend with the same payout reference to credit
// only the remainder.
type HolderFailure struct {
	InvestorID string `json:"investor_id"`
	Reason     string `json:"reason"`
}

// DividendResult reports the outcome of a dividend fan-out. Each holder's
// credit is independently atomic, so a partial completion lists exactly
// which holders were credited, which were already credited by an earlier
// run, and which still need a retry.
type DividendResult struct {
	AssetID         string          `json:"asset_id"`
	PayoutRef       string          `json:"payout_ref"`
	PerTokenAmount  int64           `json:"per_token_amount"`
	Credited        []HolderCredit  `json:"credited"`
	AlreadyCredited []string        `json:"already_credited,omitempty"`
	Failed          []HolderFailure `json:"failed,omitempty"`
}

// Complete reports whether every holder has been credited.
func (r *DividendResult) Complete() bool { return len(r.Failed) == 0 }

// LedgerServicer defines the contract for the token ownership ledger.
type LedgerServicer interface {
	IssueAsset(name string, category models.AssetCategory, totalSupply, pricePerToken int64) (*models.Asset, error)
	GetAsset(assetID string) (*models.Asset, error)
	ListAssets(page pagination.PageRequest, category *models.AssetCategory) (*pagination.PageResponse[models.Asset], error)
	DeactivateAsset(assetID string) (*models.Asset, error)
	GetBalance(investorID, assetID string) (int64, error)
	ListHolders(assetID string) ([]models.TokenBalance, error)
	ApplyTransfer(fromID, toID, assetID string, quantity int64, txType models.LedgerTransactionType, pricePerToken int64) (*models.LedgerTransaction, error)
	RecordDividend(assetID string, perTokenAmount int64, payoutRef string) (*DividendResult, error)
	ListAssetTransactions(assetID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.LedgerTransaction], error)
	ListInvestorTransactions(investorID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.LedgerTransaction], error)
	VerifyConservation(assetID string) error
	VerifyAll() []error
}

// ComplianceServicer defines the contract for the per-investor compliance
// state machine that gates all trading.
type ComplianceServicer interface {
	OnboardInvestor(name, email string) (*models.Investor, error)
	GetInvestor(investorID string) (*models.Investor, error)
	GetRecord(investorID string) (*models.ComplianceRecord, error)
	SubmitCheck(investorID, checkName string, result models.CheckResult) (*models.ComplianceRecord, error)
	Reopen(investorID string) (*models.ComplianceRecord, error)
	Suspend(investorID, reason string) (*models.ComplianceRecord, error)
	Reinstate(investorID string) (*models.ComplianceRecord, error)
	IsClearedFor(investorID string, category models.AssetCategory) (bool, models.ComplianceStatus, error)
}

// TransferServicer orchestrates compliance-gated buy/sell/transfer
// operations. It holds no state of its own and performs no retries.
type TransferServicer interface {
	Purchase(buyerID, assetID string, quantity int64) (*models.LedgerTransaction, error)
	Sell(sellerID, assetID string, quantity int64) (*models.LedgerTransaction, error)
	Transfer(fromID, toID, assetID string, quantity int64) (*models.LedgerTransaction, error)
}

// GainReport contains FIFO cost-basis accounting for one holding.
type GainReport struct {
	AssetID        string  `json:"asset_id"`
	Quantity       int64   `json:"quantity"`
	CostBasis      int64   `json:"cost_basis"`
	CurrentValue   int64   `json:"current_value"`
	UnrealizedGain int64   `json:"unrealized_gain"`
	GainPct        float64 `json:"gain_pct"`
}

// YieldReport contains the projected annual dividend yield for an asset.
type YieldReport struct {
	AssetID          string  `json:"asset_id"`
	PerTokenAmount   int64   `json:"per_token_amount"`
	PeriodsPerYear   int     `json:"periods_per_year"`
	AnnualPerToken   int64   `json:"annual_per_token"`
	CurrentPrice     int64   `json:"current_price"`
	ProjectedYieldPct float64 `json:"projected_yield_pct"`
}

// CategorySummary contains summary data for a single asset category.
type CategorySummary struct {
	Value int64 `json:"value"`
	Count int   `json:"count"`
}

// PortfolioSummary contains aggregated portfolio data for one investor.
// Yield income and value appreciation are reported separately and never
// compounded into each other.
type PortfolioSummary struct {
	TotalValue         int64                                  `json:"total_value"`
	TotalCostBasis     int64                                  `json:"total_cost_basis"`
	TotalGainLoss      int64                                  `json:"total_gain_loss"`
	GainLossPct        float64                                `json:"gain_loss_pct"`
	DividendIncome     int64                                  `json:"dividend_income"`
	HoldingsByCategory map[models.AssetCategory]CategorySummary `json:"holdings_by_category"`
}

// ValuationServicer derives portfolio value, gain, and yield figures from
// ledger snapshots. Read-only; never mutates ledger or compliance state.
type ValuationServicer interface {
	PortfolioValue(investorID string) (int64, error)
	PortfolioSummary(investorID string) (*PortfolioSummary, error)
	UnrealizedGain(investorID, assetID string) (*GainReport, error)
	ProjectedYield(assetID string) (*YieldReport, error)
}

// PriceServicer records and serves market prices reported by an external feed.
type PriceServicer interface {
	RecordPrice(assetID string, price int64, recordedAt time.Time) (*models.AssetPrice, error)
	CurrentPrice(assetID string) (int64, error)
	LatestPrices(assetIDs []string) (map[string]int64, error)
}

// PayoutRun reports the outcome of one scheduled dividend payout.
type PayoutRun struct {
	ScheduleID string          `json:"schedule_id"`
	AssetID    string          `json:"asset_id"`
	Result     *DividendResult `json:"result,omitempty"`
	Err        string          `json:"error,omitempty"`
}

// DividendServicer manages dividend schedules and runs the ones that are due.
type DividendServicer interface {
	DeclareSchedule(assetID string, perTokenAmount int64, frequency models.DividendFrequency, firstPayoutAt time.Time) (*models.DividendSchedule, error)
	GetSchedule(assetID string) (*models.DividendSchedule, error)
	RunDue(now time.Time) ([]PayoutRun, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(actor, action, resourceType, resourceID, ipAddress string, details map[string]interface{})
}
