package services

import (
	"errors"

	"gorm.io/gorm"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
)

// valuationService derives portfolio figures from ledger snapshots and
// market prices. It is purely read-only: nothing here mutates the ledger
// or compliance state, so two calls with no intervening mutation always
// return identical results.
type valuationService struct {
	db     *gorm.DB
	ledger LedgerServicer
	prices PriceServicer
}

// NewValuationService creates a new ValuationServicer.
func NewValuationService(db *gorm.DB, ledger LedgerServicer, prices PriceServicer) ValuationServicer {
	return &valuationService{db: db, ledger: ledger, prices: prices}
}

// PortfolioValue sums quantity * current price over every holding.
func (s *valuationService) PortfolioValue(investorID string) (int64, error) {
	holdings, priceByAsset, err := s.holdingsWithPrices(investorID)
	if err != nil {
		return 0, err
	}

	var total int64
	for i := range holdings {
		total += holdings[i].Quantity * priceByAsset[holdings[i].AssetID]
	}
	return total, nil
}

// PortfolioSummary aggregates value, FIFO cost basis, unrealized gain, and
// dividend income across an investor's holdings, grouped by category.
// Yield income and appreciation are reported separately, never compounded.
func (s *valuationService) PortfolioSummary(investorID string) (*PortfolioSummary, error) {
	holdings, priceByAsset, err := s.holdingsWithPrices(investorID)
	if err != nil {
		return nil, err
	}

	summary := &PortfolioSummary{
		HoldingsByCategory: make(map[models.AssetCategory]CategorySummary),
	}

	for i := range holdings {
		holding := &holdings[i]
		value := holding.Quantity * priceByAsset[holding.AssetID]
		summary.TotalValue += value

		costBasis, _, err := s.fifoCostBasis(investorID, holding.AssetID)
		if err != nil {
			return nil, err
		}
		summary.TotalCostBasis += costBasis

		cs := summary.HoldingsByCategory[holding.Asset.Category]
		cs.Value += value
		cs.Count++
		summary.HoldingsByCategory[holding.Asset.Category] = cs
	}

	var dividends int64
	if err := s.db.Model(&models.LedgerTransaction{}).
		Where("investor_id = ? AND type = ?", investorID, models.LedgerTransactionDividend).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&dividends).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	summary.DividendIncome = dividends

	summary.TotalGainLoss = summary.TotalValue - summary.TotalCostBasis
	if summary.TotalCostBasis > 0 {
		summary.GainLossPct = float64(summary.TotalGainLoss) / float64(summary.TotalCostBasis) * 100
	}

	return summary, nil
}

// UnrealizedGain reports current value against the FIFO cost basis of the
// remaining purchase lots for one holding: sales consume the earliest lots
// first, and the cost attributed to what remains is what the gain is
// measured against.
func (s *valuationService) UnrealizedGain(investorID, assetID string) (*GainReport, error) {
	if _, err := s.ledger.GetAsset(assetID); err != nil {
		return nil, err
	}

	costBasis, quantity, err := s.fifoCostBasis(investorID, assetID)
	if err != nil {
		return nil, err
	}

	price, err := s.prices.CurrentPrice(assetID)
	if err != nil {
		return nil, err
	}

	report := &GainReport{
		AssetID:        assetID,
		Quantity:       quantity,
		CostBasis:      costBasis,
		CurrentValue:   quantity * price,
		UnrealizedGain: quantity*price - costBasis,
	}
	if costBasis > 0 {
		report.GainPct = float64(report.UnrealizedGain) / float64(costBasis) * 100
	}
	return report, nil
}

// ProjectedYield annualizes the declared dividend schedule over the current
// price. Reported separately from appreciation; never compounded into value.
func (s *valuationService) ProjectedYield(assetID string) (*YieldReport, error) {
	if _, err := s.ledger.GetAsset(assetID); err != nil {
		return nil, err
	}

	var schedule models.DividendSchedule
	if err := s.db.Where("asset_id = ?", assetID).First(&schedule).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrScheduleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	price, err := s.prices.CurrentPrice(assetID)
	if err != nil {
		return nil, err
	}

	periods := schedule.Frequency.PeriodsPerYear()
	annual := schedule.PerTokenAmount * int64(periods)

	report := &YieldReport{
		AssetID:        assetID,
		PerTokenAmount: schedule.PerTokenAmount,
		PeriodsPerYear: periods,
		AnnualPerToken: annual,
		CurrentPrice:   price,
	}
	if price > 0 {
		report.ProjectedYieldPct = float64(annual) / float64(price) * 100
	}
	return report, nil
}

// lot is one unconsumed purchase lot during FIFO replay.
type lot struct {
	quantity int64
	unitCost int64
}

// fifoCostBasis replays the investor's purchase and sale history for an
// asset in commit order. Purchases append lots; sales consume the earliest
// lots first. Returns the cost of the remaining lots and the remaining
// quantity.
func (s *valuationService) fifoCostBasis(investorID, assetID string) (int64, int64, error) {
	var transactions []models.LedgerTransaction
	if err := s.db.
		Where("investor_id = ? AND asset_id = ? AND type IN ?",
			investorID, assetID,
			[]models.LedgerTransactionType{models.LedgerTransactionPurchase, models.LedgerTransactionSale}).
		Order("commit_seq ASC").
		Find(&transactions).Error; err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var lots []lot
	for i := range transactions {
		tx := &transactions[i]
		switch tx.Type {
		case models.LedgerTransactionPurchase:
			lots = append(lots, lot{quantity: tx.Quantity, unitCost: tx.PricePerToken})
		case models.LedgerTransactionSale:
			remaining := tx.Quantity
			for remaining > 0 && len(lots) > 0 {
				if lots[0].quantity <= remaining {
					remaining -= lots[0].quantity
					lots = lots[1:]
				} else {
					lots[0].quantity -= remaining
					remaining = 0
				}
			}
		}
	}

	var costBasis, quantity int64
	for _, l := range lots {
		costBasis += l.quantity * l.unitCost
		quantity += l.quantity
	}
	return costBasis, quantity, nil
}

// holdingsWithPrices loads an investor's positive holdings with assets
// preloaded and a batch of their current prices (issuance price fallback).
func (s *valuationService) holdingsWithPrices(investorID string) ([]models.TokenBalance, map[string]int64, error) {
	var holdings []models.TokenBalance
	if err := s.db.Preload("Asset").
		Where("investor_id = ? AND quantity > 0", investorID).
		Find(&holdings).Error; err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	assetIDs := make([]string, 0, len(holdings))
	for i := range holdings {
		assetIDs = append(assetIDs, holdings[i].AssetID)
	}
	prices, err := s.prices.LatestPrices(assetIDs)
	if err != nil {
		return nil, nil, err
	}
	for i := range holdings {
		if _, ok := prices[holdings[i].AssetID]; !ok {
			prices[holdings[i].AssetID] = holdings[i].Asset.PricePerToken
		}
	}
	return holdings, prices, nil
}
