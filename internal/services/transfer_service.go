package services

import (
	"fmt"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
)

// transferService orchestrates compliance-gated transfers. It holds no
// state of its own: compliance lookups complete before the ledger takes the
// asset lock, ledger errors propagate unchanged, and nothing is retried —
// a blocked or failed request must be resubmitted after remediation.
type transferService struct {
	ledger     LedgerServicer
	compliance ComplianceServicer
	prices     PriceServicer
}

// NewTransferService creates a new TransferServicer.
func NewTransferService(ledger LedgerServicer, compliance ComplianceServicer, prices PriceServicer) TransferServicer {
	return &transferService{ledger: ledger, compliance: compliance, prices: prices}
}

// Purchase moves tokens from the treasury pool to a buyer at the current
// market price. The buyer must be cleared for the asset's category; the
// treasury side is exempt. Inactive assets no longer accept purchases.
func (s *transferService) Purchase(buyerID, assetID string, quantity int64) (*models.LedgerTransaction, error) {
	asset, price, err := s.resolveAsset(assetID)
	if err != nil {
		return nil, err
	}
	if !asset.IsActive {
		return nil, apperrors.ErrAssetInactive
	}

	if err := s.gate(buyerID, asset.Category); err != nil {
		return nil, err
	}

	return s.ledger.ApplyTransfer(models.TreasuryInvestorID, buyerID, assetID, quantity,
		models.LedgerTransactionPurchase, price)
}

// Sell moves tokens from a seller back to the treasury pool at the current
// market price. The seller must be cleared for the asset's category.
func (s *transferService) Sell(sellerID, assetID string, quantity int64) (*models.LedgerTransaction, error) {
	asset, price, err := s.resolveAsset(assetID)
	if err != nil {
		return nil, err
	}

	if err := s.gate(sellerID, asset.Category); err != nil {
		return nil, err
	}

	return s.ledger.ApplyTransfer(sellerID, models.TreasuryInvestorID, assetID, quantity,
		models.LedgerTransactionSale, price)
}

// Transfer moves tokens between two investors. Both counterparties must be
// cleared for the asset's category unless one side is the treasury. A peer
// movement is logged as a sale for the sender and a purchase for the
// receiver; the receiver's record is returned.
func (s *transferService) Transfer(fromID, toID, assetID string, quantity int64) (*models.LedgerTransaction, error) {
	asset, price, err := s.resolveAsset(assetID)
	if err != nil {
		return nil, err
	}

	if err := s.gate(fromID, asset.Category); err != nil {
		return nil, err
	}
	if err := s.gate(toID, asset.Category); err != nil {
		return nil, err
	}

	txType := models.LedgerTransactionPurchase
	if models.IsTreasury(toID) {
		txType = models.LedgerTransactionSale
	}
	return s.ledger.ApplyTransfer(fromID, toID, assetID, quantity, txType, price)
}

// resolveAsset looks up the asset and its effective per-token price: the
// latest market price, falling back to the issuance price before any feed
// entry exists.
func (s *transferService) resolveAsset(assetID string) (*models.Asset, int64, error) {
	asset, err := s.ledger.GetAsset(assetID)
	if err != nil {
		return nil, 0, err
	}

	prices, err := s.prices.LatestPrices([]string{assetID})
	if err != nil {
		return nil, 0, err
	}
	price, ok := prices[assetID]
	if !ok {
		price = asset.PricePerToken
	}
	return asset, price, nil
}

// gate verifies that a non-treasury counterparty exists and is cleared to
// trade the asset's category.
func (s *transferService) gate(investorID string, category models.AssetCategory) error {
	if models.IsTreasury(investorID) {
		return nil
	}

	if _, err := s.compliance.GetInvestor(investorID); err != nil {
		return err
	}

	cleared, status, err := s.compliance.IsClearedFor(investorID, category)
	if err != nil {
		return err
	}
	if !cleared {
		return apperrors.WithMessage(apperrors.ErrComplianceBlocked,
			fmt.Sprintf("Investor %s is not cleared to trade (status: %s)", investorID, status))
	}
	return nil
}
