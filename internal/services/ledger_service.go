package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "tessera/internal/errors"
	"tessera/internal/locks"
	"tessera/internal/logger"
	"tessera/internal/models"
	"tessera/internal/pagination"
)

// errConservation marks a conservation failure detected inside a database
// transaction so the mutation rolls back before the asset is halted.
var errConservation = errors.New("conservation invariant violated")

// ledgerService owns assets, token balances, and the append-only
// transaction log. Mutations on the same asset serialize on a per-asset
// lock held only for the duration of a single database transaction.
type ledgerService struct {
	db          *gorm.DB
	assetLocks  *locks.Keyed
	lockTimeout time.Duration
	divWorkers  int

	// beforeCredit, when set, runs inside each holder credit transaction
	// after the dedup check. Tests inject failures and racing writers here.
	beforeCredit func(tx *gorm.DB, investorID string) error
}

// NewLedgerService creates a new LedgerServicer.
func NewLedgerService(db *gorm.DB, lockTimeout time.Duration, dividendWorkers int) LedgerServicer {
	return &ledgerService{
		db:          db,
		assetLocks:  locks.NewKeyed(),
		lockTimeout: lockTimeout,
		divWorkers:  dividendWorkers,
	}
}

// IssueAsset tokenizes a new asset: the full supply is created as a single
// pool balance held by the treasury. Supply is immutable afterwards.
func (s *ledgerService) IssueAsset(name string, category models.AssetCategory, totalSupply, pricePerToken int64) (*models.Asset, error) {
	if totalSupply <= 0 {
		return nil, apperrors.ErrInvalidSupply
	}
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "asset name is required")
	}
	if pricePerToken <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price per token must be greater than zero")
	}

	asset := &models.Asset{
		Name:          name,
		Category:      category,
		TotalSupply:   totalSupply,
		PricePerToken: pricePerToken,
		LaunchedAt:    time.Now(),
		IsActive:      true,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(asset).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		pool := &models.TokenBalance{
			InvestorID: models.TreasuryInvestorID,
			AssetID:    asset.ID,
			Quantity:   totalSupply,
		}
		if txErr := tx.Create(pool).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		return s.checkConservation(tx, asset.ID, totalSupply)
	})
	if err != nil {
		return nil, s.handleConservation(asset.ID, err)
	}

	return asset, nil
}

// GetAsset returns an asset by ID.
func (s *ledgerService) GetAsset(assetID string) (*models.Asset, error) {
	var asset models.Asset
	if err := s.db.First(&asset, "id = ?", assetID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnknownAsset
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &asset, nil
}

// ListAssets returns a paginated list of assets, optionally filtered by category.
func (s *ledgerService) ListAssets(page pagination.PageRequest, category *models.AssetCategory) (*pagination.PageResponse[models.Asset], error) {
	page.Defaults()

	base := s.db.Model(&models.Asset{})
	if category != nil {
		base = base.Where("category = ?", *category)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var assets []models.Asset
	if err := base.Order("launched_at DESC").Scopes(pagination.Paginate(page)).Find(&assets).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(assets, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// DeactivateAsset marks an asset inactive. Assets are never deleted; an
// inactive asset no longer accepts primary purchases from the treasury,
// while secondary transfers and dividends continue.
func (s *ledgerService) DeactivateAsset(assetID string) (*models.Asset, error) {
	asset, err := s.GetAsset(assetID)
	if err != nil {
		return nil, err
	}

	if err := s.db.Model(asset).Update("is_active", false).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	asset.IsActive = false
	return asset, nil
}

// GetBalance returns the quantity of an asset held by an investor.
// A missing record is a balance of zero, never an error.
func (s *ledgerService) GetBalance(investorID, assetID string) (int64, error) {
	var balance models.TokenBalance
	err := s.db.Where("investor_id = ? AND asset_id = ?", investorID, assetID).First(&balance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return balance.Quantity, nil
}

// ListHolders returns every non-treasury balance with quantity > 0 for an asset.
func (s *ledgerService) ListHolders(assetID string) ([]models.TokenBalance, error) {
	if _, err := s.GetAsset(assetID); err != nil {
		return nil, err
	}

	var holders []models.TokenBalance
	if err := s.db.Where("asset_id = ? AND quantity > 0 AND investor_id <> ?",
		assetID, models.TreasuryInvestorID).Find(&holders).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holders, nil
}

// ApplyTransfer atomically moves quantity tokens of an asset from one
// investor to another and appends the transaction record(s) in the same
// database transaction. Partial application is never observable: the
// decrement, increment, commit sequence, and transaction rows all commit or
// roll back together. Peer movements (neither side the treasury) return the
// receiver's purchase record; the sender's paired sale record is on the log.
// Callers must complete compliance checks before this call; no external I/O
// happens while the asset lock is held.
func (s *ledgerService) ApplyTransfer(fromID, toID, assetID string, quantity int64, txType models.LedgerTransactionType, pricePerToken int64) (*models.LedgerTransaction, error) {
	if quantity <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "quantity must be greater than zero")
	}
	if fromID == toID {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "cannot transfer to the same investor")
	}

	asset, err := s.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if asset.Halted {
		return nil, apperrors.ErrLedgerHalted
	}

	release, ok := s.assetLocks.AcquireTimeout(assetID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	defer release()

	// A movement against the treasury pool is recorded once, against the
	// non-treasury side it was made for: the buyer on a purchase, the
	// seller on a sale. A peer movement is recorded twice in the same
	// transaction, a sale for the sender and a purchase for the receiver,
	// so either side's purchase/sale history replays to its actual balance.
	peer := !models.IsTreasury(fromID) && !models.IsTreasury(toID)

	var record models.LedgerTransaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var from models.TokenBalance
		txErr := tx.Where("investor_id = ? AND asset_id = ?", fromID, assetID).First(&from).Error
		if txErr != nil {
			if errors.Is(txErr, gorm.ErrRecordNotFound) {
				return apperrors.ErrInsufficientBalance
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		if from.Quantity < quantity {
			return apperrors.ErrInsufficientBalance
		}

		fromRemaining := from.Quantity - quantity
		if txErr := tx.Model(&from).Update("quantity", fromRemaining).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		var to models.TokenBalance
		txErr = tx.Where("investor_id = ? AND asset_id = ?", toID, assetID).First(&to).Error
		switch {
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			to = models.TokenBalance{InvestorID: toID, AssetID: assetID, Quantity: quantity}
			if txErr := tx.Create(&to).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		case txErr != nil:
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		default:
			to.Quantity += quantity
			if txErr := tx.Model(&to).Update("quantity", to.Quantity).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}

		now := time.Now()

		if peer {
			saleSeq, txErr := nextCommitSeq(tx)
			if txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
			sale := models.LedgerTransaction{
				CommitSeq:        saleSeq,
				Type:             models.LedgerTransactionSale,
				AssetID:          assetID,
				InvestorID:       fromID,
				CounterpartyID:   toID,
				Quantity:         quantity,
				Amount:           quantity * pricePerToken,
				PricePerToken:    pricePerToken,
				Date:             now,
				ResultingBalance: fromRemaining,
			}
			if txErr := tx.Create(&sale).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}

		seq, txErr := nextCommitSeq(tx)
		if txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		recordType := txType
		recordedID := toID
		resulting := to.Quantity
		counterparty := fromID
		switch {
		case peer:
			recordType = models.LedgerTransactionPurchase
		case txType == models.LedgerTransactionSale:
			recordedID = fromID
			resulting = fromRemaining
			counterparty = toID
		}

		record = models.LedgerTransaction{
			CommitSeq:        seq,
			Type:             recordType,
			AssetID:          assetID,
			InvestorID:       recordedID,
			CounterpartyID:   counterparty,
			Quantity:         quantity,
			Amount:           quantity * pricePerToken,
			PricePerToken:    pricePerToken,
			Date:             now,
			ResultingBalance: resulting,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		return s.checkConservation(tx, assetID, asset.TotalSupply)
	})
	if err != nil {
		return nil, s.handleConservation(assetID, err)
	}

	return &record, nil
}

// VerifyConservation re-derives the conservation invariant for one asset:
// the sum of all balances must equal the fixed total supply. A violation
// halts the asset and is never silently corrected.
func (s *ledgerService) VerifyConservation(assetID string) error {
	asset, err := s.GetAsset(assetID)
	if err != nil {
		return err
	}

	if err := s.checkConservation(s.db, assetID, asset.TotalSupply); err != nil {
		return s.handleConservation(assetID, err)
	}
	return nil
}

// VerifyAll re-derives the conservation invariant for every asset. Called
// at startup before the ledger accepts new mutations; assets that fail stay
// halted while the rest of the ledger keeps serving.
func (s *ledgerService) VerifyAll() []error {
	var assets []models.Asset
	if err := s.db.Find(&assets).Error; err != nil {
		return []error{apperrors.Wrap(apperrors.ErrInternalServer, err)}
	}

	var failures []error
	for i := range assets {
		if err := s.checkConservation(s.db, assets[i].ID, assets[i].TotalSupply); err != nil {
			failures = append(failures, s.handleConservation(assets[i].ID, err))
		}
	}
	return failures
}

// ListAssetTransactions returns the paginated, filtered transaction log for one asset.
func (s *ledgerService) ListAssetTransactions(assetID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.LedgerTransaction], error) {
	if _, err := s.GetAsset(assetID); err != nil {
		return nil, err
	}
	return s.listTransactions(s.db.Model(&models.LedgerTransaction{}).Where("asset_id = ?", assetID), page, filter)
}

// ListInvestorTransactions returns the paginated, filtered transaction log for one investor.
func (s *ledgerService) ListInvestorTransactions(investorID string, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.LedgerTransaction], error) {
	return s.listTransactions(s.db.Model(&models.LedgerTransaction{}).Where("investor_id = ?", investorID), page, filter)
}

func (s *ledgerService) listTransactions(base *gorm.DB, page pagination.PageRequest, filter TransactionFilter) (*pagination.PageResponse[models.LedgerTransaction], error) {
	page.Defaults()
	base = applyTransactionFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var transactions []models.LedgerTransaction
	if err := base.Order("commit_seq DESC").Scopes(pagination.Paginate(page)).Find(&transactions).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(transactions, page.Page, page.PageSize, totalItems)
	return &result, nil
}

func applyTransactionFilters(q *gorm.DB, f TransactionFilter) *gorm.DB {
	if f.FromDate != nil {
		q = q.Where("date >= ?", *f.FromDate)
	}
	if f.ToDate != nil {
		q = q.Where("date <= ?", *f.ToDate)
	}
	if f.Type != nil {
		q = q.Where("type = ?", *f.Type)
	}
	if f.InvestorID != nil {
		q = q.Where("investor_id = ?", *f.InvestorID)
	}
	return q
}

// checkConservation verifies Σ balances == total supply within the given
// database handle (a transaction for mutations, the root handle for audits).
func (s *ledgerService) checkConservation(tx *gorm.DB, assetID string, totalSupply int64) error {
	var sum int64
	if err := tx.Model(&models.TokenBalance{}).
		Where("asset_id = ?", assetID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if sum != totalSupply {
		return fmt.Errorf("%w: asset %s sum %d != supply %d", errConservation, assetID, sum, totalSupply)
	}
	return nil
}

// handleConservation halts the asset when err is a conservation violation,
// so no further mutations are accepted until manual audit. Other errors
// pass through unchanged.
func (s *ledgerService) handleConservation(assetID string, err error) error {
	if !errors.Is(err, errConservation) {
		return err
	}

	logger.Get().Errorw("ledger conservation invariant violated, halting asset",
		"asset_id", assetID,
		"detail", err.Error(),
	)
	if haltErr := s.db.Model(&models.Asset{}).Where("id = ?", assetID).Update("halted", true).Error; haltErr != nil {
		logger.Get().Errorw("failed to halt asset after conservation violation",
			"asset_id", assetID,
			"error", haltErr.Error(),
		)
	}
	return apperrors.Wrap(apperrors.ErrInternalConsistency, err)
}

// nextCommitSeq hands out the next global commit sequence number under a
// row lock on the single ledger_sequences row, inside the caller's
// transaction. The sequence and the mutation it orders therefore become
// durable together, which is what makes audit emission exactly-once.
func nextCommitSeq(tx *gorm.DB) (int64, error) {
	var seq models.LedgerSequence
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&seq).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, err
		}
		seq = models.LedgerSequence{ID: 1, NextSeq: 1}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, err
		}
	}

	n := seq.NextSeq
	if err := tx.Model(&models.LedgerSequence{}).Where("id = ?", seq.ID).Update("next_seq", n+1).Error; err != nil {
		return 0, err
	}
	return n, nil
}
