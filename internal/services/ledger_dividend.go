package services

import (
	"errors"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"gorm.io/gorm"

	apperrors "tessera/internal/errors"
	"tessera/internal/logger"
	"tessera/internal/models"
)

// RecordDividend credits quantity * perTokenAmount to every holder of the
// asset. The holder set is snapshotted under the asset lock, then the
// credits fan out on a bounded worker pool without the lock: each holder's
// credit is an independent database transaction, deduplicated by
// (payoutRef, investor). A failure mid-fan-out surfaces as a partial
// result; re-invoking with the same payoutRef credits only the remainder.
func (s *ledgerService) RecordDividend(assetID string, perTokenAmount int64, payoutRef string) (*DividendResult, error) {
	if perTokenAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "per-token amount must be greater than zero")
	}
	if payoutRef == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "payout reference is required")
	}

	asset, err := s.GetAsset(assetID)
	if err != nil {
		return nil, err
	}
	if asset.Halted {
		return nil, apperrors.ErrLedgerHalted
	}

	// Snapshot holder quantities under the asset lock so concurrent
	// transfers cannot skew the payout base, then release before fanning out.
	release, ok := s.assetLocks.AcquireTimeout(assetID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	holders, err := s.ListHolders(assetID)
	release()
	if err != nil {
		return nil, err
	}

	result := &DividendResult{
		AssetID:        assetID,
		PayoutRef:      payoutRef,
		PerTokenAmount: perTokenAmount,
	}

	var mu sync.Mutex
	pool := pond.NewPool(s.divWorkers)
	for i := range holders {
		holder := holders[i]
		pool.Submit(func() {
			credit, skipped, creditErr := s.creditHolder(holder, perTokenAmount, payoutRef)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case creditErr != nil:
				result.Failed = append(result.Failed, HolderFailure{
					InvestorID: holder.InvestorID,
					Reason:     creditErr.Error(),
				})
			case skipped:
				result.AlreadyCredited = append(result.AlreadyCredited, holder.InvestorID)
			default:
				result.Credited = append(result.Credited, *credit)
			}
		})
	}
	pool.StopAndWait()

	if !result.Complete() {
		logger.Get().Warnw("dividend fan-out partially completed",
			"asset_id", assetID,
			"payout_ref", payoutRef,
			"credited", len(result.Credited),
			"failed", len(result.Failed),
		)
	}

	return result, nil
}

// creditHolder writes one DividendPayout transaction for a holder. The
// existence check and the insert share a transaction, so a credit happens
// at most once per (payoutRef, investor) even across retries.
func (s *ledgerService) creditHolder(holder models.TokenBalance, perTokenAmount int64, payoutRef string) (*HolderCredit, bool, error) {
	var credit *HolderCredit
	var skipped bool

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var existing int64
		if txErr := tx.Model(&models.LedgerTransaction{}).
			Where("payout_ref = ? AND investor_id = ?", payoutRef, holder.InvestorID).
			Count(&existing).Error; txErr != nil {
			return txErr
		}
		if existing > 0 {
			skipped = true
			return nil
		}

		if s.beforeCredit != nil {
			if txErr := s.beforeCredit(tx, holder.InvestorID); txErr != nil {
				return txErr
			}
		}

		seq, txErr := nextCommitSeq(tx)
		if txErr != nil {
			return txErr
		}

		record := models.LedgerTransaction{
			CommitSeq:        seq,
			Type:             models.LedgerTransactionDividend,
			AssetID:          holder.AssetID,
			InvestorID:       holder.InvestorID,
			Quantity:         holder.Quantity,
			Amount:           holder.Quantity * perTokenAmount,
			PricePerToken:    perTokenAmount,
			Date:             time.Now(),
			ResultingBalance: holder.Quantity,
			PayoutRef:        payoutRef,
		}
		if txErr := tx.Create(&record).Error; txErr != nil {
			// A unique violation means a concurrent run credited this
			// holder between our check and insert.
			if errors.Is(txErr, gorm.ErrDuplicatedKey) {
				skipped = true
				return nil
			}
			return txErr
		}

		credit = &HolderCredit{
			InvestorID:    holder.InvestorID,
			Quantity:      holder.Quantity,
			Amount:        record.Amount,
			TransactionID: record.ID,
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return credit, skipped, nil
}
