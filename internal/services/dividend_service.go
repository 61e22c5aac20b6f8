package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	apperrors "tessera/internal/errors"
	"tessera/internal/logger"
	"tessera/internal/models"
)

// dividendService manages declared dividend schedules and pays out the ones
// that are due. Payout references are derived from the schedule and payout
// date, so a crashed or repeated run resumes instead of double-paying.
type dividendService struct {
	db     *gorm.DB
	ledger LedgerServicer
}

// NewDividendService creates a new DividendServicer.
func NewDividendService(db *gorm.DB, ledger LedgerServicer) DividendServicer {
	return &dividendService{db: db, ledger: ledger}
}

// DeclareSchedule creates or replaces the dividend schedule for an asset.
func (s *dividendService) DeclareSchedule(assetID string, perTokenAmount int64, frequency models.DividendFrequency, firstPayoutAt time.Time) (*models.DividendSchedule, error) {
	if perTokenAmount <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "per-token amount must be greater than zero")
	}
	if _, err := s.ledger.GetAsset(assetID); err != nil {
		return nil, err
	}
	if firstPayoutAt.IsZero() {
		firstPayoutAt = frequency.Advance(time.Now())
	}

	var schedule models.DividendSchedule
	err := s.db.Where("asset_id = ?", assetID).First(&schedule).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		schedule = models.DividendSchedule{
			AssetID:        assetID,
			PerTokenAmount: perTokenAmount,
			Frequency:      frequency,
			NextPayoutAt:   firstPayoutAt,
		}
		if err := s.db.Create(&schedule).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	case err != nil:
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	default:
		if err := s.db.Model(&schedule).Updates(map[string]interface{}{
			"per_token_amount": perTokenAmount,
			"frequency":        frequency,
			"next_payout_at":   firstPayoutAt,
		}).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		schedule.PerTokenAmount = perTokenAmount
		schedule.Frequency = frequency
		schedule.NextPayoutAt = firstPayoutAt
	}

	return &schedule, nil
}

// GetSchedule returns the dividend schedule for an asset.
func (s *dividendService) GetSchedule(assetID string) (*models.DividendSchedule, error) {
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
	return &schedule, nil
}

// RunDue pays out every schedule whose next payout date has arrived. The
// schedule only advances after a complete fan-out; a partial completion
// leaves NextPayoutAt unchanged so the next run retries the remainder
// under the same payout reference.
func (s *dividendService) RunDue(now time.Time) ([]PayoutRun, error) {
	var due []models.DividendSchedule
	if err := s.db.Where("next_payout_at <= ?", now).Find(&due).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	runs := make([]PayoutRun, 0, len(due))
	for i := range due {
		schedule := &due[i]
		run := PayoutRun{ScheduleID: schedule.ID, AssetID: schedule.AssetID}

		ref := payoutRef(schedule)
		result, err := s.ledger.RecordDividend(schedule.AssetID, schedule.PerTokenAmount, ref)
		if err != nil {
			run.Err = err.Error()
			runs = append(runs, run)
			continue
		}
		run.Result = result

		if result.Complete() {
			next := schedule.Frequency.Advance(schedule.NextPayoutAt)
			if err := s.db.Model(schedule).Update("next_payout_at", next).Error; err != nil {
				run.Err = err.Error()
			}
		}
		runs = append(runs, run)
	}

	if len(runs) > 0 {
		logger.Get().Infow("dividend schedule run completed", "due", len(due))
	}
	return runs, nil
}

// payoutRef identifies one scheduled payout event. Stable across retries of
// the same due date.
func payoutRef(schedule *models.DividendSchedule) string {
	return fmt.Sprintf("%s:%s", schedule.ID, schedule.NextPayoutAt.UTC().Format("2006-01-02"))
}
