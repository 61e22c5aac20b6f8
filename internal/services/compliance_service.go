package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"tessera/internal/config"
	apperrors "tessera/internal/errors"
	"tessera/internal/locks"
	"tessera/internal/logger"
	"tessera/internal/models"
)

// complianceService owns per-investor compliance records and derives
// trading eligibility from them. Status is never set directly: it is
// always the reduction of the individual check results, with rejected and
// suspended as sticky overlays that only the explicit reopen/reinstate
// administrative transitions can leave.
type complianceService struct {
	db            *gorm.DB
	investorLocks *locks.Keyed
	lockTimeout   time.Duration

	requiredChecks []string
	categoryChecks map[string][]string
	recognized     map[string]bool
}

// NewComplianceService creates a new ComplianceServicer configured with the
// deployment's required check names.
func NewComplianceService(db *gorm.DB, cfg *config.Config) ComplianceServicer {
	return &complianceService{
		db:             db,
		investorLocks:  locks.NewKeyed(),
		lockTimeout:    cfg.LedgerLockTimeout,
		requiredChecks: cfg.RequiredChecks,
		categoryChecks: cfg.CategoryChecks,
		recognized:     cfg.RecognizedChecks(),
	}
}

// OnboardInvestor creates an investor with an unverified compliance record.
func (s *complianceService) OnboardInvestor(name, email string) (*models.Investor, error) {
	if name == "" || email == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "name and email are required")
	}
	email = strings.ToLower(strings.TrimSpace(email))

	var existing int64
	if err := s.db.Model(&models.Investor{}).Where("email = ?", email).Count(&existing).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing > 0 {
		return nil, apperrors.ErrDuplicateEmail
	}

	investor := &models.Investor{Name: name, Email: email}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Create(investor).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}

		record := &models.ComplianceRecord{
			InvestorID:      investor.ID,
			Status:          models.ComplianceStatusUnverified,
			StatusChangedAt: time.Now(),
		}
		if txErr := tx.Create(record).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return investor, nil
}

// GetInvestor returns an investor by ID.
func (s *complianceService) GetInvestor(investorID string) (*models.Investor, error) {
	var investor models.Investor
	if err := s.db.First(&investor, "id = ?", investorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnknownInvestor
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &investor, nil
}

// GetRecord returns an investor's compliance record with its checks.
func (s *complianceService) GetRecord(investorID string) (*models.ComplianceRecord, error) {
	var record models.ComplianceRecord
	if err := s.db.Preload("Checks").Where("investor_id = ?", investorID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUnknownInvestor
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &record, nil
}

// SubmitCheck records or overwrites the named check's result and recomputes
// the derived status. Rejected and suspended are sticky: a new check result
// alone can never move the record out of either state, so a clerical retry
// of a failed check cannot silently un-reject a sanctioned investor.
func (s *complianceService) SubmitCheck(investorID, checkName string, result models.CheckResult) (*models.ComplianceRecord, error) {
	if !s.recognized[checkName] {
		return nil, apperrors.WithMessage(apperrors.ErrUnknownCheck, "Unrecognized compliance check: "+checkName)
	}
	switch result {
	case models.CheckResultPassed, models.CheckResultFailed, models.CheckResultPending:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "invalid check result")
	}

	release, ok := s.investorLocks.AcquireTimeout(investorID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	defer release()

	record, err := s.GetRecord(investorID)
	if err != nil {
		return nil, err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var check models.ComplianceCheck
		txErr := tx.Where("record_id = ? AND name = ?", record.ID, checkName).First(&check).Error
		switch {
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			check = models.ComplianceCheck{RecordID: record.ID, Name: checkName, Result: result}
			if txErr := tx.Create(&check).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		case txErr != nil:
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		default:
			if txErr := tx.Model(&check).Update("result", result).Error; txErr != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
			}
		}

		// Sticky states keep the recorded result but not the reduction.
		if record.Status == models.ComplianceStatusRejected || record.Status == models.ComplianceStatusSuspended {
			return nil
		}
		return s.applyReduction(tx, record)
	})
	if err != nil {
		return nil, err
	}

	return s.GetRecord(investorID)
}

// Reopen moves a rejected investor back to the derived status after
// resetting every failed check to pending. An explicit administrative
// action, logged by the caller.
func (s *complianceService) Reopen(investorID string) (*models.ComplianceRecord, error) {
	release, ok := s.investorLocks.AcquireTimeout(investorID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	defer release()

	record, err := s.GetRecord(investorID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.ComplianceStatusRejected {
		return nil, apperrors.ErrNotRejected
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(&models.ComplianceCheck{}).
			Where("record_id = ? AND result = ?", record.ID, models.CheckResultFailed).
			Update("result", models.CheckResultPending).Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return s.applyReduction(tx, record)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("compliance record reopened", "investor_id", investorID)
	return s.GetRecord(investorID)
}

// Suspend forces the suspended status from any state. Suspended investors
// fail every clearance query until an explicit reinstate.
func (s *complianceService) Suspend(investorID, reason string) (*models.ComplianceRecord, error) {
	release, ok := s.investorLocks.AcquireTimeout(investorID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	defer release()

	record, err := s.GetRecord(investorID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"suspension_reason": reason,
	}
	if record.Status != models.ComplianceStatusSuspended {
		updates["status"] = models.ComplianceStatusSuspended
		updates["status_changed_at"] = time.Now()
	}
	if err := s.db.Model(record).Updates(updates).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	logger.Get().Warnw("investor suspended", "investor_id", investorID, "reason", reason)
	return s.GetRecord(investorID)
}

// Reinstate returns a suspended investor to the derived reduction of the
// current checks, which is by construction the status held before the
// suspension (the checks did not change while suspended, except results
// recorded without effect).
func (s *complianceService) Reinstate(investorID string) (*models.ComplianceRecord, error) {
	release, ok := s.investorLocks.AcquireTimeout(investorID, s.lockTimeout)
	if !ok {
		return nil, apperrors.ErrLedgerBusy
	}
	defer release()

	record, err := s.GetRecord(investorID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.ComplianceStatusSuspended {
		return nil, apperrors.ErrNotSuspended
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if txErr := tx.Model(record).Update("suspension_reason", "").Error; txErr != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, txErr)
		}
		return s.applyReduction(tx, record)
	})
	if err != nil {
		return nil, err
	}

	logger.Get().Infow("investor reinstated", "investor_id", investorID)
	return s.GetRecord(investorID)
}

// IsClearedFor reports whether the investor may trade assets of the given
// category: the derived status must be cleared and every category-specific
// check (if configured) must have passed.
func (s *complianceService) IsClearedFor(investorID string, category models.AssetCategory) (bool, models.ComplianceStatus, error) {
	record, err := s.GetRecord(investorID)
	if err != nil {
		return false, "", err
	}

	if record.Status != models.ComplianceStatusCleared {
		return false, record.Status, nil
	}

	extras := s.categoryChecks[string(category)]
	if len(extras) == 0 {
		return true, record.Status, nil
	}

	results := make(map[string]models.CheckResult, len(record.Checks))
	for _, check := range record.Checks {
		results[check.Name] = check.Result
	}
	for _, name := range extras {
		if results[name] != models.CheckResultPassed {
			return false, record.Status, nil
		}
	}
	return true, record.Status, nil
}

// applyReduction recomputes the derived status from the check results and
// persists it on the record. Reduction rules: any failed check rejects;
// all required checks passed clears; any recorded activity short of that
// is pending; no activity at all is unverified.
func (s *complianceService) applyReduction(tx *gorm.DB, record *models.ComplianceRecord) error {
	var checks []models.ComplianceCheck
	if err := tx.Where("record_id = ?", record.ID).Find(&checks).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	status := reduceStatus(checks, s.requiredChecks)
	if status == record.Status {
		return nil
	}

	if err := tx.Model(record).Updates(map[string]interface{}{
		"status":            status,
		"status_changed_at": time.Now(),
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	record.Status = status
	return nil
}

// reduceStatus is the pure reduction from check results to a derived
// status. Keeping it a standalone function prevents the status from ever
// drifting from the per-check results.
func reduceStatus(checks []models.ComplianceCheck, required []string) models.ComplianceStatus {
	if len(checks) == 0 {
		return models.ComplianceStatusUnverified
	}

	results := make(map[string]models.CheckResult, len(checks))
	for _, check := range checks {
		if check.Result == models.CheckResultFailed {
			return models.ComplianceStatusRejected
		}
		results[check.Name] = check.Result
	}

	allPassed := true
	for _, name := range required {
		if results[name] != models.CheckResultPassed {
			allPassed = false
			break
		}
	}
	if allPassed {
		return models.ComplianceStatusCleared
	}
	return models.ComplianceStatusPending
}
