package services

import (
	"testing"

	"gorm.io/gorm"

	"tessera/internal/models"
	"tessera/internal/testutil"
)

func newTestCompliance(t *testing.T, db *gorm.DB) ComplianceServicer {
	t.Helper()
	return NewComplianceService(db, testutil.TestConfig())
}

func passAllRequired(t *testing.T, svc ComplianceServicer, investorID string) *models.ComplianceRecord {
	t.Helper()
	var record *models.ComplianceRecord
	var err error
	for _, name := range testutil.TestConfig().RequiredChecks {
		record, err = svc.SubmitCheck(investorID, name, models.CheckResultPassed)
		testutil.AssertNoError(t, err)
	}
	return record
}

func TestOnboardInvestor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestCompliance(t, db)

	t.Run("valid", func(t *testing.T) {
		investor, err := svc.OnboardInvestor("Sarah Chen", "sarah.chen@example.com")
		testutil.AssertNoError(t, err)

		record, err := svc.GetRecord(investor.ID)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusUnverified {
			t.Errorf("expected unverified status at onboarding, got %s", record.Status)
		}
	})

	t.Run("duplicate_email", func(t *testing.T) {
		_, err := svc.OnboardInvestor("Another Person", "Sarah.Chen@example.com")
		testutil.AssertAppError(t, err, "DUPLICATE_EMAIL")
	})

	t.Run("missing_fields", func(t *testing.T) {
		_, err := svc.OnboardInvestor("", "someone@example.com")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestSubmitCheck(t *testing.T) {
	t.Run("reduction_to_cleared", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		record, err := svc.SubmitCheck(investor.ID, "aml", models.CheckResultPassed)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusPending {
			t.Errorf("expected pending with partial checks, got %s", record.Status)
		}

		record = passAllRequired(t, svc, investor.ID)
		if record.Status != models.ComplianceStatusCleared {
			t.Errorf("expected cleared after all required checks pass, got %s", record.Status)
		}
	})

	t.Run("any_failure_rejects", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		passAllRequired(t, svc, investor.ID)
		record, err := svc.SubmitCheck(investor.ID, "sanctions", models.CheckResultFailed)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusRejected {
			t.Errorf("expected rejected after a failed check, got %s", record.Status)
		}
	})

	t.Run("rejected_is_sticky", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		passAllRequired(t, svc, investor.ID)
		_, err := svc.SubmitCheck(investor.ID, "sanctions", models.CheckResultFailed)
		testutil.AssertNoError(t, err)

		// A later pass on the same check records the result but cannot
		// leave the rejected state on its own.
		record, err := svc.SubmitCheck(investor.ID, "sanctions", models.CheckResultPassed)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusRejected {
			t.Errorf("rejected must persist until an explicit reopen, got %s", record.Status)
		}

		// After reopen the recorded pass takes effect through the reduction.
		record, err = svc.Reopen(investor.ID)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusCleared {
			t.Errorf("expected cleared after reopen with all checks passed, got %s", record.Status)
		}
	})

	t.Run("pending_result_blocks_clearance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		passAllRequired(t, svc, investor.ID)
		record, err := svc.SubmitCheck(investor.ID, "kyc", models.CheckResultPending)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusPending {
			t.Errorf("expected pending when a required check is pending, got %s", record.Status)
		}
	})

	t.Run("unrecognized_check", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		_, err := svc.SubmitCheck(investor.ID, "astrology", models.CheckResultPassed)
		testutil.AssertAppError(t, err, "UNKNOWN_CHECK")
	})

	t.Run("unknown_investor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)

		_, err := svc.SubmitCheck("no-such-investor", "aml", models.CheckResultPassed)
		testutil.AssertAppError(t, err, "UNKNOWN_INVESTOR")
	})
}

func TestReopen(t *testing.T) {
	t.Run("requires_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		_, err := svc.Reopen(investor.ID)
		testutil.AssertAppError(t, err, "NOT_REJECTED")
	})

	t.Run("failed_checks_reset_to_pending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		passAllRequired(t, svc, investor.ID)
		_, err := svc.SubmitCheck(investor.ID, "pep", models.CheckResultFailed)
		testutil.AssertNoError(t, err)

		record, err := svc.Reopen(investor.ID)
		testutil.AssertNoError(t, err)
		if record.Status != models.ComplianceStatusPending {
			t.Errorf("expected pending after reopen with a reset check, got %s", record.Status)
		}

		for _, check := range record.Checks {
			if check.Name == "pep" && check.Result != models.CheckResultPending {
				t.Errorf("expected failed check reset to pending, got %s", check.Result)
			}
		}
	})
}

func TestSuspendAndReinstate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	svc := newTestCompliance(t, db)
	investor := testutil.CreateTestInvestor(t, db)
	passAllRequired(t, svc, investor.ID)

	record, err := svc.Suspend(investor.ID, "court order")
	testutil.AssertNoError(t, err)
	if record.Status != models.ComplianceStatusSuspended {
		t.Fatalf("expected suspended, got %s", record.Status)
	}
	if record.SuspensionReason != "court order" {
		t.Errorf("expected suspension reason recorded, got %q", record.SuspensionReason)
	}

	// Check submissions while suspended are recorded without effect.
	record, err = svc.SubmitCheck(investor.ID, "aml", models.CheckResultPassed)
	testutil.AssertNoError(t, err)
	if record.Status != models.ComplianceStatusSuspended {
		t.Errorf("suspended must persist through check submissions, got %s", record.Status)
	}

	ok, status, err := svc.IsClearedFor(investor.ID, models.AssetCategoryRealEstate)
	testutil.AssertNoError(t, err)
	if ok {
		t.Errorf("suspended investor must not be cleared, status %s", status)
	}

	_, err = svc.Reinstate("no-such-investor")
	testutil.AssertAppError(t, err, "UNKNOWN_INVESTOR")

	record, err = svc.Reinstate(investor.ID)
	testutil.AssertNoError(t, err)
	if record.Status != models.ComplianceStatusCleared {
		t.Errorf("expected derived status restored after reinstate, got %s", record.Status)
	}
	if record.SuspensionReason != "" {
		t.Errorf("expected suspension reason cleared, got %q", record.SuspensionReason)
	}

	_, err = svc.Reinstate(investor.ID)
	testutil.AssertAppError(t, err, "NOT_SUSPENDED")
}

func TestIsClearedFor(t *testing.T) {
	t.Run("category_extra_checks", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)
		passAllRequired(t, svc, investor.ID)

		// Cleared for plain categories, but fine art needs provenance.
		ok, _, err := svc.IsClearedFor(investor.ID, models.AssetCategoryRealEstate)
		testutil.AssertNoError(t, err)
		if !ok {
			t.Error("expected clearance for real estate")
		}

		ok, _, err = svc.IsClearedFor(investor.ID, models.AssetCategoryFineArt)
		testutil.AssertNoError(t, err)
		if ok {
			t.Error("expected fine art blocked without provenance check")
		}

		_, err = svc.SubmitCheck(investor.ID, "provenance", models.CheckResultPassed)
		testutil.AssertNoError(t, err)

		ok, _, err = svc.IsClearedFor(investor.ID, models.AssetCategoryFineArt)
		testutil.AssertNoError(t, err)
		if !ok {
			t.Error("expected fine art clearance after provenance passes")
		}
	})

	t.Run("unverified_blocked", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := newTestCompliance(t, db)
		investor := testutil.CreateTestInvestor(t, db)

		ok, status, err := svc.IsClearedFor(investor.ID, models.AssetCategoryCommodity)
		testutil.AssertNoError(t, err)
		if ok {
			t.Error("unverified investor must not be cleared")
		}
		if status != models.ComplianceStatusUnverified {
			t.Errorf("expected unverified status reported, got %s", status)
		}
	})
}

func TestReduceStatus(t *testing.T) {
	required := []string{"aml", "kyc"}

	cases := []struct {
		name   string
		checks []models.ComplianceCheck
		want   models.ComplianceStatus
	}{
		{"no_checks", nil, models.ComplianceStatusUnverified},
		{
			"any_failed_rejects",
			[]models.ComplianceCheck{
				{Name: "aml", Result: models.CheckResultPassed},
				{Name: "kyc", Result: models.CheckResultFailed},
			},
			models.ComplianceStatusRejected,
		},
		{
			"all_required_passed",
			[]models.ComplianceCheck{
				{Name: "aml", Result: models.CheckResultPassed},
				{Name: "kyc", Result: models.CheckResultPassed},
			},
			models.ComplianceStatusCleared,
		},
		{
			"partial_is_pending",
			[]models.ComplianceCheck{
				{Name: "aml", Result: models.CheckResultPassed},
			},
			models.ComplianceStatusPending,
		},
		{
			"pending_required_check",
			[]models.ComplianceCheck{
				{Name: "aml", Result: models.CheckResultPassed},
				{Name: "kyc", Result: models.CheckResultPending},
			},
			models.ComplianceStatusPending,
		},
		{
			"extra_check_does_not_clear",
			[]models.ComplianceCheck{
				{Name: "provenance", Result: models.CheckResultPassed},
			},
			models.ComplianceStatusPending,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := reduceStatus(tc.checks, required); got != tc.want {
				t.Errorf("expected %s, got %s", tc.want, got)
			}
		})
	}
}
