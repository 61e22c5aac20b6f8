package services

import (
	"testing"
	"time"

	"tessera/internal/models"
	"tessera/internal/testutil"
)

func TestDeclareSchedule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := NewLedgerService(db, 2*time.Second, 4)
	svc := NewDividendService(db, ledger)
	asset := testutil.CreateTestAsset(t, db, 100)

	t.Run("create_then_replace", func(t *testing.T) {
		first := time.Now().Add(24 * time.Hour)
		schedule, err := svc.DeclareSchedule(asset.ID, 100, models.DividendFrequencyMonthly, first)
		testutil.AssertNoError(t, err)
		if schedule.PerTokenAmount != 100 {
			t.Errorf("expected per-token amount 100, got %d", schedule.PerTokenAmount)
		}

		// Declaring again replaces rather than duplicating.
		replaced, err := svc.DeclareSchedule(asset.ID, 200, models.DividendFrequencyQuarterly, first)
		testutil.AssertNoError(t, err)
		if replaced.ID != schedule.ID {
			t.Errorf("expected the same schedule row, got %s and %s", schedule.ID, replaced.ID)
		}
		if replaced.PerTokenAmount != 200 || replaced.Frequency != models.DividendFrequencyQuarterly {
			t.Errorf("expected updated schedule, got %+v", replaced)
		}

		var count int64
		db.Model(&models.DividendSchedule{}).Where("asset_id = ?", asset.ID).Count(&count)
		if count != 1 {
			t.Errorf("expected one schedule per asset, got %d", count)
		}
	})

	t.Run("invalid_amount", func(t *testing.T) {
		_, err := svc.DeclareSchedule(asset.ID, 0, models.DividendFrequencyMonthly, time.Now())
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("unknown_asset", func(t *testing.T) {
		_, err := svc.DeclareSchedule("no-such-asset", 100, models.DividendFrequencyMonthly, time.Now())
		testutil.AssertAppError(t, err, "UNKNOWN_ASSET")
	})
}

func TestGetSchedule(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)
	ledger := NewLedgerService(db, 2*time.Second, 4)
	svc := NewDividendService(db, ledger)
	asset := testutil.CreateTestAsset(t, db, 100)

	_, err := svc.GetSchedule(asset.ID)
	testutil.AssertAppError(t, err, "SCHEDULE_NOT_FOUND")

	_, err = svc.DeclareSchedule(asset.ID, 75, models.DividendFrequencyAnnual, time.Now().Add(time.Hour))
	testutil.AssertNoError(t, err)

	schedule, err := svc.GetSchedule(asset.ID)
	testutil.AssertNoError(t, err)
	if schedule.PerTokenAmount != 75 {
		t.Errorf("expected per-token amount 75, got %d", schedule.PerTokenAmount)
	}
}

func TestRunDue(t *testing.T) {
	t.Run("pays_due_and_advances", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db, 2*time.Second, 4)
		svc := NewDividendService(db, ledger)
		asset := testutil.CreateTestAsset(t, db, 1000)
		investor := testutil.CreateTestInvestor(t, db)
		testutil.GiveTokens(t, db, investor.ID, asset.ID, 80)

		due := time.Now().Add(-time.Hour)
		schedule, err := svc.DeclareSchedule(asset.ID, 10, models.DividendFrequencyMonthly, due)
		testutil.AssertNoError(t, err)

		runs, err := svc.RunDue(time.Now())
		testutil.AssertNoError(t, err)
		if len(runs) != 1 {
			t.Fatalf("expected one payout run, got %d", len(runs))
		}
		if runs[0].Err != "" {
			t.Fatalf("unexpected run error: %s", runs[0].Err)
		}
		if len(runs[0].Result.Credited) != 1 {
			t.Errorf("expected one credit, got %d", len(runs[0].Result.Credited))
		}

		updated, err := svc.GetSchedule(asset.ID)
		testutil.AssertNoError(t, err)
		wantNext := schedule.Frequency.Advance(due)
		if !updated.NextPayoutAt.Equal(wantNext) {
			t.Errorf("expected next payout advanced to %v, got %v", wantNext, updated.NextPayoutAt)
		}
	})

	t.Run("rerun_before_next_date_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db, 2*time.Second, 4)
		svc := NewDividendService(db, ledger)
		asset := testutil.CreateTestAsset(t, db, 1000)
		investor := testutil.CreateTestInvestor(t, db)
		testutil.GiveTokens(t, db, investor.ID, asset.ID, 50)

		// Monthly schedule due an hour ago: the first run advances it a
		// month, so the second run finds nothing due.
		_, err := svc.DeclareSchedule(asset.ID, 10, models.DividendFrequencyMonthly, time.Now().Add(-time.Hour))
		testutil.AssertNoError(t, err)

		_, err = svc.RunDue(time.Now())
		testutil.AssertNoError(t, err)

		runs, err := svc.RunDue(time.Now())
		testutil.AssertNoError(t, err)
		if len(runs) != 0 {
			t.Errorf("expected no due schedules on rerun, got %d", len(runs))
		}

		var rows int64
		db.Model(&models.LedgerTransaction{}).
			Where("investor_id = ? AND type = ?", investor.ID, models.LedgerTransactionDividend).
			Count(&rows)
		if rows != 1 {
			t.Errorf("expected a single dividend credit, got %d", rows)
		}
	})

	t.Run("nothing_due", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		ledger := NewLedgerService(db, 2*time.Second, 4)
		svc := NewDividendService(db, ledger)
		asset := testutil.CreateTestAsset(t, db, 100)

		_, err := svc.DeclareSchedule(asset.ID, 10, models.DividendFrequencyAnnual, time.Now().Add(24*time.Hour))
		testutil.AssertNoError(t, err)

		runs, err := svc.RunDue(time.Now())
		testutil.AssertNoError(t, err)
		if len(runs) != 0 {
			t.Errorf("expected no runs, got %d", len(runs))
		}
	})
}
