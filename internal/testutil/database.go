// Package testutil provides test helpers for setting up in-memory databases,
// creating fixtures, and making assertions.
package testutil

import (
	"testing"

	"tessera/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// allModels is the list of all GORM models to auto-migrate in tests.
var allModels = []interface{}{
	&models.Investor{},
	&models.Asset{},
	&models.TokenBalance{},
	&models.LedgerTransaction{},
	&models.LedgerSequence{},
	&models.ComplianceRecord{},
	&models.ComplianceCheck{},
	&models.DividendSchedule{},
	&models.AssetPrice{},
	&models.AuditLog{},
}

// SetupTestDB creates an in-memory SQLite database with all models migrated
// and the treasury investor seeded.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	// AutoMigrate cannot express the partial unique index from migrations
	// that dedupes dividend credits per (payout_ref, investor_id).
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_payout_investor
		ON ledger_transactions (payout_ref, investor_id)
		WHERE payout_ref IS NOT NULL AND payout_ref <> ''`).Error; err != nil {
		t.Fatalf("failed to create payout index: %v", err)
	}

	SeedTreasury(t, db)
	return db
}

// TeardownTestDB closes the underlying database connection.
func TeardownTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()

	sqlDB, err := db.DB()
	if err != nil {
		t.Errorf("failed to get underlying DB for teardown: %v", err)
		return
	}
	if err := sqlDB.Close(); err != nil {
		t.Errorf("failed to close test database: %v", err)
	}
}
