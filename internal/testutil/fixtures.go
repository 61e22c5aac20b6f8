package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"tessera/internal/config"
	"tessera/internal/models"

	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestConfig returns a deterministic configuration for service tests.
func TestConfig() *config.Config {
	return &config.Config{
		LedgerLockTimeout: 2 * time.Second,
		DividendWorkers:   4,
		RequiredChecks:    []string{"aml", "kyc", "cft", "sanctions", "pep"},
		CategoryChecks: map[string][]string{
			"fine_art":       {"provenance"},
			"private_equity": {"accreditation"},
		},
	}
}

// SeedTreasury creates the reserved treasury investor if it does not exist.
func SeedTreasury(t *testing.T, db *gorm.DB) {
	t.Helper()

	treasury := &models.Investor{
		Name:  "Treasury",
		Email: "treasury@tessera.internal",
	}
	treasury.ID = models.TreasuryInvestorID
	if err := db.FirstOrCreate(treasury, "id = ?", models.TreasuryInvestorID).Error; err != nil {
		t.Fatalf("failed to seed treasury investor: %v", err)
	}
}

// CreateTestInvestor creates an investor with a unique email and an
// unverified compliance record.
func CreateTestInvestor(t *testing.T, db *gorm.DB) *models.Investor {
	t.Helper()

	n := nextID()
	investor := &models.Investor{
		Name:  fmt.Sprintf("Test Investor %d", n),
		Email: fmt.Sprintf("investor%d@test.com", n),
	}
	if err := db.Create(investor).Error; err != nil {
		t.Fatalf("failed to create test investor: %v", err)
	}

	record := &models.ComplianceRecord{
		InvestorID:      investor.ID,
		Status:          models.ComplianceStatusUnverified,
		StatusChangedAt: time.Now(),
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("failed to create compliance record: %v", err)
	}
	return investor
}

// CreateClearedInvestor creates an investor whose compliance record is
// cleared with every base required check passed.
func CreateClearedInvestor(t *testing.T, db *gorm.DB) *models.Investor {
	t.Helper()

	investor := CreateTestInvestor(t, db)
	ClearInvestor(t, db, investor.ID)
	return investor
}

// ClearInvestor marks every base required check passed and sets the derived
// status to cleared.
func ClearInvestor(t *testing.T, db *gorm.DB, investorID string) {
	t.Helper()

	var record models.ComplianceRecord
	if err := db.Where("investor_id = ?", investorID).First(&record).Error; err != nil {
		t.Fatalf("failed to load compliance record: %v", err)
	}

	for _, name := range TestConfig().RequiredChecks {
		check := &models.ComplianceCheck{
			RecordID: record.ID,
			Name:     name,
			Result:   models.CheckResultPassed,
		}
		if err := db.Create(check).Error; err != nil {
			t.Fatalf("failed to create compliance check: %v", err)
		}
	}

	if err := db.Model(&record).Updates(map[string]interface{}{
		"status":            models.ComplianceStatusCleared,
		"status_changed_at": time.Now(),
	}).Error; err != nil {
		t.Fatalf("failed to clear investor: %v", err)
	}
}

// CreateTestAsset creates an asset with the full supply pooled in the treasury.
func CreateTestAsset(t *testing.T, db *gorm.DB, totalSupply int64) *models.Asset {
	t.Helper()
	return CreateTestAssetWithCategory(t, db, totalSupply, models.AssetCategoryRealEstate)
}

// CreateTestAssetWithCategory creates an asset of the given category with
// the full supply pooled in the treasury.
func CreateTestAssetWithCategory(t *testing.T, db *gorm.DB, totalSupply int64, category models.AssetCategory) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Name:          fmt.Sprintf("Test Asset %d", nextID()),
		Category:      category,
		TotalSupply:   totalSupply,
		PricePerToken: 10000, // $100.00 per token
		LaunchedAt:    time.Now(),
		IsActive:      true,
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}

	pool := &models.TokenBalance{
		InvestorID: models.TreasuryInvestorID,
		AssetID:    asset.ID,
		Quantity:   totalSupply,
	}
	if err := db.Create(pool).Error; err != nil {
		t.Fatalf("failed to create treasury pool balance: %v", err)
	}
	return asset
}

// GiveTokens moves quantity tokens from the treasury pool to an investor,
// preserving the conservation invariant. Fixture-only shortcut around the
// transfer path.
func GiveTokens(t *testing.T, db *gorm.DB, investorID, assetID string, quantity int64) {
	t.Helper()

	var pool models.TokenBalance
	if err := db.Where("investor_id = ? AND asset_id = ?", models.TreasuryInvestorID, assetID).
		First(&pool).Error; err != nil {
		t.Fatalf("failed to load treasury pool: %v", err)
	}
	if pool.Quantity < quantity {
		t.Fatalf("treasury pool too small: have %d, need %d", pool.Quantity, quantity)
	}

	if err := db.Model(&pool).Update("quantity", pool.Quantity-quantity).Error; err != nil {
		t.Fatalf("failed to decrement pool: %v", err)
	}

	balance := &models.TokenBalance{
		InvestorID: investorID,
		AssetID:    assetID,
		Quantity:   quantity,
	}
	if err := db.Create(balance).Error; err != nil {
		t.Fatalf("failed to create holding: %v", err)
	}
}

// RecordPrice appends a market price entry for an asset.
func RecordPrice(t *testing.T, db *gorm.DB, assetID string, price int64, recordedAt time.Time) {
	t.Helper()

	entry := &models.AssetPrice{AssetID: assetID, Price: price, RecordedAt: recordedAt}
	if err := db.Create(entry).Error; err != nil {
		t.Fatalf("failed to record test price: %v", err)
	}
}
