package services

import (
	"time"

	"gorm.io/gorm"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
)

// priceService stores market prices reported by an external feed. The
// latest entry per asset is that asset's current price.
type priceService struct {
	db     *gorm.DB
	ledger LedgerServicer
}

// NewPriceService creates a new PriceServicer.
func NewPriceService(db *gorm.DB, ledger LedgerServicer) PriceServicer {
	return &priceService{db: db, ledger: ledger}
}

// RecordPrice appends a price entry for an asset.
func (s *priceService) RecordPrice(assetID string, price int64, recordedAt time.Time) (*models.AssetPrice, error) {
	if price <= 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "price must be greater than zero")
	}
	if _, err := s.ledger.GetAsset(assetID); err != nil {
		return nil, err
	}
	if recordedAt.IsZero() {
		recordedAt = time.Now()
	}

	entry := &models.AssetPrice{AssetID: assetID, Price: price, RecordedAt: recordedAt}
	if err := s.db.Create(entry).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return entry, nil
}

// CurrentPrice returns the latest market price for an asset, falling back
// to the issuance price before any feed entry exists.
func (s *priceService) CurrentPrice(assetID string) (int64, error) {
	asset, err := s.ledger.GetAsset(assetID)
	if err != nil {
		return 0, err
	}

	prices, err := s.LatestPrices([]string{assetID})
	if err != nil {
		return 0, err
	}
	if price, ok := prices[assetID]; ok {
		return price, nil
	}
	return asset.PricePerToken, nil
}

// LatestPrices fetches the most recent price for each asset ID. Assets with
// no price entries are not included in the map.
func (s *priceService) LatestPrices(assetIDs []string) (map[string]int64, error) {
	if len(assetIDs) == 0 {
		return map[string]int64{}, nil
	}

	type priceRow struct {
		AssetID string
		Price   int64
	}
	var rows []priceRow

	subq := s.db.Table("asset_prices").
		Select("asset_id, MAX(recorded_at) AS max_recorded").
		Where("asset_id IN ?", assetIDs).
		Group("asset_id")

	if err := s.db.Table("asset_prices ap").
		Select("ap.asset_id, ap.price").
		Joins("INNER JOIN (?) latest ON ap.asset_id = latest.asset_id AND ap.recorded_at = latest.max_recorded", subq).
		Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := make(map[string]int64, len(rows))
	for _, r := range rows {
		result[r.AssetID] = r.Price
	}
	return result, nil
}
