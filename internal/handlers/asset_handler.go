package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
	"tessera/internal/pagination"
	"tessera/internal/services"
)

// AssetHandler handles asset lifecycle and market price requests.
type AssetHandler struct {
	ledgerService services.LedgerServicer
	priceService  services.PriceServicer
	auditService  services.AuditServicer
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(ledgerService services.LedgerServicer, priceService services.PriceServicer, auditService services.AuditServicer) *AssetHandler {
	return &AssetHandler{ledgerService: ledgerService, priceService: priceService, auditService: auditService}
}

// IssueAssetRequest represents the request payload for tokenizing an asset.
type IssueAssetRequest struct {
	Name          string               `json:"name" binding:"required,min=1,max=200"`
	Category      models.AssetCategory `json:"category" binding:"required,asset_category"`
	TotalSupply   int64                `json:"total_supply" binding:"required,gt=0"`
	PricePerToken int64                `json:"price_per_token" binding:"required,gt=0"`
}

// RecordPriceRequest represents a price entry reported by the market feed.
type RecordPriceRequest struct {
	Price      int64     `json:"price" binding:"required,gt=0"`
	RecordedAt time.Time `json:"recorded_at"`
}

// ListAssetsQuery holds the query parameters for listing assets.
type ListAssetsQuery struct {
	pagination.PageRequest
	Category string `form:"category" binding:"omitempty,asset_category"`
}

// TransactionsQuery holds the query parameters for listing ledger transactions.
type TransactionsQuery struct {
	pagination.PageRequest
	FromDate   *time.Time `form:"from_date" binding:"omitempty"`
	ToDate     *time.Time `form:"to_date" binding:"omitempty"`
	Type       string     `form:"type" binding:"omitempty,transaction_type"`
	InvestorID string     `form:"investor_id" binding:"omitempty,uuid"`
}

func (q *TransactionsQuery) filter() services.TransactionFilter {
	filter := services.TransactionFilter{FromDate: q.FromDate, ToDate: q.ToDate}
	if q.Type != "" {
		t := models.LedgerTransactionType(q.Type)
		filter.Type = &t
	}
	if q.InvestorID != "" {
		filter.InvestorID = &q.InvestorID
	}
	return filter
}

// IssueAsset handles tokenizing a new asset with a fixed supply.
func (h *AssetHandler) IssueAsset(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req IssueAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	asset, err := h.ledgerService.IssueAsset(req.Name, req.Category, req.TotalSupply, req.PricePerToken)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "ISSUE_ASSET", "asset", asset.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "category": string(req.Category), "total_supply": req.TotalSupply})

	c.JSON(http.StatusCreated, gin.H{"asset": asset})
}

// AssetListing pairs an asset with its marketplace figures: tokens still
// available in the treasury pool and the latest market price.
type AssetListing struct {
	models.Asset
	Available    int64 `json:"available"`
	CurrentPrice int64 `json:"current_price"`
}

// ListAssets handles listing assets, optionally filtered by category.
func (h *AssetHandler) ListAssets(c *gin.Context) {
	var query ListAssetsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var category *models.AssetCategory
	if query.Category != "" {
		cat := models.AssetCategory(query.Category)
		category = &cat
	}

	result, err := h.ledgerService.ListAssets(query.PageRequest, category)
	if err != nil {
		respondWithError(c, err)
		return
	}

	ids := make([]string, len(result.Data))
	for i := range result.Data {
		ids[i] = result.Data[i].ID
	}
	prices, err := h.priceService.LatestPrices(ids)
	if err != nil {
		respondWithError(c, err)
		return
	}

	listings := make([]AssetListing, len(result.Data))
	for i, asset := range result.Data {
		available, err := h.ledgerService.GetBalance(models.TreasuryInvestorID, asset.ID)
		if err != nil {
			respondWithError(c, err)
			return
		}
		price, ok := prices[asset.ID]
		if !ok {
			price = asset.PricePerToken
		}
		listings[i] = AssetListing{Asset: asset, Available: available, CurrentPrice: price}
	}

	resp := pagination.NewPageResponse(listings, result.Page, result.PageSize, result.TotalItems)
	c.JSON(http.StatusOK, resp)
}

// GetAsset handles retrieving one asset with its current market price.
func (h *AssetHandler) GetAsset(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.ledgerService.GetAsset(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	price, err := h.priceService.CurrentPrice(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"asset": asset, "current_price": price})
}

// DeactivateAsset handles retiring an asset from primary sales.
func (h *AssetHandler) DeactivateAsset(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	asset, err := h.ledgerService.DeactivateAsset(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "DEACTIVATE_ASSET", "asset", assetID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"asset": asset})
}

// GetHolders handles listing every investor holding tokens of an asset.
func (h *AssetHandler) GetHolders(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	holders, err := h.ledgerService.ListHolders(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"holders": holders})
}

// GetAssetTransactions handles listing the transaction log for an asset.
func (h *AssetHandler) GetAssetTransactions(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query TransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.ListAssetTransactions(assetID, query.PageRequest, query.filter())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// RecordPrice handles a price entry posted by the external market feed.
func (h *AssetHandler) RecordPrice(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	entry, err := h.priceService.RecordPrice(assetID, req.Price, req.RecordedAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"price": entry})
}

// VerifyAsset handles an on-demand conservation audit of one asset.
func (h *AssetHandler) VerifyAsset(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.ledgerService.VerifyConservation(assetID); err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
