package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tessera/internal/errors"
	"tessera/internal/services"
)

// TransferHandler handles compliance-gated trading requests.
type TransferHandler struct {
	transferService services.TransferServicer
	ledgerService   services.LedgerServicer
	auditService    services.AuditServicer
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferService services.TransferServicer, ledgerService services.LedgerServicer, auditService services.AuditServicer) *TransferHandler {
	return &TransferHandler{transferService: transferService, ledgerService: ledgerService, auditService: auditService}
}

// PurchaseRequest represents the request payload for a primary purchase.
type PurchaseRequest struct {
	BuyerID  string `json:"buyer_id" binding:"required,uuid"`
	AssetID  string `json:"asset_id" binding:"required,uuid"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

// SaleRequest represents the request payload for selling back to the treasury.
type SaleRequest struct {
	SellerID string `json:"seller_id" binding:"required,uuid"`
	AssetID  string `json:"asset_id" binding:"required,uuid"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

// TransferRequest represents the request payload for a peer transfer.
type TransferRequest struct {
	FromID   string `json:"from_id" binding:"required,uuid"`
	ToID     string `json:"to_id" binding:"required,uuid"`
	AssetID  string `json:"asset_id" binding:"required,uuid"`
	Quantity int64  `json:"quantity" binding:"required,gt=0"`
}

// Purchase handles buying tokens from the treasury pool.
func (h *TransferHandler) Purchase(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.transferService.Purchase(req.BuyerID, req.AssetID, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "PURCHASE", "transaction", record.ID, c.ClientIP(),
		map[string]interface{}{"buyer_id": req.BuyerID, "asset_id": req.AssetID, "quantity": req.Quantity})

	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

// Sell handles selling tokens back to the treasury pool.
func (h *TransferHandler) Sell(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.transferService.Sell(req.SellerID, req.AssetID, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "SALE", "transaction", record.ID, c.ClientIP(),
		map[string]interface{}{"seller_id": req.SellerID, "asset_id": req.AssetID, "quantity": req.Quantity})

	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

// Transfer handles a peer-to-peer transfer between two investors.
func (h *TransferHandler) Transfer(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.transferService.Transfer(req.FromID, req.ToID, req.AssetID, req.Quantity)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "TRANSFER", "transaction", record.ID, c.ClientIP(),
		map[string]interface{}{"from_id": req.FromID, "to_id": req.ToID, "asset_id": req.AssetID, "quantity": req.Quantity})

	c.JSON(http.StatusCreated, gin.H{"transaction": record})
}

// GetBalance handles reading one investor's balance of one asset.
func (h *TransferHandler) GetBalance(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	assetID, err := parsePathID(c, "assetID")
	if err != nil {
		respondWithError(c, err)
		return
	}

	quantity, err := h.ledgerService.GetBalance(investorID, assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor_id": investorID, "asset_id": assetID, "quantity": quantity})
}

// GetInvestorTransactions handles listing the transaction log for an investor.
func (h *TransferHandler) GetInvestorTransactions(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var query TransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.ledgerService.ListInvestorTransactions(investorID, query.PageRequest, query.filter())
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
