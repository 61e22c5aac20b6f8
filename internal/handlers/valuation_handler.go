package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tessera/internal/services"
)

// ValuationHandler handles portfolio valuation and yield requests.
type ValuationHandler struct {
	valuationService services.ValuationServicer
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationService services.ValuationServicer) *ValuationHandler {
	return &ValuationHandler{valuationService: valuationService}
}

// GetPortfolio handles retrieving an investor's aggregated portfolio summary.
func (h *ValuationHandler) GetPortfolio(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	summary, err := h.valuationService.PortfolioSummary(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"portfolio": summary})
}

// GetGain handles retrieving FIFO cost-basis gain for one holding.
func (h *ValuationHandler) GetGain(c *gin.Context) {
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

	report, err := h.valuationService.UnrealizedGain(investorID, assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"gain": report})
}

// GetYield handles retrieving the projected annual yield for an asset.
func (h *ValuationHandler) GetYield(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	report, err := h.valuationService.ProjectedYield(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"yield": report})
}
