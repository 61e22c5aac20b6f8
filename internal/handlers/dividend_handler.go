package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
	"tessera/internal/services"
)

// DividendHandler handles dividend schedule requests.
type DividendHandler struct {
	dividendService services.DividendServicer
	auditService    services.AuditServicer
}

// NewDividendHandler creates a new DividendHandler.
func NewDividendHandler(dividendService services.DividendServicer, auditService services.AuditServicer) *DividendHandler {
	return &DividendHandler{dividendService: dividendService, auditService: auditService}
}

// DeclareScheduleRequest represents the request payload for declaring a
// dividend schedule.
type DeclareScheduleRequest struct {
	PerTokenAmount int64                    `json:"per_token_amount" binding:"required,gt=0"`
	Frequency      models.DividendFrequency `json:"frequency" binding:"required,dividend_frequency"`
	FirstPayoutAt  time.Time                `json:"first_payout_at"`
}

// DeclareSchedule handles declaring or replacing an asset's dividend schedule.
func (h *DividendHandler) DeclareSchedule(c *gin.Context) {
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

	var req DeclareScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	schedule, err := h.dividendService.DeclareSchedule(assetID, req.PerTokenAmount, req.Frequency, req.FirstPayoutAt)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "DECLARE_DIVIDEND", "asset", assetID, c.ClientIP(),
		map[string]interface{}{"per_token_amount": req.PerTokenAmount, "frequency": string(req.Frequency)})

	c.JSON(http.StatusCreated, gin.H{"schedule": schedule})
}

// GetSchedule handles retrieving an asset's dividend schedule.
func (h *DividendHandler) GetSchedule(c *gin.Context) {
	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	schedule, err := h.dividendService.GetSchedule(assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"schedule": schedule})
}

// RunDue handles an on-demand payout run of every due schedule. The cron
// runner calls the same service path; this endpoint exists for operators to
// retry a partially-completed payout without waiting a cycle.
func (h *DividendHandler) RunDue(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	runs, err := h.dividendService.RunDue(time.Now())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "RUN_DIVIDENDS", "dividend", "", c.ClientIP(),
		map[string]interface{}{"runs": len(runs)})

	c.JSON(http.StatusOK, gin.H{"runs": runs})
}
