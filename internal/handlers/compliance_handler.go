package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "tessera/internal/errors"
	"tessera/internal/models"
	"tessera/internal/services"
)

// ComplianceHandler handles investor onboarding and compliance requests.
type ComplianceHandler struct {
	complianceService services.ComplianceServicer
	auditService      services.AuditServicer
}

// NewComplianceHandler creates a new ComplianceHandler.
func NewComplianceHandler(complianceService services.ComplianceServicer, auditService services.AuditServicer) *ComplianceHandler {
	return &ComplianceHandler{complianceService: complianceService, auditService: auditService}
}

// OnboardRequest represents the request payload for onboarding an investor.
type OnboardRequest struct {
	Name  string `json:"name" binding:"required,min=1,max=200"`
	Email string `json:"email" binding:"required,email"`
}

// SubmitCheckRequest represents one compliance check result.
type SubmitCheckRequest struct {
	Name   string             `json:"name" binding:"required,min=1,max=50"`
	Result models.CheckResult `json:"result" binding:"required,check_result"`
}

// SuspendRequest represents the request payload for suspending an investor.
type SuspendRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// Onboard handles registering a new investor.
func (h *ComplianceHandler) Onboard(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req OnboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	investor, err := h.complianceService.OnboardInvestor(req.Name, req.Email)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "ONBOARD_INVESTOR", "investor", investor.ID, c.ClientIP(),
		map[string]interface{}{"email": req.Email})

	c.JSON(http.StatusCreated, gin.H{"investor": investor})
}

// GetInvestor handles retrieving an investor with their compliance record.
func (h *ComplianceHandler) GetInvestor(c *gin.Context) {
	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	investor, err := h.complianceService.GetInvestor(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	record, err := h.complianceService.GetRecord(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"investor": investor, "compliance": record})
}

// SubmitCheck handles recording a compliance check result for an investor.
func (h *ComplianceHandler) SubmitCheck(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SubmitCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.complianceService.SubmitCheck(investorID, req.Name, req.Result)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "SUBMIT_CHECK", "investor", investorID, c.ClientIP(),
		map[string]interface{}{"check": req.Name, "result": string(req.Result), "status": string(record.Status)})

	c.JSON(http.StatusOK, gin.H{"compliance": record})
}

// Reopen handles moving a rejected investor back into review.
func (h *ComplianceHandler) Reopen(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	record, err := h.complianceService.Reopen(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "REOPEN_COMPLIANCE", "investor", investorID, c.ClientIP(),
		map[string]interface{}{"status": string(record.Status)})

	c.JSON(http.StatusOK, gin.H{"compliance": record})
}

// Suspend handles suspending an investor from trading.
func (h *ComplianceHandler) Suspend(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req SuspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	record, err := h.complianceService.Suspend(investorID, req.Reason)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "SUSPEND_INVESTOR", "investor", investorID, c.ClientIP(),
		map[string]interface{}{"reason": req.Reason})

	c.JSON(http.StatusOK, gin.H{"compliance": record})
}

// Reinstate handles lifting an investor's suspension.
func (h *ComplianceHandler) Reinstate(c *gin.Context) {
	actor, err := getActor(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	investorID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	record, err := h.complianceService.Reinstate(investorID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actor, "REINSTATE_INVESTOR", "investor", investorID, c.ClientIP(),
		map[string]interface{}{"status": string(record.Status)})

	c.JSON(http.StatusOK, gin.H{"compliance": record})
}
