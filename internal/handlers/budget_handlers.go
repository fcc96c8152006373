package handlers

import (
	"net/http"

	"github.com/cartblanche/cartblanche-api/internal/vault"
	"github.com/gin-gonic/gin"
)

// BudgetHandler handles spending limit confidentiality operations
type BudgetHandler struct {
	common *CommonServices
}

// NewBudgetHandler creates a new BudgetHandler instance
func NewBudgetHandler(common *CommonServices) *BudgetHandler {
	return &BudgetHandler{common: common}
}

// EncryptBudgetRequest is the request body for limit encryption
type EncryptBudgetRequest struct {
	Limit vault.SpendingLimit `json:"limit" binding:"required"`
}

// DecryptBudgetRequest is the request body for limit decryption
type DecryptBudgetRequest struct {
	EncryptedLimit *vault.EncryptedLimit `json:"encryptedLimit" binding:"required"`
}

// EncryptBudget encrypts a requester's spending limit so merchant-facing
// stages only ever see ciphertext
func (h *BudgetHandler) EncryptBudget(c *gin.Context) {
	var req EncryptBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	encrypted, err := h.common.vault.EncryptLimit(req.Limit)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, encrypted)
}

// DecryptBudget recovers a spending limit for mandate validation on the
// requester's side of the trust boundary
func (h *BudgetHandler) DecryptBudget(c *gin.Context) {
	var req DecryptBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limit, err := h.common.vault.DecryptLimit(req.EncryptedLimit)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, limit)
}
