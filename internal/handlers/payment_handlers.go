package handlers

import (
	"net/http"

	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles mandate authorization and settlement
type PaymentHandler struct {
	common *CommonServices
}

// NewPaymentHandler creates a new PaymentHandler instance
func NewPaymentHandler(common *CommonServices) *PaymentHandler {
	return &PaymentHandler{common: common}
}

// AuthorizeRequest is the request body for mandate authorization
type AuthorizeRequest struct {
	Mandate        *mandate.CartMandate `json:"mandate" binding:"required"`
	Signature      string               `json:"signature" binding:"required"`
	ExpectedSigner string               `json:"expectedSigner,omitempty"`
}

// SettleRequest is the request body for settlement. The mandate and
// signature are re-verified server side; a previously returned
// AuthorizedMandate is never trusted as-is.
type SettleRequest struct {
	Mandate        *mandate.CartMandate `json:"mandate" binding:"required"`
	Signature      string               `json:"signature" binding:"required"`
	ExpectedSigner string               `json:"expectedSigner,omitempty"`
	IdempotencyKey string               `json:"idempotencyKey" binding:"required"`
}

// AuthorizeMandate verifies a requester signature over a purchase mandate
// and returns the authorized mandate with the recovered signer identity
func (h *PaymentHandler) AuthorizeMandate(c *gin.Context) {
	var req AuthorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	authorized, err := h.common.authorizer.Verify(req.Mandate, req.Signature, req.ExpectedSigner)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, authorized)
}

// SettleMandate verifies the mandate signature and executes one transfer per
// line item, returning one receipt per item. Partial failure is surfaced in
// the receipt list, never collapsed into a single pass/fail flag
func (h *PaymentHandler) SettleMandate(c *gin.Context) {
	var req SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	authorized, err := h.common.authorizer.Verify(req.Mandate, req.Signature, req.ExpectedSigner)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	receipts, err := h.common.executor.Settle(c.Request.Context(), authorized, req.IdempotencyKey)
	if err != nil {
		handleDomainError(c, err)
		return
	}

	sendSuccess(c, http.StatusOK, gin.H{
		"signer":   authorized.Signer,
		"receipts": receipts,
	})
}
