package handlers

import (
	"errors"
	"net/http"

	"github.com/cartblanche/cartblanche-api/internal/authorizer"
	"github.com/cartblanche/cartblanche-api/internal/logger"
	"github.com/cartblanche/cartblanche-api/internal/mandate"
	"github.com/cartblanche/cartblanche-api/internal/settlement"
	"github.com/cartblanche/cartblanche-api/internal/vault"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CommonServices holds common dependencies used across handlers
type CommonServices struct {
	vault      *vault.BudgetVault
	authorizer *authorizer.Authorizer
	executor   *settlement.Executor
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string `json:"message"`
}

// NewCommonServices creates a new instance of CommonServices
func NewCommonServices(budgetVault *vault.BudgetVault, auth *authorizer.Authorizer, executor *settlement.Executor) *CommonServices {
	return &CommonServices{
		vault:      budgetVault,
		authorizer: auth,
		executor:   executor,
	}
}

// sendError is a helper function that combines logging and error response
// It logs the error with the given message and sends a JSON error response
func sendError(c *gin.Context, statusCode int, message string, err error) {
	logger.Error(message,
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
	)
	c.JSON(statusCode, ErrorResponse{Error: message, Kind: errorKind(err)})
}

// handleDomainError maps a domain error to its HTTP status and responds.
// All domain errors are terminal; none are retried here or upstream.
func handleDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, mandate.ErrMalformedOffer),
		errors.Is(err, mandate.ErrUnsupportedChain),
		errors.Is(err, settlement.ErrAmountMismatch),
		errors.Is(err, settlement.ErrMissingIdempotencyKey),
		errors.Is(err, vault.ErrInvalidCiphertext),
		errors.Is(err, authorizer.ErrInvalidSignatureEncoding):
		sendError(c, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, authorizer.ErrRecoveryFailed),
		errors.Is(err, authorizer.ErrSignerMismatch):
		sendError(c, http.StatusUnauthorized, err.Error(), err)
	case errors.Is(err, settlement.ErrDuplicateSettlement):
		sendError(c, http.StatusConflict, err.Error(), err)
	default:
		sendError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}

// errorKind returns the taxonomy name of a domain error, empty otherwise.
func errorKind(err error) string {
	switch {
	case errors.Is(err, mandate.ErrMalformedOffer):
		return "MalformedOffer"
	case errors.Is(err, mandate.ErrUnsupportedChain):
		return "UnsupportedChain"
	case errors.Is(err, settlement.ErrAmountMismatch):
		return "AmountMismatch"
	case errors.Is(err, settlement.ErrMissingIdempotencyKey):
		return "MissingIdempotencyKey"
	case errors.Is(err, settlement.ErrDuplicateSettlement):
		return "DuplicateSettlement"
	case errors.Is(err, authorizer.ErrInvalidSignatureEncoding):
		return "InvalidSignatureEncoding"
	case errors.Is(err, authorizer.ErrRecoveryFailed):
		return "RecoveryFailed"
	case errors.Is(err, authorizer.ErrSignerMismatch):
		return "SignerMismatch"
	case errors.Is(err, vault.ErrInvalidCiphertext):
		return "InvalidCiphertext"
	}
	return ""
}

// sendSuccess is a helper function that sends a success response
func sendSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}
