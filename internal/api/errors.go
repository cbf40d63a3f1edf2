package api

import (
	"errors"                        // Error matching
	"net/http"                      // HTTP status codes
	"wallet_ledger/internal/ledger" // Ledger error taxonomy

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// statusFor maps a ledger failure to its HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrBlocked):
		return http.StatusLocked
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrLimitExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ledger.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidOperation):
		return http.StatusBadRequest
	default:
		return http.StatusServiceUnavailable
	}
}

// respondError writes err as a JSON error body with its mapped status
func respondError(c *gin.Context, err error) {
	status := statusFor(err) // HTTP status for the error class
	body := gin.H{
		"error": err.Error(),           // Human readable message
		"kind":  ledger.ErrorKind(err), // Stable error class
	}
	// Limit breaches report which cap was hit and what is left
	var limitErr *ledger.LimitError
	if errors.As(err, &limitErr) {
		body["limit"] = limitErr.Kind                   // Breached cap
		body["cap"] = limitErr.Cap.String()             // Configured cap
		body["remaining"] = limitErr.Remaining.String() // Allowance left in the window
	}
	// Identify the wallet that caused the failure
	var walletErr *ledger.WalletError
	if errors.As(err, &walletErr) {
		body["party"] = walletErr.Party // sender, receiver, user or agent
	}
	// Hide infrastructure details from clients
	if status == http.StatusServiceUnavailable {
		logrus.WithField("error", err.Error()).Error("Request failed") // Log the cause
		body["error"] = "Service temporarily unavailable"              // Generic message
	}
	c.JSON(status, body)
}
