package api

import (
	"context"                        // Context for Redis operations
	"net/http"                       // HTTP status codes
	"strconv"                        // String conversion
	"time"                           // Date filters
	"wallet_ledger/internal/domain"  // Importing domain models
	"wallet_ledger/internal/storage" // Wallet and transaction stores
	"wallet_ledger/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// BlockRequest toggles the frozen state of a wallet
type BlockRequest struct {
	Blocked *bool `json:"blocked" binding:"required"` // true freezes, false unfreezes
}

// pageFromQuery reads page and page_size, falling back to defaults
func pageFromQuery(c *gin.Context) storage.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))                                        // Requested page
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(storage.DefaultPageSize))) // Requested size
	return storage.NewPage(page, size)
}

// idParam parses the :id path parameter
func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return 0, false
	}
	return uint(id), true
}

// parseTimeParam accepts RFC 3339 timestamps or plain dates
func parseTimeParam(v string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond) // Include the whole day
	}
	return t, nil
}

// ListWalletsHandler returns every wallet, paginated
func ListWalletsHandler(store *storage.Gorm) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := pageFromQuery(c) // Pagination parameters
		wallets, total, err := store.ListWallets(c.Request.Context(), page)
		if err != nil {
			respondError(c, err) // Store failure
			return
		}
		if wallets == nil {
			wallets = []domain.Wallet{} // Render an empty list, not null
		}
		c.JSON(http.StatusOK, gin.H{
			"wallets":     wallets,                // List of wallets
			"page":        page.Number,            // Current page
			"page_size":   page.Size,              // Page size
			"total":       total,                  // Total number of wallets
			"total_pages": page.TotalPages(total), // Total pages
		})
	}
}

// ListTransactionsHandler returns the whole ledger filtered by user_id, type, from and to
func ListTransactionsHandler(store *storage.Gorm) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter storage.TransactionFilter // Query filters
		// Filter by user
		if v := c.Query("user_id"); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
				return
			}
			filter.UserID = uint(id)
		}
		// Filter by type
		if v := c.Query("type"); v != "" {
			filter.Type = domain.TransactionType(v)
		}
		// Filter by date range
		if v := c.Query("from"); v != "" {
			t, err := parseTimeParam(v, false)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from date"})
				return
			}
			filter.From = t
		}
		if v := c.Query("to"); v != "" {
			t, err := parseTimeParam(v, true)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to date"})
				return
			}
			filter.To = t
		}
		page := pageFromQuery(c) // Pagination parameters
		txs, total, err := store.ListTransactions(c.Request.Context(), filter, page)
		if err != nil {
			respondError(c, err) // Store failure
			return
		}
		if txs == nil {
			txs = []domain.Transaction{} // Render an empty list, not null
		}
		c.JSON(http.StatusOK, gin.H{
			"transactions": txs,                    // List of transactions
			"page":         page.Number,            // Current page
			"page_size":    page.Size,              // Page size
			"total":        total,                  // Total number of transactions
			"total_pages":  page.TotalPages(total), // Total pages
		})
	}
}

// BlockWalletHandler freezes or unfreezes a wallet by wallet id
func BlockWalletHandler(store *storage.Gorm, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		walletID, ok := idParam(c) // Wallet ID from path
		if !ok {
			return
		}
		var req BlockRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		wallet, err := store.SetWalletBlocked(c.Request.Context(), walletID, *req.Blocked)
		if err != nil {
			respondError(c, err) // Unknown wallet or store failure
			return
		}
		logrus.WithFields(logrus.Fields{
			"wallet_id": wallet.ID,        // Wallet ID
			"user_id":   wallet.UserID,    // Owner
			"blocked":   wallet.IsBlocked, // New state
		}).Info("Wallet block state changed")
		// Invalidate the owner's cached wallet
		_ = utils.DeleteCache(context.Background(), rdb, utils.WalletCacheKey(wallet.UserID))
		utils.InvalidateUsersAfter(rdb, utils.InvalidationDelay, wallet.UserID) // Drop a copy re-cached by a racing read
		c.JSON(http.StatusOK, gin.H{"message": "Wallet updated", "wallet": wallet})
	}
}

// ApproveAgentHandler approves an agent account
func ApproveAgentHandler(store *storage.Gorm) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c) // Agent ID from path
		if !ok {
			return
		}
		user, err := store.ApproveAgent(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err) // Unknown account, not an agent, or already approved
			return
		}
		logrus.WithField("user_id", user.ID).Info("Agent approved")
		c.JSON(http.StatusOK, gin.H{"message": "Agent approved", "user": user})
	}
}

// SuspendAgentHandler revokes an agent's approval
func SuspendAgentHandler(store *storage.Gorm) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := idParam(c) // Agent ID from path
		if !ok {
			return
		}
		user, err := store.SuspendAgent(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err) // Unknown account, not an agent, or already suspended
			return
		}
		logrus.WithField("user_id", user.ID).Info("Agent suspended")
		c.JSON(http.StatusOK, gin.H{"message": "Agent suspended", "user": user})
	}
}
