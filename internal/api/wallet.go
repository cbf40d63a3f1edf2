package api

import (
	"context"                           // Context for Redis operations
	"net/http"                          // HTTP status codes
	"wallet_ledger/internal/domain"     // Importing domain models
	"wallet_ledger/internal/ledger"     // Ledger engine
	"wallet_ledger/internal/middleware" // Context keys
	"wallet_ledger/internal/storage"    // Wallet and transaction stores
	"wallet_ledger/internal/utils"      // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal money
	"github.com/sirupsen/logrus"    // Logging library
)

// AmountRequest carries the amount of a top-up, withdrawal or cash-in
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`  // Amount to move
	UserID uint            `json:"user_id"` // Target user, required when an agent cashes in
}

// SendMoneyRequest represents a peer transfer
type SendMoneyRequest struct {
	ToUsername string          `json:"to_username" binding:"required"` // Receiver username
	Amount     decimal.Decimal `json:"amount"`                         // Transfer amount
}

// CashOutRequest represents an agent cash-out for a user
type CashOutRequest struct {
	UserID uint            `json:"user_id" binding:"required"` // User being paid out
	Amount decimal.Decimal `json:"amount"`                     // Cash-out amount
}

// currentUser returns the authenticated account from the JWT middleware
func currentUser(c *gin.Context) (uint, string, bool) {
	v, exists := c.Get(middleware.UserIDKey) // Get userID from context
	if !exists {
		return 0, "", false // Not authenticated
	}
	userID, ok := v.(uint) // Assert the claim type
	return userID, c.GetString(middleware.RoleKey), ok
}

// respondResult writes a committed operation and drops the cached views of every party
func respondResult(c *gin.Context, rdb redis.UniversalClient, message string, res *ledger.Result) {
	parties := []uint{res.Wallet.UserID} // Primary party
	body := gin.H{
		"message":     message,         // Success message
		"transaction": res.Transaction, // Committed entry
		"wallet":      res.Wallet,      // Primary party wallet
	}
	if res.Counterparty != nil {
		parties = append(parties, res.Counterparty.UserID) // Receiver or agent
	}
	// Invalidate wallet and transaction history cache for every party
	if err := utils.InvalidateUsers(context.Background(), rdb, parties...); err != nil {
		logrus.WithFields(logrus.Fields{
			"users": parties,     // Affected users
			"error": err.Error(), // Error message
		}).Warn("Cache invalidation failed")
	}
	// A read racing the commit may have re-cached the old state; drop it again shortly
	utils.InvalidateUsersAfter(rdb, utils.InvalidationDelay, parties...)
	c.JSON(http.StatusOK, body)
}

// AddMoneyHandler tops up the caller's wallet, or cashes in to user_id when the caller is an agent
func AddMoneyHandler(engine *ledger.Engine, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, role, ok := currentUser(c) // Get caller from context
		// Check if caller is authenticated
		if !ok {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AmountRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Agents add money to someone else's wallet
		if role == domain.RoleAgent {
			// The target user must be named
			if req.UserID == 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required for cash-in"})
				return
			}
			res, err := engine.CashInByAgent(c.Request.Context(), userID, req.UserID, req.Amount)
			if err != nil {
				respondError(c, err) // Map ledger error
				return
			}
			respondResult(c, rdb, "Cash-in successful", res)
			return
		}
		res, err := engine.AddMoney(c.Request.Context(), userID, req.Amount)
		if err != nil {
			respondError(c, err) // Map ledger error
			return
		}
		respondResult(c, rdb, "Money added successfully", res)
	}
}

// WithdrawHandler debits the caller's wallet
func WithdrawHandler(engine *ledger.Engine, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c) // Get caller from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req AmountRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := engine.WithdrawMoney(c.Request.Context(), userID, req.Amount)
		if err != nil {
			respondError(c, err) // Map ledger error
			return
		}
		respondResult(c, rdb, "Withdrawal successful", res)
	}
}

// SendMoneyHandler transfers from the caller to another user looked up by username
func SendMoneyHandler(engine *ledger.Engine, store *storage.Gorm, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c) // Get caller from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req SendMoneyRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Resolve the receiver
		receiver, err := store.UserByUsername(c.Request.Context(), normalizeUsername(req.ToUsername))
		if err != nil {
			respondError(c, err) // Unknown receiver maps to not found
			return
		}
		res, err := engine.SendMoney(c.Request.Context(), userID, receiver.ID, req.Amount)
		if err != nil {
			respondError(c, err) // Map ledger error
			return
		}
		respondResult(c, rdb, "Transfer successful", res)
	}
}

// CashOutHandler lets an approved agent pay out cash from a user's wallet
func CashOutHandler(engine *ledger.Engine, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID, _, ok := currentUser(c) // Get caller from context
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CashOutRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		res, err := engine.CashOut(c.Request.Context(), agentID, req.UserID, req.Amount)
		if err != nil {
			respondError(c, err) // Map ledger error
			return
		}
		respondResult(c, rdb, "Cash-out successful", res)
	}
}

// GetWalletHandler returns wallet info for the authenticated user
func GetWalletHandler(store *storage.Gorm, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c) // Get caller from context
		// Check if caller is authenticated
		if !ok {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                               // Context for Redis operations
		cacheKey := utils.WalletCacheKey(userID)                  // Cache key for wallet
		var wallet domain.Wallet                                  // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet) // Try to get from cache
		// If found in cache, return it
		if err == nil && found {
			// Return cached wallet
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		// If not in cache, fetch from DB
		w, err := store.WalletByUser(c.Request.Context(), userID)
		if err != nil {
			respondError(c, err) // Wallet missing or store failure
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, utils.CacheTTL)  // Cache the wallet
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false}) // Return wallet info
	}
}

// historyPage is the cached shape of one page of transaction history
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
}

// GetTransactionHistoryHandler returns the authenticated user's transactions, newest first
func GetTransactionHistoryHandler(store *storage.Gorm, rdb redis.UniversalClient) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, _, ok := currentUser(c) // Get caller from context
		// Check if caller is authenticated
		if !ok {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		page := pageFromQuery(c)                                          // Pagination parameters
		cacheKey := utils.HistoryCacheKey(userID, page.Number, page.Size) // Redis cache key
		ctx := context.Background()                                       // Context for Redis operations
		var cached historyPage
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		// If found in cache, return it
		if err == nil && found {
			respondHistory(c, cached, true)
			return
		}
		// Fetch paginated transactions
		txs, total, err := store.TransactionsForUser(c.Request.Context(), userID, page)
		if err != nil {
			respondError(c, err) // Store failure
			return
		}
		resp := historyPage{
			Transactions: txs,                    // List of transactions
			Page:         page.Number,            // Current page
			PageSize:     page.Size,              // Page size
			Total:        total,                  // Total transactions
			TotalPages:   page.TotalPages(total), // Total pages
		}
		// Cache the result
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, utils.CacheTTL)
		respondHistory(c, resp, false) // Return transaction history
	}
}

func respondHistory(c *gin.Context, p historyPage, cached bool) {
	if p.Transactions == nil {
		p.Transactions = []domain.Transaction{} // Render an empty list, not null
	}
	c.JSON(http.StatusOK, gin.H{
		"transactions": p.Transactions, // Transactions of this page
		"page":         p.Page,         // Current page
		"page_size":    p.PageSize,     // Page size
		"total":        p.Total,        // Total transactions
		"total_pages":  p.TotalPages,   // Total pages
		"cached":       cached,         // Served from cache
	})
}
