package api

import (
	"net/http"                          // HTTP handler for metrics
	"wallet_ledger/internal/domain"     // Account roles
	"wallet_ledger/internal/ledger"     // Ledger engine
	"wallet_ledger/internal/middleware" // Auth middleware
	"wallet_ledger/internal/storage"    // Wallet and transaction stores

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/redis/go-redis/v9"  // Redis client
	"github.com/shopspring/decimal" // Decimal money
)

// Deps are the collaborators the HTTP routes depend on
type Deps struct {
	Engine         *ledger.Engine        // Money movement
	Store          *storage.Gorm         // Accounts, reads and admin actions
	Redis          redis.UniversalClient // Read cache, nil disables caching
	JWTSecret      string                // Token signing key
	InitialBalance decimal.Decimal       // Seed balance of new wallets
	Metrics        http.Handler          // Prometheus exposition, nil skips the route
}

// RegisterRoutes mounts every route on r
func RegisterRoutes(r gin.IRouter, d Deps) {
	// Auth routes
	r.POST("/user", RegisterHandler(d.Store, d.InitialBalance)) // Registration endpoint
	r.POST("/user/login", LoginHandler(d.Store, d.JWTSecret))   // Login endpoint

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	walletGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret))
	walletGroup.GET("", GetWalletHandler(d.Store, d.Redis))                          // Get wallet endpoint
	walletGroup.GET("/transactions", GetTransactionHistoryHandler(d.Store, d.Redis)) // Transaction history endpoint
	walletGroup.POST("/add-money",
		middleware.RequireRoles(domain.RoleUser, domain.RoleAgent),
		AddMoneyHandler(d.Engine, d.Redis)) // Top-up, or cash-in for agents
	walletGroup.POST("/withdraw",
		middleware.RequireRoles(domain.RoleUser),
		WithdrawHandler(d.Engine, d.Redis)) // Withdrawal endpoint
	walletGroup.POST("/send-money",
		middleware.RequireRoles(domain.RoleUser),
		SendMoneyHandler(d.Engine, d.Store, d.Redis)) // Peer transfer endpoint
	walletGroup.POST("/cash-out",
		middleware.RequireRoles(domain.RoleAgent),
		CashOutHandler(d.Engine, d.Redis)) // Agent cash-out endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(middleware.JWTAuthMiddleware(d.JWTSecret), middleware.RequireRoles(domain.RoleAdmin))
	adminGroup.GET("/wallets", ListWalletsHandler(d.Store))                      // List wallets endpoint
	adminGroup.GET("/transactions", ListTransactionsHandler(d.Store))            // List transactions endpoint
	adminGroup.PATCH("/wallets/:id/block", BlockWalletHandler(d.Store, d.Redis)) // Block/unblock endpoint
	adminGroup.PATCH("/agents/:id/approve", ApproveAgentHandler(d.Store))        // Approve agent endpoint
	adminGroup.PATCH("/agents/:id/suspend", SuspendAgentHandler(d.Store))        // Suspend agent endpoint

	// Metrics
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}
}
