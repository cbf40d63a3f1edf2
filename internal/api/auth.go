package api

import (
	"errors"                         // Error matching
	"net/http"                       // HTTP status codes
	"regexp"                         // Regular expressions
	"strings"                        // String manipulation
	"wallet_ledger/internal/domain"  // Importing domain models
	"wallet_ledger/internal/ledger"  // Ledger errors
	"wallet_ledger/internal/storage" // Account store
	"wallet_ledger/internal/utils"   // Utility functions

	"github.com/gin-gonic/gin"      // Gin web framework
	"github.com/shopspring/decimal" // Decimal money
	"github.com/sirupsen/logrus"    // Logging library
)

// Request and Response structs
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
	Role     string `json:"role"`                        // user (default) or agent
}

// Request struct for login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
	Role  string `json:"role"`  // Account role
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z]+$`) // Alphabetic characters only

// isValidUsername checks if the username contains only alphabetic characters
func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// isValidPassword checks if the password length is between 8 and 15 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 15 // Return true if length is valid
}

// normalizeUsername lowercases usernames so lookups are case-insensitive
func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// RegisterHandler creates an account together with its wallet, seeded with initialBalance
func RegisterHandler(store *storage.Gorm, initialBalance decimal.Decimal) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Validate username and password
		if !isValidUsername(req.Username) {
			// If username is invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Username must be alphabetic only"})
			return
		}
		// Validate password length
		if !isValidPassword(req.Password) {
			// If password is invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Password must be 8-15 characters"})
			return
		}
		// Only users and agents can self-register
		role := strings.ToLower(req.Role)
		if role == "" {
			role = domain.RoleUser // Default role
		}
		if role != domain.RoleUser && role != domain.RoleAgent {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Role must be user or agent"})
			return
		}
		// Hash the password
		hash, err := utils.HashPassword(req.Password)
		if err != nil {
			// If hashing fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
			return
		}
		// Agents wait for an administrator's approval
		user := domain.User{
			Username:   normalizeUsername(req.Username),
			Password:   hash,
			Role:       role,
			IsApproved: role != domain.RoleAgent,
		}
		// Create the account and its wallet in one transaction
		if err := store.CreateAccount(c.Request.Context(), &user, initialBalance); err != nil {
			// Duplicate usernames are the expected failure here
			if _, lookupErr := store.UserByUsername(c.Request.Context(), user.Username); lookupErr == nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Username already exists"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"username": user.Username, // Username
				"error":    err.Error(),   // Error message
			}).Error("Registration failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
			return
		}
		// Log account creation
		logrus.WithFields(logrus.Fields{
			"user_id":   user.ID,                      // User ID
			"role":      user.Role,                    // Account role
			"wallet_id": user.Wallet.ID,               // Wallet ID
			"balance":   user.Wallet.Balance.String(), // Initial balance
		}).Info("Account registered")
		// Return success response
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(store *storage.Gorm, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			// If binding fails, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		user, err := store.UserByUsername(c.Request.Context(), normalizeUsername(req.Username)) // Fetch user from database
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				// If user not found, return unauthorized
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			respondError(c, err) // Store failure
			return
		}
		// Compare provided password with stored hash
		if !utils.CheckPassword(user.Password, req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Generate JWT token
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret)
		if err != nil {
			// If token generation fails, return internal server error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		// Return the token in the response
		c.JSON(http.StatusOK, AuthResponse{Token: token, Role: user.Role})
	}
}
