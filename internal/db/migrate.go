package db

import (
	"context"                        // Context for account creation
	"errors"                         // Error matching
	"wallet_ledger/internal/domain"  // Importing domain models
	"wallet_ledger/internal/ledger"  // Ledger errors
	"wallet_ledger/internal/storage" // Account store
	"wallet_ledger/internal/utils"   // Password hashing

	"github.com/shopspring/decimal" // Decimal money
	"github.com/sirupsen/logrus"    // Logging library
	"gorm.io/driver/mysql"          // MySQL driver for GORM
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/logger"           // GORM logger levels
)

// Open connects to MySQL using dsn
func Open(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn // Quiet by default
	if verbose {
		level = logger.Info // Log every statement
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}

// SeedAdmin creates the administrator account with a wallet unless the username is taken
func SeedAdmin(ctx context.Context, store *storage.Gorm, username, password string, balance decimal.Decimal) (*domain.User, error) {
	if existing, err := store.UserByUsername(ctx, username); err == nil {
		logrus.WithField("user_id", existing.ID).Info("Admin already exists") // Nothing to do
		return existing, nil
	} else if !errors.Is(err, ledger.ErrNotFound) {
		return nil, err // Store failure
	}
	hash, err := utils.HashPassword(password) // Hash the password
	if err != nil {
		return nil, err
	}
	user := &domain.User{
		Username:   username,
		Password:   hash,
		Role:       domain.RoleAdmin,
		IsApproved: true,
	}
	if err := store.CreateAccount(ctx, user, balance); err != nil {
		return nil, err
	}
	logrus.WithField("user_id", user.ID).Info("Admin created") // Log seeded admin
	return user, nil
}
