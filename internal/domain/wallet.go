package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ErrNegativeBalance is returned when a wallet would be persisted below zero
var ErrNegativeBalance = errors.New("wallet balance cannot be negative")

// Wallet Model
type Wallet struct {
	ID                      uint            `gorm:"primaryKey"`                            // Primary key
	UserID                  uint            `gorm:"uniqueIndex"`                           // Foreign key to User
	Balance                 decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"` // Wallet balance
	IsBlocked               bool            `gorm:"not null;default:false"`                // Frozen by an administrator
	DailySpentAmount        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"` // Debited since LastDailyReset
	DailyTransactionCount   int             `gorm:"not null;default:0"`                    // Debits since LastDailyReset
	LastDailyReset          time.Time       `gorm:"not null"`                              // Start of the daily window
	MonthlySpentAmount      decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0"` // Debited since LastMonthlyReset
	MonthlyTransactionCount int             `gorm:"not null;default:0"`                    // Debits since LastMonthlyReset
	LastMonthlyReset        time.Time       `gorm:"not null"`                              // Start of the monthly window
	CreatedAt               time.Time                                                      // Creation timestamp
	UpdatedAt               time.Time                                                      // Last update timestamp
}

// NewWallet returns a wallet for userID seeded with balance and windows starting at now
func NewWallet(userID uint, balance decimal.Decimal, now time.Time) Wallet {
	return Wallet{
		UserID:           userID,
		Balance:          balance,
		LastDailyReset:   now,
		LastMonthlyReset: now,
	}
}

// BeforeSave refuses to persist a negative balance
func (w *Wallet) BeforeSave(tx *gorm.DB) error {
	if w.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}

// MutableColumns lists the columns the ledger engine is allowed to write.
// IsBlocked is not listed; only administrative actions toggle it.
var MutableColumns = []string{
	"balance",
	"daily_spent_amount",
	"daily_transaction_count",
	"last_daily_reset",
	"monthly_spent_amount",
	"monthly_transaction_count",
	"last_monthly_reset",
	"updated_at",
}
