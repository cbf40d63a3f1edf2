package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionType identifies the kind of money movement
type TransactionType string

// Transaction types
const (
	TypeAddMoney  TransactionType = "add_money"
	TypeWithdraw  TransactionType = "withdraw"
	TypeSendMoney TransactionType = "send_money"
	TypeCashIn    TransactionType = "cash_in"
	TypeCashOut   TransactionType = "cash_out"
)

// TransactionStatus is the lifecycle state of an entry
type TransactionStatus string

// Transaction statuses. Only StatusCompleted is produced by the engine.
const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusReversed  TransactionStatus = "reversed"
	StatusFailed    TransactionStatus = "failed"
)

// ErrImmutableTransaction is returned on any attempt to change a written entry
var ErrImmutableTransaction = errors.New("transaction entries are append-only")

// Transaction Model
type Transaction struct {
	ID          uint              `gorm:"primaryKey"`                            // Primary key
	Reference   string            `gorm:"size:36;uniqueIndex;not null"`          // Public identifier
	SenderID    uint              `gorm:"index;not null"`                        // Account debited (or acting agent)
	ReceiverID  *uint             `gorm:"index"`                                 // Account credited, if any
	Amount      decimal.Decimal   `gorm:"type:decimal(20,4);not null"`           // Amount moved between the parties
	Type        TransactionType   `gorm:"size:16;index;not null"`                // Transaction type
	Status      TransactionStatus `gorm:"size:16;not null;default:completed"`    // Transaction status
	Fee         decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0"` // Fee charged
	Commission  decimal.Decimal   `gorm:"type:decimal(20,4);not null;default:0"` // Agent commission
	Description string            `gorm:"size:255"`                              // Human readable note
	CreatedAt   time.Time         `gorm:"index"`                                 // Timestamp of creation
}

// BeforeUpdate keeps the ledger append-only
func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

// BeforeDelete keeps the ledger append-only
func (t *Transaction) BeforeDelete(tx *gorm.DB) error {
	return ErrImmutableTransaction
}

// Involves reports whether userID is a party of the entry
func (t *Transaction) Involves(userID uint) bool {
	if t.SenderID == userID {
		return true
	}
	return t.ReceiverID != nil && *t.ReceiverID == userID
}
