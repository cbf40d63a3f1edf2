// Package storage holds the wallet record and transaction log stores used by the ledger engine.
package storage

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm stores wallets and transactions in a relational database
type Gorm struct {
	db *gorm.DB
}

// NewGorm wraps an open gorm connection
func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db}
}

// DB exposes the underlying connection
func (s *Gorm) DB() *gorm.DB { return s.db }

// RunInUnit runs fn inside a database transaction; returning an error rolls it back
func (s *Gorm) RunInUnit(ctx context.Context, fn func(ctx context.Context, u ledger.Unit) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormUnit{tx: tx})
	})
}

type gormUnit struct {
	tx *gorm.DB
}

// Account reads the account under a shared lock so approval cannot change mid-unit
func (u *gormUnit) Account(ctx context.Context, userID uint) (*domain.User, error) {
	var user domain.User
	if err := u.tx.WithContext(ctx).Clauses(clause.Locking{Strength: "SHARE"}).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, fmt.Errorf("load account %d: %w", userID, err)
	}
	return &user, nil
}

// LockWallets selects the wallets FOR UPDATE ordered by owner, so concurrent units lock in the same order
func (u *gormUnit) LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*domain.Wallet, error) {
	ids := slices.Clone(userIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	var wallets []domain.Wallet
	err := u.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", ids).
		Order("user_id").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("lock wallets %v: %w", ids, err)
	}

	out := make(map[uint]*domain.Wallet, len(wallets))
	for i := range wallets {
		out[wallets[i].UserID] = &wallets[i]
	}
	return out, nil
}

func (u *gormUnit) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	err := u.tx.WithContext(ctx).Model(w).Select(domain.MutableColumns).Updates(w).Error
	if err != nil {
		return fmt.Errorf("save wallet %d: %w", w.ID, err)
	}
	return nil
}

func (u *gormUnit) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	if err := u.tx.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

// CreateAccount inserts user and its wallet, seeded with initialBalance, in one transaction
func (s *Gorm) CreateAccount(ctx context.Context, user *domain.User, initialBalance decimal.Decimal) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(user).Error; err != nil {
			return err
		}
		wallet := domain.NewWallet(user.ID, initialBalance, time.Now())
		if err := tx.Create(&wallet).Error; err != nil {
			return err
		}
		user.Wallet = wallet
		return nil
	})
}

// WalletByUser returns the wallet owned by userID
func (s *Gorm) WalletByUser(ctx context.Context, userID uint) (*domain.Wallet, error) {
	var wallet domain.Wallet
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// SetWalletBlocked freezes or unfreezes a wallet, serialised against ledger units through the row lock
func (s *Gorm) SetWalletBlocked(ctx context.Context, walletID uint, blocked bool) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&wallet, walletID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrNotFound
			}
			return err
		}
		wallet.IsBlocked = blocked
		return tx.Model(&wallet).Update("is_blocked", blocked).Error
	})
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

// ApproveAgent allows an agent account to perform cash-in and cash-out
func (s *Gorm) ApproveAgent(ctx context.Context, userID uint) (*domain.User, error) {
	return s.SetAgentApproval(ctx, userID, true)
}

// SuspendAgent revokes an agent's approval
func (s *Gorm) SuspendAgent(ctx context.Context, userID uint) (*domain.User, error) {
	return s.SetAgentApproval(ctx, userID, false)
}

// SetAgentApproval approves or suspends an agent account
func (s *Gorm) SetAgentApproval(ctx context.Context, userID uint, approved bool) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ledger.ErrNotFound
			}
			return err
		}
		if user.Role != domain.RoleAgent {
			return fmt.Errorf("%w: user is not an agent", ledger.ErrInvalidOperation)
		}
		if user.IsApproved == approved {
			if approved {
				return fmt.Errorf("%w: agent is already approved", ledger.ErrInvalidOperation)
			}
			return fmt.Errorf("%w: agent is already suspended", ledger.ErrInvalidOperation)
		}
		user.IsApproved = approved
		return tx.Model(&user).Update("is_approved", approved).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListWallets returns one page of wallets and the total count
func (s *Gorm) ListWallets(ctx context.Context, page Page) ([]domain.Wallet, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&domain.Wallet{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var wallets []domain.Wallet
	err := s.db.WithContext(ctx).Order("id").Offset(page.Offset()).Limit(page.Size).Find(&wallets).Error
	if err != nil {
		return nil, 0, err
	}
	return wallets, total, nil
}

// TransactionFilter narrows a transaction listing; zero fields match everything
type TransactionFilter struct {
	UserID uint                   // Sender or receiver
	Type   domain.TransactionType // Transaction type
	From   time.Time              // Created at or after
	To     time.Time              // Created at or before
}

// ListTransactions returns one page of entries matching f, newest first, and the total count
func (s *Gorm) ListTransactions(ctx context.Context, f TransactionFilter, page Page) ([]domain.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.UserID != 0 {
		query = query.Where("sender_id = ? OR receiver_id = ?", f.UserID, f.UserID)
	}
	if f.Type != "" {
		query = query.Where("type = ?", f.Type)
	}
	if !f.From.IsZero() {
		query = query.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("created_at <= ?", f.To)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []domain.Transaction
	if err := query.Session(&gorm.Session{}).Order("created_at desc, id desc").Offset(page.Offset()).Limit(page.Size).Find(&txs).Error; err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// TransactionsForUser returns one page of entries where userID is sender or receiver, newest first
func (s *Gorm) TransactionsForUser(ctx context.Context, userID uint, page Page) ([]domain.Transaction, int64, error) {
	return s.ListTransactions(ctx, TransactionFilter{UserID: userID}, page)
}

// UserByUsername looks an account up by its lowercase username
func (s *Gorm) UserByUsername(ctx context.Context, username string) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UserByID looks an account up by its primary key
func (s *Gorm) UserByID(ctx context.Context, userID uint) (*domain.User, error) {
	var user domain.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ledger.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}
