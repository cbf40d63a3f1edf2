package ledger

import (
	"context"
	"time"

	"wallet_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// Store opens atomic units of work over the wallet and transaction records
type Store interface {
	// RunInUnit runs fn inside one unit. The unit commits when fn returns nil
	// and aborts, discarding every write, when fn returns an error or ctx ends.
	RunInUnit(ctx context.Context, fn func(ctx context.Context, u Unit) error) error
}

// Unit is the transactional view handed to the engine for one operation
type Unit interface {
	// Account loads an account; ErrNotFound when it does not exist.
	Account(ctx context.Context, userID uint) (*domain.User, error)
	// LockWallets loads the wallets owned by userIDs with exclusive access held until the unit ends.
	// Owners without a wallet are absent from the result.
	LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*domain.Wallet, error)
	// SaveWallet writes balance and counter changes.
	SaveWallet(ctx context.Context, w *domain.Wallet) error
	// AppendTransaction writes a new ledger entry.
	AppendTransaction(ctx context.Context, t *domain.Transaction) error
}

// Locker provides mutual exclusion across keys. Implementations acquire keys in sorted order.
type Locker interface {
	Lock(ctx context.Context, keys ...string) (release func(), err error)
}

// Notifier receives committed entries. Notify must not block.
type Notifier interface {
	Notify(tx domain.Transaction, label string)
}

// MetricsCollector records engine outcomes
type MetricsCollector interface {
	RecordOperation(op, result string, duration time.Duration)
	RecordVolume(op string, amount decimal.Decimal)
}

// NoopMetricsCollector discards all metrics
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordOperation(string, string, time.Duration) {}
func (NoopMetricsCollector) RecordVolume(string, decimal.Decimal)          {}

type noopNotifier struct{}

func (noopNotifier) Notify(domain.Transaction, string) {}
