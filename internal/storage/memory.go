package storage

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"
	"wallet_ledger/internal/lock"
)

// Memory is an in-process store. Units take per-wallet locks in owner order
// and stage their writes, which become visible together on commit.
type Memory struct {
	mu      sync.RWMutex
	users   map[uint]domain.User
	wallets map[uint]domain.Wallet // Keyed by owner
	txs     []domain.Transaction
	nextTx  uint
	nextW   uint
	locks   *lock.Local
}

// NewMemory creates an empty in-process store
func NewMemory() *Memory {
	return &Memory{
		users:   make(map[uint]domain.User),
		wallets: make(map[uint]domain.Wallet),
		locks:   lock.NewLocal(),
	}
}

// PutAccount stores user and, when wallet is non-nil, its wallet
func (m *Memory) PutAccount(user domain.User, wallet *domain.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	if wallet != nil {
		w := *wallet
		w.UserID = user.ID
		if w.ID == 0 {
			m.nextW++
			w.ID = m.nextW
		}
		m.wallets[user.ID] = w
	}
}

// Wallet returns a copy of the committed wallet owned by userID
func (m *Memory) Wallet(userID uint) (domain.Wallet, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wallets[userID]
	return w, ok
}

// Transactions returns a copy of the committed ledger in insertion order
func (m *Memory) Transactions() []domain.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.txs)
}

// RunInUnit runs fn with exclusive access to the wallets it locks; writes apply only if fn succeeds
func (m *Memory) RunInUnit(ctx context.Context, fn func(ctx context.Context, u ledger.Unit) error) error {
	u := &memoryUnit{store: m, staged: make(map[uint]domain.Wallet)}
	defer u.release()

	if err := fn(ctx, u); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for owner, w := range u.staged {
		m.wallets[owner] = w
	}
	m.txs = append(m.txs, u.entries...)
	return nil
}

type memoryUnit struct {
	store   *Memory
	held    []uint
	unlock  []func()
	staged  map[uint]domain.Wallet
	entries []domain.Transaction
}

func (u *memoryUnit) release() {
	for i := len(u.unlock) - 1; i >= 0; i-- {
		u.unlock[i]()
	}
}

func (u *memoryUnit) Account(ctx context.Context, userID uint) (*domain.User, error) {
	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	user, ok := u.store.users[userID]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	return &user, nil
}

func (u *memoryUnit) LockWallets(ctx context.Context, userIDs ...uint) (map[uint]*domain.Wallet, error) {
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if !slices.Contains(u.held, id) {
			keys = append(keys, strconv.FormatUint(uint64(id), 10))
		}
	}
	release, err := u.store.locks.Lock(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("lock wallets %v: %w", userIDs, err)
	}
	u.unlock = append(u.unlock, release)
	for _, id := range userIDs {
		if !slices.Contains(u.held, id) {
			u.held = append(u.held, id)
		}
	}

	u.store.mu.RLock()
	defer u.store.mu.RUnlock()
	out := make(map[uint]*domain.Wallet, len(userIDs))
	for _, id := range userIDs {
		if w, ok := u.staged[id]; ok {
			out[id] = &w
			continue
		}
		if w, ok := u.store.wallets[id]; ok {
			out[id] = &w
		}
	}
	return out, nil
}

func (u *memoryUnit) SaveWallet(ctx context.Context, w *domain.Wallet) error {
	if !slices.Contains(u.held, w.UserID) {
		return fmt.Errorf("save wallet %d: not locked by this unit", w.UserID)
	}
	if w.Balance.IsNegative() {
		return domain.ErrNegativeBalance
	}
	u.staged[w.UserID] = *w
	return nil
}

// AppendTransaction stages t and fills in its ID. IDs are reserved like an
// auto-increment column, so an aborted unit leaves a gap.
func (u *memoryUnit) AppendTransaction(ctx context.Context, t *domain.Transaction) error {
	u.store.mu.Lock()
	u.store.nextTx++
	t.ID = u.store.nextTx
	u.store.mu.Unlock()
	u.entries = append(u.entries, *t)
	return nil
}
