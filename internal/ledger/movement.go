package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"wallet_ledger/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// party is a wallet taking part in a movement; id 0 means absent
type party struct {
	role string
	id   uint
}

// movement describes one of the five operations as data so they share a single pipeline:
// load and validate, evaluate policy, mutate, record.
type movement struct {
	kind       domain.TransactionType
	label      string
	amount     decimal.Decimal
	debit      party // Limit-checked debit of amount
	credit     party // Unrestricted credit of amount
	agentID    uint  // Approved agent credited with commission
	senderID   uint
	receiverID uint
	primaryID  uint
	counterID  uint
	describe   func(commission decimal.Decimal) string
}

// walletIDs returns the distinct wallet owners touched by m in ascending order
func (m movement) walletIDs() []uint {
	ids := make([]uint, 0, 3)
	for _, id := range []uint{m.debit.id, m.credit.id, m.agentID} {
		if id != 0 && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// apply performs every read, check and write of m inside unit u
func (e *Engine) apply(ctx context.Context, u Unit, m movement) (*Result, error) {
	now := e.now()

	if m.agentID != 0 {
		if err := requireAgent(ctx, u, m.agentID); err != nil {
			return nil, err
		}
	}

	wallets, err := u.LockWallets(ctx, m.walletIDs()...)
	if err != nil {
		return nil, err
	}

	if m.debit.id != 0 {
		w, err := usable(wallets, m.debit)
		if err != nil {
			return nil, err
		}
		if w.Balance.LessThan(m.amount) {
			return nil, &WalletError{Party: m.debit.role, UserID: m.debit.id, Err: ErrInsufficientFunds}
		}
		if err := e.cfg.Limits.Evaluate(w, m.amount, now); err != nil {
			return nil, &WalletError{Party: m.debit.role, UserID: m.debit.id, Err: err}
		}
		w.Balance = w.Balance.Sub(m.amount)
		Record(w, m.amount)
	}

	if m.credit.id != 0 {
		w, err := usable(wallets, m.credit)
		if err != nil {
			return nil, err
		}
		w.Balance = w.Balance.Add(m.amount)
	}

	commission := decimal.Zero
	if m.agentID != 0 {
		w, err := usable(wallets, party{role: "agent", id: m.agentID})
		if err != nil {
			return nil, err
		}
		commission = Commission(m.amount, e.cfg.CommissionRate)
		w.Balance = w.Balance.Add(commission)
	}

	for _, id := range m.walletIDs() {
		w := wallets[id]
		w.UpdatedAt = now
		if err := u.SaveWallet(ctx, w); err != nil {
			return nil, err
		}
	}

	entry := domain.Transaction{
		Reference:   uuid.NewString(),
		SenderID:    m.senderID,
		Amount:      m.amount,
		Type:        m.kind,
		Status:      domain.StatusCompleted,
		Fee:         decimal.Zero,
		Commission:  commission,
		Description: m.describe(commission),
		CreatedAt:   now,
	}
	if m.receiverID != 0 {
		receiver := m.receiverID
		entry.ReceiverID = &receiver
	}
	if err := u.AppendTransaction(ctx, &entry); err != nil {
		return nil, err
	}

	res := &Result{Transaction: entry, Wallet: *wallets[m.primaryID]}
	if m.counterID != 0 {
		counter := *wallets[m.counterID]
		res.Counterparty = &counter
	}
	return res, nil
}

func requireAgent(ctx context.Context, u Unit, agentID uint) error {
	agent, err := u.Account(ctx, agentID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: account %d", ErrForbidden, agentID)
	}
	if err != nil {
		return err
	}
	if !agent.IsApprovedAgent() {
		return fmt.Errorf("%w: account %d", ErrForbidden, agentID)
	}
	return nil
}

// usable returns the wallet of p if it exists and is not blocked
func usable(wallets map[uint]*domain.Wallet, p party) (*domain.Wallet, error) {
	w, ok := wallets[p.id]
	if !ok || w == nil {
		return nil, &WalletError{Party: p.role, UserID: p.id, Err: ErrNotFound}
	}
	if w.IsBlocked {
		return nil, &WalletError{Party: p.role, UserID: p.id, Err: ErrBlocked}
	}
	return w, nil
}
