package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"wallet_ledger/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// DefaultUnitTimeout bounds a unit when Config.UnitTimeout is not set
const DefaultUnitTimeout = 5 * time.Second

// Config holds the policy constants of the engine
type Config struct {
	Limits         Limits
	CommissionRate decimal.Decimal
	UnitTimeout    time.Duration
}

// Result is the committed outcome of an operation
type Result struct {
	Transaction  domain.Transaction // The ledger entry written by the unit
	Wallet       domain.Wallet      // Wallet of the user the operation was requested for
	Counterparty *domain.Wallet     // Receiver for transfers, agent for cash-in/cash-out
}

// Engine is the only writer of wallet balances and ledger entries
type Engine struct {
	store    Store
	cfg      Config
	locker   Locker
	notifier Notifier
	metrics  MetricsCollector
	log      logrus.FieldLogger
	now      func() time.Time
}

// Option customises an Engine
type Option func(*Engine)

// WithLocker makes the engine hold wallet locks from l around every unit
func WithLocker(l Locker) Option { return func(e *Engine) { e.locker = l } }

// WithNotifier sets the post-commit notification hook
func WithNotifier(n Notifier) Option { return func(e *Engine) { e.notifier = n } }

// WithMetrics sets the metrics collector
func WithMetrics(m MetricsCollector) Option { return func(e *Engine) { e.metrics = m } }

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option { return func(e *Engine) { e.log = l } }

// WithClock overrides the time source used for limit windows and entry timestamps
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// NewEngine creates a ledger engine over store
func NewEngine(store Store, cfg Config, opts ...Option) *Engine {
	if store == nil {
		panic("ledger: store is required")
	}
	if cfg.UnitTimeout <= 0 {
		cfg.UnitTimeout = DefaultUnitTimeout
	}
	e := &Engine{
		store:    store,
		cfg:      cfg,
		notifier: noopNotifier{},
		metrics:  NoopMetricsCollector{},
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddMoney credits amount to the wallet of userID (top-up). Credits are never limit-checked.
func (e *Engine) AddMoney(ctx context.Context, userID uint, amount decimal.Decimal) (*Result, error) {
	return e.execute(ctx, movement{
		kind:      domain.TypeAddMoney,
		label:     "User Top-up",
		amount:    amount,
		credit:    party{role: "user", id: userID},
		senderID:  userID,
		primaryID: userID,
		describe:  func(decimal.Decimal) string { return "Money added to wallet by user" },
	})
}

// WithdrawMoney debits amount from the wallet of userID after balance and limit checks
func (e *Engine) WithdrawMoney(ctx context.Context, userID uint, amount decimal.Decimal) (*Result, error) {
	return e.execute(ctx, movement{
		kind:      domain.TypeWithdraw,
		label:     "User Withdrawal",
		amount:    amount,
		debit:     party{role: "user", id: userID},
		senderID:  userID,
		primaryID: userID,
		describe:  func(decimal.Decimal) string { return "Money withdrawn from wallet" },
	})
}

// SendMoney moves amount from senderID to receiverID
func (e *Engine) SendMoney(ctx context.Context, senderID, receiverID uint, amount decimal.Decimal) (*Result, error) {
	if senderID == receiverID {
		return e.reject(domain.TypeSendMoney, fmt.Errorf("%w: cannot send money to yourself", ErrInvalidOperation))
	}
	return e.execute(ctx, movement{
		kind:       domain.TypeSendMoney,
		label:      "User Send Money",
		amount:     amount,
		debit:      party{role: "sender", id: senderID},
		credit:     party{role: "receiver", id: receiverID},
		senderID:   senderID,
		receiverID: receiverID,
		primaryID:  senderID,
		counterID:  receiverID,
		describe: func(decimal.Decimal) string {
			return fmt.Sprintf("Money sent from %d to %d", senderID, receiverID)
		},
	})
}

// CashInByAgent credits amount to userID on behalf of an approved agent and pays the agent its commission
func (e *Engine) CashInByAgent(ctx context.Context, agentID, userID uint, amount decimal.Decimal) (*Result, error) {
	if agentID == userID {
		return e.reject(domain.TypeCashIn, fmt.Errorf("%w: agent cannot cash in to its own wallet", ErrInvalidOperation))
	}
	return e.execute(ctx, movement{
		kind:       domain.TypeCashIn,
		label:      "Agent Cash-in",
		amount:     amount,
		credit:     party{role: "user", id: userID},
		agentID:    agentID,
		senderID:   agentID,
		receiverID: userID,
		primaryID:  userID,
		counterID:  agentID,
		describe: func(commission decimal.Decimal) string {
			return fmt.Sprintf("Cash-in of %s for user %d by agent %d. Agent commission: %s",
				amount.String(), userID, agentID, commission.String())
		},
	})
}

// CashOut debits amount from userID through an approved agent and pays the agent its commission
func (e *Engine) CashOut(ctx context.Context, agentID, userID uint, amount decimal.Decimal) (*Result, error) {
	if agentID == userID {
		return e.reject(domain.TypeCashOut, fmt.Errorf("%w: agent cannot cash out its own wallet", ErrInvalidOperation))
	}
	return e.execute(ctx, movement{
		kind:       domain.TypeCashOut,
		label:      "Agent Cash-out",
		amount:     amount,
		debit:      party{role: "user", id: userID},
		agentID:    agentID,
		senderID:   agentID,
		receiverID: userID,
		primaryID:  userID,
		counterID:  agentID,
		describe: func(commission decimal.Decimal) string {
			return fmt.Sprintf("Cash-out of %s for user %d by agent %d. Agent commission: %s",
				amount.String(), userID, agentID, commission.String())
		},
	})
}

// execute runs m as one unit, records the outcome and hands the entry to the notifier after commit
func (e *Engine) execute(ctx context.Context, m movement) (*Result, error) {
	start := time.Now()
	res, err := e.run(ctx, m)
	e.metrics.RecordOperation(string(m.kind), ErrorKind(err), time.Since(start))

	fields := logrus.Fields{
		"type":      m.kind,
		"amount":    m.amount.String(),
		"sender_id": m.senderID,
	}
	if m.receiverID != 0 {
		fields["receiver_id"] = m.receiverID
	}
	if err != nil {
		fields["error"] = err.Error()
		if IsDomainError(err) {
			e.log.WithFields(fields).Warn("Ledger operation rejected")
		} else {
			e.log.WithFields(fields).Error("Ledger operation failed")
		}
		return nil, err
	}

	fields["reference"] = res.Transaction.Reference
	fields["commission"] = res.Transaction.Commission.String()
	e.log.WithFields(fields).Info("Ledger transaction committed")
	e.metrics.RecordVolume(string(m.kind), m.amount)
	e.notifier.Notify(res.Transaction, m.label)
	return res, nil
}

func (e *Engine) run(ctx context.Context, m movement) (*Result, error) {
	if err := checkAmount(m.amount); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.UnitTimeout)
	defer cancel()

	if e.locker != nil {
		release, err := e.locker.Lock(ctx, walletKeys(m.walletIDs())...)
		if err != nil {
			return nil, transient(err)
		}
		defer release()
	}

	var res *Result
	err := e.store.RunInUnit(ctx, func(ctx context.Context, u Unit) error {
		r, err := e.apply(ctx, u, m)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		if IsDomainError(err) || errors.Is(err, ErrTransient) {
			return nil, err
		}
		return nil, transient(err)
	}
	return res, nil
}

func (e *Engine) reject(kind domain.TransactionType, err error) (*Result, error) {
	e.metrics.RecordOperation(string(kind), ErrorKind(err), 0)
	e.log.WithFields(logrus.Fields{"type": kind, "error": err.Error()}).Warn("Ledger operation rejected")
	return nil, err
}

func walletKeys(ids []uint) []string {
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = "wallet:" + strconv.FormatUint(uint64(id), 10)
	}
	return keys
}
