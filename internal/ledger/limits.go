package ledger

import (
	"time"

	"wallet_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// Limits holds the rolling caps applied to every debit
type Limits struct {
	DailyAmount   decimal.Decimal
	DailyCount    int
	MonthlyAmount decimal.Decimal
	MonthlyCount  int
}

// ResetWindows zeroes the daily and monthly counters of w when now has crossed
// into a new calendar day or month. Calendar boundaries are taken in now's location.
func ResetWindows(w *domain.Wallet, now time.Time) (daily, monthly bool) {
	if !sameDay(w.LastDailyReset, now) {
		w.DailySpentAmount = decimal.Zero
		w.DailyTransactionCount = 0
		w.LastDailyReset = now
		daily = true
	}
	if !sameMonth(w.LastMonthlyReset, now) {
		w.MonthlySpentAmount = decimal.Zero
		w.MonthlyTransactionCount = 0
		w.LastMonthlyReset = now
		monthly = true
	}
	return daily, monthly
}

// Evaluate resets the windows of w and reports whether a debit of amount fits every cap.
// Caps are checked in order daily amount, daily count, monthly amount, monthly count;
// the first breach is returned as a *LimitError. Counters are never incremented here.
func (l Limits) Evaluate(w *domain.Wallet, amount decimal.Decimal, now time.Time) error {
	ResetWindows(w, now)

	if w.DailySpentAmount.Add(amount).GreaterThan(l.DailyAmount) {
		return amountBreach(LimitDailyAmount, l.DailyAmount, w.DailySpentAmount)
	}
	if w.DailyTransactionCount+1 > l.DailyCount {
		return countBreach(LimitDailyCount, l.DailyCount, w.DailyTransactionCount)
	}
	if w.MonthlySpentAmount.Add(amount).GreaterThan(l.MonthlyAmount) {
		return amountBreach(LimitMonthlyAmount, l.MonthlyAmount, w.MonthlySpentAmount)
	}
	if w.MonthlyTransactionCount+1 > l.MonthlyCount {
		return countBreach(LimitMonthlyCount, l.MonthlyCount, w.MonthlyTransactionCount)
	}
	return nil
}

// Record adds an allowed debit to the rolling counters of w
func Record(w *domain.Wallet, amount decimal.Decimal) {
	w.DailySpentAmount = w.DailySpentAmount.Add(amount)
	w.DailyTransactionCount++
	w.MonthlySpentAmount = w.MonthlySpentAmount.Add(amount)
	w.MonthlyTransactionCount++
}

func amountBreach(kind LimitKind, limit, spent decimal.Decimal) *LimitError {
	return &LimitError{Kind: kind, Cap: limit, Remaining: decimal.Max(limit.Sub(spent), decimal.Zero)}
}

func countBreach(kind LimitKind, limit, count int) *LimitError {
	return &LimitError{
		Kind:      kind,
		Cap:       decimal.NewFromInt(int64(limit)),
		Remaining: decimal.NewFromInt(int64(max(limit-count, 0))),
	}
}

func sameDay(last, now time.Time) bool {
	ly, lm, ld := last.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ly == ny && lm == nm && ld == nd
}

func sameMonth(last, now time.Time) bool {
	ly, lm, _ := last.In(now.Location()).Date()
	ny, nm, _ := now.Date()
	return ly == ny && lm == nm
}
