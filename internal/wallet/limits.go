package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Evaluator computes rolling daily and monthly aggregates of completed
// entries and compares candidate amounts against a wallet's tier limits.
//
// Checks must run with the wallet row lock held, through the same unit of
// work as the mutation they gate. Evaluating before locking admits a race
// where two concurrent requests each observe a pre-candidate total under the
// limit and both commit, jointly exceeding it.
type Evaluator struct {
	now func() time.Time
	loc *time.Location
}

// NewEvaluator builds an evaluator. The clock defaults to time.Now and the
// day/month boundary location to UTC.
func NewEvaluator(now func() time.Time, loc *time.Location) *Evaluator {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Evaluator{now: now, loc: loc}
}

// startOfDay is local midnight in the evaluator's location.
func (ev *Evaluator) startOfDay() time.Time {
	t := ev.now().In(ev.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, ev.loc)
}

// startOfMonth is midnight on the 1st of the current month.
func (ev *Evaluator) startOfMonth() time.Time {
	t := ev.now().In(ev.loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, ev.loc)
}

// CheckLoad fails closed if loading amount would push the wallet past its
// daily or monthly load limit.
func (ev *Evaluator) CheckLoad(ctx context.Context, tx Tx, w *Wallet, amount decimal.Decimal) error {
	daily, err := tx.ClassTotal(ctx, w.ID, ClassLoad, ev.startOfDay())
	if err != nil {
		return err
	}
	if daily.Add(amount).GreaterThan(w.Limits.DailyLoad) {
		return newError(CodeDailyLoadLimit, "daily load limit %s exceeded", w.Limits.DailyLoad)
	}

	monthly, err := tx.ClassTotal(ctx, w.ID, ClassLoad, ev.startOfMonth())
	if err != nil {
		return err
	}
	if monthly.Add(amount).GreaterThan(w.Limits.MonthlyLoad) {
		return newError(CodeMonthlyLoadLimit, "monthly load limit %s exceeded", w.Limits.MonthlyLoad)
	}
	return nil
}

// CheckSpend fails closed if spending amount (payments, escrow holds and
// transfer debits) would push the wallet past its spend limits.
func (ev *Evaluator) CheckSpend(ctx context.Context, tx Tx, w *Wallet, amount decimal.Decimal) error {
	daily, err := tx.ClassTotal(ctx, w.ID, ClassSpend, ev.startOfDay())
	if err != nil {
		return err
	}
	if daily.Add(amount).GreaterThan(w.Limits.DailySpend) {
		return newError(CodeDailySpendLimit, "daily spend limit %s exceeded", w.Limits.DailySpend)
	}

	monthly, err := tx.ClassTotal(ctx, w.ID, ClassSpend, ev.startOfMonth())
	if err != nil {
		return err
	}
	if monthly.Add(amount).GreaterThan(w.Limits.MonthlySpend) {
		return newError(CodeMonthlySpendLimit, "monthly spend limit %s exceeded", w.Limits.MonthlySpend)
	}
	return nil
}
