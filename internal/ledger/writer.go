package ledger

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrAmountNotPositive occurs when an operation is attempted with a zero
	// or negative magnitude.
	ErrAmountNotPositive = errors.New("amount must be positive")

	// ErrInsufficientAvailable occurs when the wallet's available balance
	// cannot cover a debit or an escrow hold.
	ErrInsufficientAvailable = errors.New("insufficient available balance")

	// ErrInsufficientEscrow occurs when a release exceeds the held escrow.
	ErrInsufficientEscrow = errors.New("insufficient escrow balance")

	// ErrUnknownType occurs when an entry type has no signed-delta rule.
	ErrUnknownType = errors.New("unknown entry type")
)

// Snapshot is the balance state of a wallet read under its row lock.
type Snapshot struct {
	Balance decimal.Decimal
	Frozen  decimal.Decimal
	Escrow  decimal.Decimal
}

// Available is the portion of the balance the owner can spend.
func (s Snapshot) Available() decimal.Decimal {
	return s.Balance.Sub(s.Frozen).Sub(s.Escrow)
}

// Apply folds one operation into a snapshot, producing the successor snapshot
// and the entry recording it. It is a pure function of its inputs apart from
// entry id generation: balanceBefore and balanceAfter come from the snapshot
// taken at lock time, never from a later recomputation.
//
// Signed-delta convention per type on the main balance:
//
//	load, refund, bonus      +amount
//	payment, fee             -amount (requires available >= amount)
//	escrow_hold              0 on balance, +amount on escrow (requires available >= amount)
//	escrow_release           -amount on balance and escrow (requires escrow >= amount)
//	transfer                 signed amount; negative is the sender's debit leg
func Apply(walletID string, snap Snapshot, typ EntryType, amount decimal.Decimal, at time.Time) (Snapshot, Entry, error) {
	next := snap
	magnitude := amount

	switch typ {
	case TypeLoad, TypeRefund, TypeBonus:
		if amount.Sign() <= 0 {
			return snap, Entry{}, ErrAmountNotPositive
		}
		next.Balance = snap.Balance.Add(amount)

	case TypePayment, TypeFee:
		if amount.Sign() <= 0 {
			return snap, Entry{}, ErrAmountNotPositive
		}
		if snap.Available().LessThan(amount) {
			return snap, Entry{}, ErrInsufficientAvailable
		}
		next.Balance = snap.Balance.Sub(amount)

	case TypeEscrowHold:
		if amount.Sign() <= 0 {
			return snap, Entry{}, ErrAmountNotPositive
		}
		if snap.Available().LessThan(amount) {
			return snap, Entry{}, ErrInsufficientAvailable
		}
		next.Escrow = snap.Escrow.Add(amount)

	case TypeEscrowRelease:
		if amount.Sign() <= 0 {
			return snap, Entry{}, ErrAmountNotPositive
		}
		if snap.Escrow.LessThan(amount) {
			return snap, Entry{}, ErrInsufficientEscrow
		}
		next.Balance = snap.Balance.Sub(amount)
		next.Escrow = snap.Escrow.Sub(amount)

	case TypeTransfer:
		if amount.IsZero() {
			return snap, Entry{}, ErrAmountNotPositive
		}
		if amount.IsNegative() {
			debit := amount.Neg()
			if snap.Available().LessThan(debit) {
				return snap, Entry{}, ErrInsufficientAvailable
			}
			next.Balance = snap.Balance.Sub(debit)
		} else {
			next.Balance = snap.Balance.Add(amount)
		}

	default:
		return snap, Entry{}, ErrUnknownType
	}

	entry := Entry{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          typ,
		Amount:        magnitude,
		BalanceBefore: snap.Balance,
		BalanceAfter:  next.Balance,
		Status:        StatusCompleted,
		ProcessedAt:   at.UTC(),
	}
	return next, entry, nil
}

// Pending records an obligation whose balance effect is deferred until it is
// settled. The entry is balance-neutral: both snapshots equal the balance at
// lock time, and the real before/after pair is written at settlement.
func Pending(walletID string, snap Snapshot, typ EntryType, amount decimal.Decimal, at time.Time) (Entry, error) {
	if amount.Sign() <= 0 {
		return Entry{}, ErrAmountNotPositive
	}
	if typ != TypeRefund && typ != TypeFee {
		return Entry{}, ErrUnknownType
	}
	return Entry{
		ID:            uuid.NewString(),
		WalletID:      walletID,
		Type:          typ,
		Amount:        amount,
		BalanceBefore: snap.Balance,
		BalanceAfter:  snap.Balance,
		Status:        StatusPending,
		ProcessedAt:   at.UTC(),
	}, nil
}
