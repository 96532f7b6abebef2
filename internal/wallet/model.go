package wallet

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/ledger"
)

// Status is the lifecycle state of a wallet. Wallets are never deleted;
// a closed wallet is terminal.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusClosed    Status = "closed"
)

// KYCLevel gates how much a wallet may load and spend per day and month.
type KYCLevel string

const (
	KYCBasic    KYCLevel = "basic"
	KYCEnhanced KYCLevel = "enhanced"
	KYCFull     KYCLevel = "full"
)

// TierLimits holds the rolling load/spend ceilings for one KYC tier,
// expressed in major currency units.
type TierLimits struct {
	DailyLoad    decimal.Decimal
	MonthlyLoad  decimal.Decimal
	DailySpend   decimal.Decimal
	MonthlySpend decimal.Decimal
}

// TierTable maps every KYC level to its limits. Injected at engine
// construction; never hard-coded inside operations.
type TierTable map[KYCLevel]TierLimits

// DefaultTiers returns the platform's stock limit table.
func DefaultTiers() TierTable {
	return TierTable{
		KYCBasic: {
			DailyLoad:    decimal.NewFromInt(200),
			MonthlyLoad:  decimal.NewFromInt(2_000),
			DailySpend:   decimal.NewFromInt(150),
			MonthlySpend: decimal.NewFromInt(1_500),
		},
		KYCEnhanced: {
			DailyLoad:    decimal.NewFromInt(2_000),
			MonthlyLoad:  decimal.NewFromInt(20_000),
			DailySpend:   decimal.NewFromInt(1_500),
			MonthlySpend: decimal.NewFromInt(15_000),
		},
		KYCFull: {
			DailyLoad:    decimal.NewFromInt(10_000),
			MonthlyLoad:  decimal.NewFromInt(100_000),
			DailySpend:   decimal.NewFromInt(7_500),
			MonthlySpend: decimal.NewFromInt(75_000),
		},
	}
}

// Wallet is a per-user stored-value account. One wallet per owner, enforced
// unique. Balance, frozen and escrow are two-decimal-place exact decimals.
type Wallet struct {
	ID                string
	OwnerID           string
	Balance           decimal.Decimal
	FrozenBalance     decimal.Decimal
	EscrowBalance     decimal.Decimal
	Currency          string
	Status            Status
	KYCLevel          KYCLevel
	Limits            TierLimits
	LastTransactionAt time.Time
	CreatedAt         time.Time
}

// Available is the balance the owner can spend right now.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.FrozenBalance).Sub(w.EscrowBalance)
}

// Total includes funds held in escrow pending an obligation.
func (w *Wallet) Total() decimal.Decimal {
	return w.Balance.Add(w.EscrowBalance)
}

// Snapshot captures the balances for the ledger writer.
func (w *Wallet) Snapshot() ledger.Snapshot {
	return ledger.Snapshot{Balance: w.Balance, Frozen: w.FrozenBalance, Escrow: w.EscrowBalance}
}

// SetSnapshot writes the successor balances produced by the ledger writer
// back onto the wallet row.
func (w *Wallet) SetSnapshot(s ledger.Snapshot) {
	w.Balance = s.Balance
	w.FrozenBalance = s.Frozen
	w.EscrowBalance = s.Escrow
}

// CheckInvariants verifies the wallet's balance invariants. Any violation
// aborts the enclosing unit of work before commit:
//
//	balance >= 0
//	frozen >= 0 and escrow >= 0
//	frozen + escrow <= balance
func (w *Wallet) CheckInvariants() error {
	if w.Balance.IsNegative() {
		return newError(CodeInvariantViolation, "wallet %s: negative balance %s", w.ID, w.Balance)
	}
	if w.FrozenBalance.IsNegative() || w.EscrowBalance.IsNegative() {
		return newError(CodeInvariantViolation, "wallet %s: negative frozen or escrow balance", w.ID)
	}
	if w.FrozenBalance.Add(w.EscrowBalance).GreaterThan(w.Balance) {
		return newError(CodeInvariantViolation, "wallet %s: frozen+escrow exceeds balance", w.ID)
	}
	return nil
}
