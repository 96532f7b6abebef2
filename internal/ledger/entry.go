package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryType identifies the balance-affecting operation an entry records.
type EntryType string

const (
	TypeLoad          EntryType = "load"
	TypePayment       EntryType = "payment"
	TypeRefund        EntryType = "refund"
	TypeTransfer      EntryType = "transfer"
	TypeEscrowHold    EntryType = "escrow_hold"
	TypeEscrowRelease EntryType = "escrow_release"
	TypeFee           EntryType = "fee"
	TypeBonus         EntryType = "bonus"
)

// EntryStatus tracks the lifecycle of an entry. Completed entries are
// immutable; corrections are recorded as new entries.
type EntryStatus string

const (
	StatusPending   EntryStatus = "pending"
	StatusCompleted EntryStatus = "completed"
	StatusFailed    EntryStatus = "failed"
	StatusCancelled EntryStatus = "cancelled"
)

// Entry is one append-only record of a balance-affecting event. Amount is
// positive for every type except the debit leg of a transfer, which carries a
// negative amount to record direction relative to the wallet.
type Entry struct {
	ID              string
	WalletID        string
	Type            EntryType
	Amount          decimal.Decimal
	BalanceBefore   decimal.Decimal
	BalanceAfter    decimal.Decimal
	Status          EntryStatus
	Source          string
	SourceReference string
	Description     string
	Metadata        map[string]string
	ProcessedAt     time.Time
	ExpiresAt       *time.Time
}

// Debit reports whether the entry represents funds leaving the wallet balance.
func (e *Entry) Debit() bool {
	switch e.Type {
	case TypePayment, TypeEscrowRelease, TypeFee:
		return true
	case TypeTransfer:
		return e.Amount.IsNegative()
	}
	return false
}
