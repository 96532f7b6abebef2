package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/ledger"
)

// LimitClass groups entry types for rolling-limit aggregation. Load covers
// wallet loads; spend covers payments, escrow holds and transfer debit legs.
// Platform-originated fees and bonuses count toward neither class.
type LimitClass string

const (
	ClassLoad  LimitClass = "load"
	ClassSpend LimitClass = "spend"
)

// ErrLockTimeout surfaces a row-lock acquisition timeout. It is retryable and
// distinct from every business-rule failure.
var ErrLockTimeout = &Error{Code: CodeLockTimeout, Message: "timed out waiting for wallet row lock"}

// Store is the transactional ledger store the engine runs against. Row locks
// taken inside a Tx are the sole serialization mechanism for a wallet.
type Store interface {
	// Begin opens a unit of work. Every mutating engine operation runs
	// inside exactly one unit; any failure rolls the whole unit back.
	Begin(ctx context.Context) (Tx, error)

	// WalletByOwner reads a wallet without locking it. Used by read-only
	// balance queries where the store's default read consistency suffices.
	WalletByOwner(ctx context.Context, ownerID string) (*Wallet, error)

	// Entries returns a wallet's ledger entries newest first.
	Entries(ctx context.Context, walletID string, limit, offset int) ([]ledger.Entry, error)
}

// Tx is one atomic unit of work. Mutating reads acquire an exclusive row
// lock; balances used in a decision must come from a locked read.
type Tx interface {
	// WalletForUpdate locks and reads a wallet row by id.
	WalletForUpdate(ctx context.Context, walletID string) (*Wallet, error)

	// WalletByOwnerForUpdate locks and reads a wallet row by owner.
	WalletByOwnerForUpdate(ctx context.Context, ownerID string) (*Wallet, error)

	// WalletPairForUpdate locks both wallets of a transfer before reading
	// either. Locks are always acquired in ascending wallet-id order so two
	// transfers moving funds in opposite directions between the same pair
	// cannot deadlock.
	WalletPairForUpdate(ctx context.Context, fromOwnerID, toOwnerID string) (from, to *Wallet, err error)

	// InsertWallet persists a newly created wallet row.
	InsertWallet(ctx context.Context, w *Wallet) error

	// UpdateWallet writes back a locked wallet row.
	UpdateWallet(ctx context.Context, w *Wallet) error

	// AppendEntry writes an immutable ledger entry. Entries are written in
	// the same unit of work as the wallet mutation they record.
	AppendEntry(ctx context.Context, e *ledger.Entry) error

	// HasEntryWithReference reports whether the wallet already has a live
	// (pending or completed) entry of the given type carrying the source
	// reference. Used for idempotent replay detection inside the lock scope;
	// cancelled and failed entries do not block a re-submission.
	HasEntryWithReference(ctx context.Context, walletID string, typ ledger.EntryType, ref string) (bool, error)

	// EntryByID reads one entry of the locked wallet.
	EntryByID(ctx context.Context, walletID, entryID string) (*ledger.Entry, error)

	// FinalizeEntry transitions a pending entry to completed or cancelled,
	// writing the settlement-time balance snapshots. The only permitted
	// mutation of an existing entry.
	FinalizeEntry(ctx context.Context, entryID string, status ledger.EntryStatus, before, after decimal.Decimal, at time.Time) error

	// ClassTotal sums completed entries of the class since the boundary,
	// using absolute amounts for transfer debit legs. Must be called with
	// the wallet row lock held so the total cannot move under the check.
	ClassTotal(ctx context.Context, walletID string, class LimitClass, since time.Time) (decimal.Decimal, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
