package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/ledger"
	"github.com/MrJones267/aryv-wallet/internal/logging"
)

// Load origination channels. Kiosk and partner-store loads carry the physical
// location; agent loads carry the agent identifier.
const (
	SourceCard         = "card"
	SourceBankTransfer = "bank_transfer"
	SourceMobileMoney  = "mobile_money"
	SourceKiosk        = "kiosk"
	SourcePartnerStore = "partner_store"
	SourceAgent        = "agent"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// Engine exposes the wallet ledger operations. Every mutating call executes
// as one atomic unit of work: lock, validate, limit-check, write, commit.
// Any failure rolls the whole unit back leaving no partial writes.
type Engine struct {
	store    Store
	currency string
	tiers    TierTable
	eval     *Evaluator
	cache    *Cache
	logger   *slog.Logger
	now      func() time.Time
}

// EngineConfig carries the engine's injectable collaborators. Tiers defaults
// to DefaultTiers, Clock to time.Now, Location (the day/month boundary for
// limit windows) to UTC, and Logger to a discard logger. Cache is optional.
type EngineConfig struct {
	Tiers    TierTable
	Currency string
	Cache    *Cache
	Logger   *slog.Logger
	Clock    func() time.Time
	Location *time.Location
}

// NewEngine validates the configuration and builds an engine.
func NewEngine(store Store, cfg EngineConfig) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Tiers == nil {
		cfg.Tiers = DefaultTiers()
	}
	for _, level := range []KYCLevel{KYCBasic, KYCEnhanced, KYCFull} {
		limits, ok := cfg.Tiers[level]
		if !ok {
			return nil, fmt.Errorf("tier table missing level %q", level)
		}
		if limits.DailyLoad.Sign() <= 0 || limits.MonthlyLoad.Sign() <= 0 ||
			limits.DailySpend.Sign() <= 0 || limits.MonthlySpend.Sign() <= 0 {
			return nil, fmt.Errorf("tier %q has a non-positive limit", level)
		}
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &Engine{
		store:    store,
		currency: cfg.Currency,
		tiers:    cfg.Tiers,
		eval:     NewEvaluator(cfg.Clock, cfg.Location),
		cache:    cfg.Cache,
		logger:   cfg.Logger,
		now:      cfg.Clock,
	}, nil
}

// BalanceSnapshot is a point-in-time read of a wallet's balances.
type BalanceSnapshot struct {
	WalletID  string
	OwnerID   string
	Balance   decimal.Decimal
	Frozen    decimal.Decimal
	Escrow    decimal.Decimal
	Available decimal.Decimal
	Total     decimal.Decimal
	Currency  string
	AsOf      time.Time
}

// OperationResult reports a committed single-wallet mutation.
type OperationResult struct {
	EntryID  string
	Snapshot BalanceSnapshot
}

// TransferResult reports a committed two-wallet transfer. Both legs share
// Reference as their correlating source reference.
type TransferResult struct {
	Reference   string
	FromBalance BalanceSnapshot
	ToBalance   BalanceSnapshot
	CompletedAt time.Time
}

// LoadRequest describes a wallet load from an origination channel.
type LoadRequest struct {
	OwnerID         string
	Amount          decimal.Decimal
	Source          string
	SourceReference string
	Location        string
	AgentID         string
	Description     string
	Metadata        map[string]string
}

// PaymentRequest debits the wallet, or earmarks funds when EscrowHold is set:
// the amount moves from available into escrow without leaving the balance
// until the matching release.
type PaymentRequest struct {
	OwnerID     string
	Amount      decimal.Decimal
	Description string
	EscrowHold  bool
	Reference   string
}

// TransferRequest moves funds between two owners' wallets atomically.
type TransferRequest struct {
	FromOwnerID string
	ToOwnerID   string
	Amount      decimal.Decimal
	Description string
}

// RefundRequest credits a wallet. Pending defers the balance effect until the
// entry is settled through SettleEntry.
type RefundRequest struct {
	OwnerID     string
	Amount      decimal.Decimal
	Reference   string
	Description string
	Pending     bool
}

// FeeRequest debits a platform fee. Fees are platform-originated and exempt
// from spend limits. Pending defers the debit until settlement.
type FeeRequest struct {
	WalletID    string
	Amount      decimal.Decimal
	Description string
	Pending     bool
}

// CreateWallet provisions the single wallet for an owner, with limits taken
// from the injected tier table. The owner id is the idempotency key: a second
// call fails with WALLET_EXISTS.
func (e *Engine) CreateWallet(ctx context.Context, ownerID string, level KYCLevel) (*Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return nil, newError(CodeUserNotFound, "invalid owner id %q", ownerID)
	}
	if level == "" {
		level = KYCBasic
	}
	limits, ok := e.tiers[level]
	if !ok {
		return nil, newError(CodeUnknownKYCLevel, "unknown kyc level %q", level)
	}

	now := e.now().UTC()
	w := &Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Balance:   decimal.Zero,
		Currency:  e.currency,
		Status:    StatusActive,
		KYCLevel:  level,
		Limits:    limits,
		CreatedAt: now,
	}

	err := e.inTx(ctx, func(tx Tx) error {
		if _, lookupErr := tx.WalletByOwnerForUpdate(ctx, ownerID); lookupErr == nil {
			return newError(CodeWalletExists, "owner %s already has a wallet", ownerID)
		} else if !HasCode(lookupErr, CodeWalletNotFound) {
			return lookupErr
		}
		return tx.InsertWallet(ctx, w)
	})
	e.logOutcome("wallet.create", w.ID, decimal.Zero, err)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Load credits the wallet from an external source after source validation and
// the load-limit check pass. Replays carrying an already-seen source
// reference are rejected with DUPLICATE_REFERENCE.
func (e *Engine) Load(ctx context.Context, req LoadRequest) (*OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if err := validateLoadSource(req); err != nil {
		return nil, err
	}

	var res *OperationResult
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletByOwnerForUpdate(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		if err := requireActive(w); err != nil {
			return err
		}
		if req.SourceReference != "" {
			seen, err := tx.HasEntryWithReference(ctx, w.ID, ledger.TypeLoad, req.SourceReference)
			if err != nil {
				return err
			}
			if seen {
				return newError(CodeDuplicateReference, "load %s already recorded", req.SourceReference)
			}
		}
		if err := e.eval.CheckLoad(ctx, tx, w, req.Amount); err != nil {
			return err
		}

		now := e.now()
		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), ledger.TypeLoad, req.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.Source = req.Source
		entry.SourceReference = req.SourceReference
		entry.Description = req.Description
		entry.Metadata = loadMetadata(req)

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.load", req.OwnerID, req.Amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, req.OwnerID)
	return res, nil
}

// ProcessPayment debits the wallet, or places an escrow hold when requested.
// Escrow holds count against spend limits at hold time; the matching release
// performs no further limit check.
func (e *Engine) ProcessPayment(ctx context.Context, req PaymentRequest) (*OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	typ := ledger.TypePayment
	if req.EscrowHold {
		typ = ledger.TypeEscrowHold
	}

	var res *OperationResult
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletByOwnerForUpdate(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		if err := requireActive(w); err != nil {
			return err
		}
		if req.Reference != "" {
			seen, err := tx.HasEntryWithReference(ctx, w.ID, typ, req.Reference)
			if err != nil {
				return err
			}
			if seen {
				return newError(CodeDuplicateReference, "payment %s already recorded", req.Reference)
			}
		}
		if err := e.eval.CheckSpend(ctx, tx, w, req.Amount); err != nil {
			return err
		}

		now := e.now()
		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), typ, req.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.SourceReference = req.Reference
		entry.Description = req.Description

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.payment", req.OwnerID, req.Amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, req.OwnerID)
	return res, nil
}

// ReleaseEscrow pays held funds out of the wallet: balance and escrow both
// decrease. This is the point at which held funds actually leave the wallet,
// so it works on suspended wallets too — a hold must always be resolvable.
func (e *Engine) ReleaseEscrow(ctx context.Context, walletID string, amount decimal.Decimal, description string) (*OperationResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var res *OperationResult
	var ownerID string
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		ownerID = w.OwnerID

		now := e.now()
		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), ledger.TypeEscrowRelease, amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.Description = description

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.escrow_release", walletID, amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, ownerID)
	return res, nil
}

// Transfer atomically debits the sender and credits the receiver inside one
// unit of work that locks both wallets in ascending id order. The two legs
// share a correlating reference; the debit leg carries a negative amount.
func (e *Engine) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if req.FromOwnerID == req.ToOwnerID {
		return nil, newError(CodeSelfTransfer, "cannot transfer to the same wallet")
	}

	var res *TransferResult
	err := e.inTx(ctx, func(tx Tx) error {
		from, to, err := tx.WalletPairForUpdate(ctx, req.FromOwnerID, req.ToOwnerID)
		if err != nil {
			return err
		}
		if from.Status != StatusActive {
			return newError(CodeSenderInactive, "sender wallet %s is %s", from.ID, from.Status)
		}
		if to.Status != StatusActive {
			return newError(CodeReceiverInactive, "receiver wallet %s is %s", to.ID, to.Status)
		}
		if err := e.eval.CheckSpend(ctx, tx, from, req.Amount); err != nil {
			return err
		}

		now := e.now()
		reference := uuid.NewString()

		fromSnap, debit, err := ledger.Apply(from.ID, from.Snapshot(), ledger.TypeTransfer, req.Amount.Neg(), now)
		if err != nil {
			return mapWriterErr(err)
		}
		toSnap, credit, err := ledger.Apply(to.ID, to.Snapshot(), ledger.TypeTransfer, req.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		debit.SourceReference = reference
		credit.SourceReference = reference
		debit.Description = req.Description
		credit.Description = req.Description

		res = &TransferResult{Reference: reference, CompletedAt: now.UTC()}
		if err := e.applyMutation(ctx, tx, from, fromSnap, now, &res.FromBalance, &debit); err != nil {
			return err
		}
		return e.applyMutation(ctx, tx, to, toSnap, now, &res.ToBalance, &credit)
	})
	e.logOutcome("wallet.transfer", req.FromOwnerID, req.Amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, req.FromOwnerID)
	e.invalidate(ctx, req.ToOwnerID)
	return res, nil
}

// Refund credits a wallet, or records a pending obligation when Pending is
// set; pending refunds settle through SettleEntry.
func (e *Engine) Refund(ctx context.Context, req RefundRequest) (*OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var res *OperationResult
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletByOwnerForUpdate(ctx, req.OwnerID)
		if err != nil {
			return err
		}
		if err := requireActive(w); err != nil {
			return err
		}
		if req.Reference != "" {
			seen, err := tx.HasEntryWithReference(ctx, w.ID, ledger.TypeRefund, req.Reference)
			if err != nil {
				return err
			}
			if seen {
				return newError(CodeDuplicateReference, "refund %s already recorded", req.Reference)
			}
		}

		now := e.now()
		if req.Pending {
			entry, err := ledger.Pending(w.ID, w.Snapshot(), ledger.TypeRefund, req.Amount, now)
			if err != nil {
				return mapWriterErr(err)
			}
			entry.SourceReference = req.Reference
			entry.Description = req.Description
			if err := tx.AppendEntry(ctx, &entry); err != nil {
				return err
			}
			res = &OperationResult{EntryID: entry.ID, Snapshot: snapshotOf(w, now)}
			return nil
		}

		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), ledger.TypeRefund, req.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.SourceReference = req.Reference
		entry.Description = req.Description

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.refund", req.OwnerID, req.Amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, req.OwnerID)
	return res, nil
}

// CollectFee debits a platform fee, immediately or as a pending entry. Like
// escrow releases, fees are platform-originated and collect from suspended
// wallets too; only a closed wallet rejects them.
func (e *Engine) CollectFee(ctx context.Context, req FeeRequest) (*OperationResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}

	var res *OperationResult
	var ownerID string
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletForUpdate(ctx, req.WalletID)
		if err != nil {
			return err
		}
		if w.Status == StatusClosed {
			return newError(CodeWalletClosed, "wallet %s is closed", w.ID)
		}
		ownerID = w.OwnerID

		now := e.now()
		if req.Pending {
			entry, err := ledger.Pending(w.ID, w.Snapshot(), ledger.TypeFee, req.Amount, now)
			if err != nil {
				return mapWriterErr(err)
			}
			entry.Description = req.Description
			if err := tx.AppendEntry(ctx, &entry); err != nil {
				return err
			}
			res = &OperationResult{EntryID: entry.ID, Snapshot: snapshotOf(w, now)}
			return nil
		}

		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), ledger.TypeFee, req.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.Description = req.Description

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.fee", req.WalletID, req.Amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, ownerID)
	return res, nil
}

// AwardBonus credits a platform-granted bonus. Bonuses do not count toward
// the owner's load limits.
func (e *Engine) AwardBonus(ctx context.Context, ownerID string, amount decimal.Decimal, description string) (*OperationResult, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	var res *OperationResult
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletByOwnerForUpdate(ctx, ownerID)
		if err != nil {
			return err
		}
		if err := requireActive(w); err != nil {
			return err
		}

		now := e.now()
		snap, entry, err := ledger.Apply(w.ID, w.Snapshot(), ledger.TypeBonus, amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		entry.Description = description

		res = &OperationResult{EntryID: entry.ID}
		return e.applyMutation(ctx, tx, w, snap, now, &res.Snapshot, &entry)
	})
	e.logOutcome("wallet.bonus", ownerID, amount, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, ownerID)
	return res, nil
}

// SettleEntry resolves a pending refund or fee entry: approve applies its
// balance effect with settlement-time snapshots, reject cancels it with no
// balance effect. Every other entry kind is immutable. A recorded obligation
// must stay resolvable, so settlement works on suspended wallets; a closed
// wallet rejects it.
func (e *Engine) SettleEntry(ctx context.Context, walletID, entryID string, approve bool) (*OperationResult, error) {
	var res *OperationResult
	var ownerID string
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		if w.Status == StatusClosed {
			return newError(CodeWalletClosed, "wallet %s is closed", w.ID)
		}
		ownerID = w.OwnerID

		entry, err := tx.EntryByID(ctx, walletID, entryID)
		if err != nil {
			return err
		}
		if entry.Status != ledger.StatusPending ||
			(entry.Type != ledger.TypeRefund && entry.Type != ledger.TypeFee) {
			return newError(CodeEntryNotPending, "entry %s cannot be settled", entryID)
		}

		now := e.now()
		if !approve {
			if err := tx.FinalizeEntry(ctx, entryID, ledger.StatusCancelled, entry.BalanceBefore, entry.BalanceBefore, now); err != nil {
				return err
			}
			res = &OperationResult{EntryID: entryID, Snapshot: snapshotOf(w, now)}
			return nil
		}

		snap, _, err := ledger.Apply(w.ID, w.Snapshot(), entry.Type, entry.Amount, now)
		if err != nil {
			return mapWriterErr(err)
		}
		if err := tx.FinalizeEntry(ctx, entryID, ledger.StatusCompleted, w.Balance, snap.Balance, now); err != nil {
			return err
		}

		w.SetSnapshot(snap)
		w.LastTransactionAt = now.UTC()
		if err := w.CheckInvariants(); err != nil {
			return err
		}
		if err := tx.UpdateWallet(ctx, w); err != nil {
			return err
		}
		res = &OperationResult{EntryID: entryID, Snapshot: snapshotOf(w, now)}
		return nil
	})
	e.logOutcome("wallet.settle", walletID, decimal.Zero, err)
	if err != nil {
		return nil, err
	}
	e.invalidate(ctx, ownerID)
	return res, nil
}

// Balance returns a read-only snapshot, served from the cache when possible.
// A cache outage degrades to a store read; it never fails the call.
func (e *Engine) Balance(ctx context.Context, ownerID string) (*BalanceSnapshot, error) {
	if e.cache != nil {
		if snap, ok := e.cache.GetSnapshot(ctx, ownerID); ok {
			return snap, nil
		}
	}

	w, err := e.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	snap := snapshotOf(w, e.now())
	if e.cache != nil {
		e.cache.SetSnapshot(ctx, ownerID, &snap)
	}
	return &snap, nil
}

// History returns the wallet's ledger entries newest first.
func (e *Engine) History(ctx context.Context, ownerID string, limit, offset int) ([]ledger.Entry, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	w, err := e.store.WalletByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return e.store.Entries(ctx, w.ID, limit, offset)
}

// Suspend blocks an active wallet from transacting.
func (e *Engine) Suspend(ctx context.Context, walletID string) error {
	return e.setStatus(ctx, walletID, StatusSuspended)
}

// Reactivate returns a suspended wallet to active.
func (e *Engine) Reactivate(ctx context.Context, walletID string) error {
	return e.setStatus(ctx, walletID, StatusActive)
}

// Close retires an emptied wallet. Closed is terminal; the row is never
// deleted.
func (e *Engine) Close(ctx context.Context, walletID string) error {
	return e.setStatus(ctx, walletID, StatusClosed)
}

func (e *Engine) setStatus(ctx context.Context, walletID string, target Status) error {
	var ownerID string
	err := e.inTx(ctx, func(tx Tx) error {
		w, err := tx.WalletForUpdate(ctx, walletID)
		if err != nil {
			return err
		}
		ownerID = w.OwnerID
		if w.Status == StatusClosed {
			return newError(CodeWalletClosed, "wallet %s is closed", walletID)
		}
		if target == StatusClosed {
			if w.Balance.Sign() != 0 || w.FrozenBalance.Sign() != 0 || w.EscrowBalance.Sign() != 0 {
				return newError(CodeWalletNotEmpty, "wallet %s still holds funds", walletID)
			}
		}
		w.Status = target
		return tx.UpdateWallet(ctx, w)
	})
	e.logOutcome("wallet.status."+string(target), walletID, decimal.Zero, err)
	if err != nil {
		return err
	}
	e.invalidate(ctx, ownerID)
	return nil
}

// inTx runs fn inside one unit of work, committing on success and rolling
// back on any failure.
func (e *Engine) inTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// applyMutation finishes a balance mutation: invariants, entry append before
// the wallet row update, both in the caller's unit of work.
func (e *Engine) applyMutation(ctx context.Context, tx Tx, w *Wallet, snap ledger.Snapshot, now time.Time, out *BalanceSnapshot, entry *ledger.Entry) error {
	w.SetSnapshot(snap)
	w.LastTransactionAt = now.UTC()
	if err := w.CheckInvariants(); err != nil {
		return err
	}
	if err := tx.AppendEntry(ctx, entry); err != nil {
		return err
	}
	if err := tx.UpdateWallet(ctx, w); err != nil {
		return err
	}
	*out = snapshotOf(w, now)
	return nil
}

func (e *Engine) invalidate(ctx context.Context, ownerID string) {
	if e.cache != nil && ownerID != "" {
		e.cache.Invalidate(ctx, ownerID)
	}
}

func (e *Engine) logOutcome(event, subject string, amount decimal.Decimal, err error) {
	if err != nil {
		e.logger.Warn(event, "subject", subject, "amount", amount.String(), "code", CodeOf(err))
		return
	}
	e.logger.Info(event, "subject", subject, "amount", amount.String())
}

func snapshotOf(w *Wallet, at time.Time) BalanceSnapshot {
	return BalanceSnapshot{
		WalletID:  w.ID,
		OwnerID:   w.OwnerID,
		Balance:   w.Balance,
		Frozen:    w.FrozenBalance,
		Escrow:    w.EscrowBalance,
		Available: w.Available(),
		Total:     w.Total(),
		Currency:  w.Currency,
		AsOf:      at.UTC(),
	}
}

func requireActive(w *Wallet) error {
	if w.Status != StatusActive {
		return newError(CodeWalletInactive, "wallet %s is %s", w.ID, w.Status)
	}
	return nil
}

// validateAmount requires a positive amount with at most two decimal places.
func validateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return newError(CodeInvalidAmount, "amount must be positive, got %s", amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return newError(CodeInvalidAmount, "amount %s exceeds minor-unit precision", amount)
	}
	return nil
}

func validateLoadSource(req LoadRequest) error {
	switch req.Source {
	case SourceKiosk, SourcePartnerStore:
		if req.Location == "" {
			return newError(CodeLocationRequired, "%s load requires a location", req.Source)
		}
	case SourceAgent:
		if req.AgentID == "" {
			return newError(CodeAgentIDRequired, "agent load requires an agent id")
		}
	}
	return nil
}

func loadMetadata(req LoadRequest) map[string]string {
	meta := make(map[string]string, len(req.Metadata)+2)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if req.Location != "" {
		meta["location"] = req.Location
	}
	if req.AgentID != "" {
		meta["agent_id"] = req.AgentID
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// mapWriterErr translates ledger writer failures into engine error codes.
func mapWriterErr(err error) error {
	switch {
	case errors.Is(err, ledger.ErrInsufficientAvailable):
		return newError(CodeInsufficientBalance, "insufficient available balance")
	case errors.Is(err, ledger.ErrInsufficientEscrow):
		return newError(CodeInsufficientEscrow, "insufficient escrow balance")
	case errors.Is(err, ledger.ErrAmountNotPositive):
		return newError(CodeInvalidAmount, "amount must be positive")
	default:
		return newError(CodeInvariantViolation, "ledger rejection: %v", err)
	}
}
