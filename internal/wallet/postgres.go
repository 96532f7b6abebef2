package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/ledger"
)

const (
	pgLockNotAvailable = "55P03"
	pgUniqueViolation  = "23505"
)

// PostgresStore persists wallets and ledger entries in PostgreSQL. Row locks
// are taken with SELECT ... FOR UPDATE; a lock wait exceeding the configured
// timeout surfaces as ErrLockTimeout.
type PostgresStore struct {
	db          *pgxpool.Pool
	lockTimeout time.Duration
}

// NewPostgresStore builds a store backed by the given pool. A zero
// lockTimeout leaves the server default in place.
func NewPostgresStore(db *pgxpool.Pool, lockTimeout time.Duration) *PostgresStore {
	return &PostgresStore{db: db, lockTimeout: lockTimeout}
}

// Begin opens a transaction and applies the lock wait ceiling to it.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, storeErr("begin", err)
	}
	if s.lockTimeout > 0 {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := tx.Exec(ctx, stmt); err != nil {
			_ = tx.Rollback(ctx)
			return nil, storeErr("set lock timeout", err)
		}
	}
	return &pgTx{tx: tx}, nil
}

const walletColumns = `id, owner_id, balance, frozen_balance, escrow_balance, currency, status,
        kyc_level, daily_load_limit, monthly_load_limit, daily_spend_limit, monthly_spend_limit,
        last_transaction_at, created_at`

// WalletByOwner reads a wallet without locking.
func (s *PostgresStore) WalletByOwner(ctx context.Context, ownerID string) (*Wallet, error) {
	row := s.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1`, ownerID)
	return scanWallet(row)
}

// Entries returns ledger entries newest first.
func (s *PostgresStore) Entries(ctx context.Context, walletID string, limit, offset int) ([]ledger.Entry, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, wallet_id, type, amount, balance_before, balance_after, status,
               source, source_reference, description, metadata, processed_at, expires_at
        FROM ledger_entries
        WHERE wallet_id = $1
        ORDER BY processed_at DESC, id DESC
        LIMIT $2 OFFSET $3`, walletID, limit, offset)
	if err != nil {
		return nil, storeErr("list entries", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list entries", err)
	}
	return entries, nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) WalletForUpdate(ctx context.Context, walletID string) (*Wallet, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	return scanWallet(row)
}

func (t *pgTx) WalletByOwnerForUpdate(ctx context.Context, ownerID string) (*Wallet, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 FOR UPDATE`, ownerID)
	return scanWallet(row)
}

// WalletPairForUpdate locks both rows in ascending id order. ORDER BY inside
// the locking query makes Postgres acquire the locks in that order, which
// keeps opposite-direction transfers between the same pair deadlock-free.
func (t *pgTx) WalletPairForUpdate(ctx context.Context, fromOwnerID, toOwnerID string) (*Wallet, *Wallet, error) {
	rows, err := t.tx.Query(ctx, `
        SELECT `+walletColumns+`
        FROM wallets
        WHERE owner_id = ANY($1)
        ORDER BY id
        FOR UPDATE`, []string{fromOwnerID, toOwnerID})
	if err != nil {
		return nil, nil, storeErr("lock wallet pair", err)
	}
	defer rows.Close()

	byOwner := make(map[string]*Wallet, 2)
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, nil, err
		}
		byOwner[w.OwnerID] = w
	}
	if err := rows.Err(); err != nil {
		return nil, nil, storeErr("lock wallet pair", err)
	}

	from, ok := byOwner[fromOwnerID]
	if !ok {
		return nil, nil, newError(CodeWalletNotFound, "no wallet for owner %s", fromOwnerID)
	}
	to, ok := byOwner[toOwnerID]
	if !ok {
		return nil, nil, newError(CodeWalletNotFound, "no wallet for owner %s", toOwnerID)
	}
	return from, to, nil
}

func (t *pgTx) InsertWallet(ctx context.Context, w *Wallet) error {
	_, err := t.tx.Exec(ctx, `
        INSERT INTO wallets (id, owner_id, balance, frozen_balance, escrow_balance, currency, status,
            kyc_level, daily_load_limit, monthly_load_limit, daily_spend_limit, monthly_spend_limit,
            last_transaction_at, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		w.ID, w.OwnerID, w.Balance, w.FrozenBalance, w.EscrowBalance, w.Currency, string(w.Status),
		string(w.KYCLevel), w.Limits.DailyLoad, w.Limits.MonthlyLoad, w.Limits.DailySpend, w.Limits.MonthlySpend,
		nullableTime(w.LastTransactionAt), w.CreatedAt.UTC())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return newError(CodeWalletExists, "owner %s already has a wallet", w.OwnerID)
		}
		return storeErr("insert wallet", err)
	}
	return nil
}

func (t *pgTx) UpdateWallet(ctx context.Context, w *Wallet) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE wallets
        SET balance = $2, frozen_balance = $3, escrow_balance = $4, status = $5,
            kyc_level = $6, daily_load_limit = $7, monthly_load_limit = $8,
            daily_spend_limit = $9, monthly_spend_limit = $10, last_transaction_at = $11
        WHERE id = $1`,
		w.ID, w.Balance, w.FrozenBalance, w.EscrowBalance, string(w.Status),
		string(w.KYCLevel), w.Limits.DailyLoad, w.Limits.MonthlyLoad,
		w.Limits.DailySpend, w.Limits.MonthlySpend, nullableTime(w.LastTransactionAt))
	if err != nil {
		return storeErr("update wallet", err)
	}
	if tag.RowsAffected() == 0 {
		return newError(CodeWalletNotFound, "wallet %s not found", w.ID)
	}
	return nil
}

func (t *pgTx) AppendEntry(ctx context.Context, e *ledger.Entry) error {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return storeErr("encode entry metadata", err)
	}
	_, err = t.tx.Exec(ctx, `
        INSERT INTO ledger_entries (id, wallet_id, type, amount, balance_before, balance_after,
            status, source, source_reference, description, metadata, processed_at, expires_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ID, e.WalletID, string(e.Type), e.Amount, e.BalanceBefore, e.BalanceAfter,
		string(e.Status), e.Source, e.SourceReference, e.Description, meta, e.ProcessedAt.UTC(), e.ExpiresAt)
	if err != nil {
		return storeErr("append entry", err)
	}
	return nil
}

func (t *pgTx) HasEntryWithReference(ctx context.Context, walletID string, typ ledger.EntryType, ref string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT 1 FROM ledger_entries
            WHERE wallet_id = $1 AND type = $2 AND source_reference = $3
              AND status IN ('pending', 'completed')
        )`, walletID, string(typ), ref).Scan(&exists)
	if err != nil {
		return false, storeErr("check entry reference", err)
	}
	return exists, nil
}

func (t *pgTx) EntryByID(ctx context.Context, walletID, entryID string) (*ledger.Entry, error) {
	row := t.tx.QueryRow(ctx, `
        SELECT id, wallet_id, type, amount, balance_before, balance_after, status,
               source, source_reference, description, metadata, processed_at, expires_at
        FROM ledger_entries
        WHERE wallet_id = $1 AND id = $2`, walletID, entryID)
	e, err := scanEntry(row)
	if err != nil {
		if HasCode(err, CodeWalletNotFound) {
			return nil, newError(CodeEntryNotFound, "entry %s not found", entryID)
		}
		return nil, err
	}
	return e, nil
}

// FinalizeEntry is the only update the entries table ever sees, and it only
// moves pending rows.
func (t *pgTx) FinalizeEntry(ctx context.Context, entryID string, status ledger.EntryStatus, before, after decimal.Decimal, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
        UPDATE ledger_entries
        SET status = $2, balance_before = $3, balance_after = $4, processed_at = $5
        WHERE id = $1 AND status = 'pending'`,
		entryID, string(status), before, after, at.UTC())
	if err != nil {
		return storeErr("finalize entry", err)
	}
	if tag.RowsAffected() == 0 {
		return newError(CodeEntryNotPending, "entry %s is not pending", entryID)
	}
	return nil
}

func (t *pgTx) ClassTotal(ctx context.Context, walletID string, class LimitClass, since time.Time) (decimal.Decimal, error) {
	var query string
	switch class {
	case ClassLoad:
		query = `
            SELECT COALESCE(SUM(amount), 0)
            FROM ledger_entries
            WHERE wallet_id = $1 AND status = 'completed' AND processed_at >= $2
              AND type = 'load'`
	case ClassSpend:
		query = `
            SELECT COALESCE(SUM(ABS(amount)), 0)
            FROM ledger_entries
            WHERE wallet_id = $1 AND status = 'completed' AND processed_at >= $2
              AND (type IN ('payment', 'escrow_hold') OR (type = 'transfer' AND amount < 0))`
	default:
		return decimal.Zero, storeErr("class total", fmt.Errorf("unknown limit class %q", class))
	}

	var total decimal.Decimal
	if err := t.tx.QueryRow(ctx, query, walletID, since.UTC()).Scan(&total); err != nil {
		return decimal.Zero, storeErr("class total", err)
	}
	return total, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return storeErr("commit", err)
	}
	return nil
}

func (t *pgTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return storeErr("rollback", err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*Wallet, error) {
	var w Wallet
	var status, level string
	var lastTx *time.Time
	err := row.Scan(&w.ID, &w.OwnerID, &w.Balance, &w.FrozenBalance, &w.EscrowBalance,
		&w.Currency, &status, &level,
		&w.Limits.DailyLoad, &w.Limits.MonthlyLoad, &w.Limits.DailySpend, &w.Limits.MonthlySpend,
		&lastTx, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newError(CodeWalletNotFound, "wallet not found")
		}
		return nil, storeErr("scan wallet", err)
	}
	w.Status = Status(status)
	w.KYCLevel = KYCLevel(level)
	if lastTx != nil {
		w.LastTransactionAt = lastTx.UTC()
	}
	return &w, nil
}

func scanEntry(row pgx.Row) (*ledger.Entry, error) {
	var e ledger.Entry
	var typ, status string
	var meta []byte
	err := row.Scan(&e.ID, &e.WalletID, &typ, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
		&status, &e.Source, &e.SourceReference, &e.Description, &meta, &e.ProcessedAt, &e.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, newError(CodeWalletNotFound, "entry not found")
		}
		return nil, storeErr("scan entry", err)
	}
	e.Type = ledger.EntryType(typ)
	e.Status = ledger.EntryStatus(status)
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &e.Metadata); err != nil {
			return nil, storeErr("decode entry metadata", err)
		}
	}
	return &e, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

// storeErr classifies driver errors: lock waits become the retryable
// LOCK_TIMEOUT code, everything else STORE_UNAVAILABLE.
func storeErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgLockNotAvailable {
		return ErrLockTimeout
	}
	return newError(CodeStoreUnavailable, "%s: %v", op, err)
}
