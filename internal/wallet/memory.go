package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/ledger"
)

// MemoryStore is a concurrency-safe in-memory Store. It models the row-lock
// semantics of the Postgres store closely enough to exercise the engine's
// concurrency properties in unit tests: per-wallet exclusive locks with a
// wait timeout, copy-on-commit isolation, and all-or-nothing commits.
type MemoryStore struct {
	mu       sync.Mutex
	wallets  map[string]Wallet
	owners   map[string]string
	entries  map[string][]ledger.Entry
	sems     map[string]chan struct{}
	lockWait time.Duration

	commitHook func() error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wallets:  make(map[string]Wallet),
		owners:   make(map[string]string),
		entries:  make(map[string][]ledger.Entry),
		sems:     make(map[string]chan struct{}),
		lockWait: 2 * time.Second,
	}
}

// SetLockWait overrides how long a unit of work waits for a wallet lock
// before surfacing LOCK_TIMEOUT.
func (s *MemoryStore) SetLockWait(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lockWait = d
}

// SetCommitHook installs a hook invoked just before a commit applies. A
// non-nil error from the hook aborts the commit and rolls the unit back.
// Used to inject mid-operation failures in atomicity tests.
func (s *MemoryStore) SetCommitHook(fn func() error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitHook = fn
}

// Begin opens a unit of work holding no locks yet.
func (s *MemoryStore) Begin(_ context.Context) (Tx, error) {
	return &memTx{store: s, updates: make(map[string]Wallet), inserts: make(map[string]Wallet)}, nil
}

// WalletByOwner reads a committed wallet without locking.
func (s *MemoryStore) WalletByOwner(_ context.Context, ownerID string) (*Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.owners[ownerID]
	if !ok {
		return nil, newError(CodeWalletNotFound, "no wallet for owner %s", ownerID)
	}
	w := s.wallets[id]
	return &w, nil
}

// Entries returns committed entries newest first.
func (s *MemoryStore) Entries(_ context.Context, walletID string, limit, offset int) ([]ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.entries[walletID]
	var page []ledger.Entry
	for i := len(all) - 1 - offset; i >= 0 && len(page) < limit; i-- {
		page = append(page, copyEntry(all[i]))
	}
	return page, nil
}

func (s *MemoryStore) semFor(id string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	sem, ok := s.sems[id]
	if !ok {
		sem = make(chan struct{}, 1)
		s.sems[id] = sem
	}
	return sem
}

func (s *MemoryStore) acquire(ctx context.Context, id string) error {
	sem := s.semFor(id)
	s.mu.Lock()
	wait := s.lockWait
	s.mu.Unlock()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case sem <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrLockTimeout
	case <-ctx.Done():
		return newError(CodeStoreUnavailable, "lock wait cancelled: %v", ctx.Err())
	}
}

func (s *MemoryStore) release(id string) {
	s.mu.Lock()
	sem := s.sems[id]
	s.mu.Unlock()
	<-sem
}

type pendingFinal struct {
	entryID string
	status  ledger.EntryStatus
	before  decimal.Decimal
	after   decimal.Decimal
	at      time.Time
}

type memTx struct {
	store      *MemoryStore
	held       []string
	inserts    map[string]Wallet
	updates    map[string]Wallet
	newEntries []ledger.Entry
	finals     []pendingFinal
	done       bool
}

func (t *memTx) lock(ctx context.Context, id string) error {
	for _, h := range t.held {
		if h == id {
			return nil
		}
	}
	if err := t.store.acquire(ctx, id); err != nil {
		return err
	}
	t.held = append(t.held, id)
	return nil
}

func (t *memTx) WalletForUpdate(ctx context.Context, walletID string) (*Wallet, error) {
	t.store.mu.Lock()
	_, ok := t.store.wallets[walletID]
	t.store.mu.Unlock()
	if !ok {
		return nil, newError(CodeWalletNotFound, "wallet %s not found", walletID)
	}
	if err := t.lock(ctx, walletID); err != nil {
		return nil, err
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	w := t.store.wallets[walletID]
	return &w, nil
}

func (t *memTx) WalletByOwnerForUpdate(ctx context.Context, ownerID string) (*Wallet, error) {
	t.store.mu.Lock()
	id, ok := t.store.owners[ownerID]
	t.store.mu.Unlock()
	if !ok {
		return nil, newError(CodeWalletNotFound, "no wallet for owner %s", ownerID)
	}
	return t.WalletForUpdate(ctx, id)
}

// WalletPairForUpdate resolves both ids first, then locks in ascending id
// order, mirroring the Postgres store's deadlock-avoidance ordering.
func (t *memTx) WalletPairForUpdate(ctx context.Context, fromOwnerID, toOwnerID string) (*Wallet, *Wallet, error) {
	t.store.mu.Lock()
	fromID, okFrom := t.store.owners[fromOwnerID]
	toID, okTo := t.store.owners[toOwnerID]
	t.store.mu.Unlock()
	if !okFrom {
		return nil, nil, newError(CodeWalletNotFound, "no wallet for owner %s", fromOwnerID)
	}
	if !okTo {
		return nil, nil, newError(CodeWalletNotFound, "no wallet for owner %s", toOwnerID)
	}

	ordered := []string{fromID, toID}
	sort.Strings(ordered)
	for _, id := range ordered {
		if err := t.lock(ctx, id); err != nil {
			return nil, nil, err
		}
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	from := t.store.wallets[fromID]
	to := t.store.wallets[toID]
	return &from, &to, nil
}

func (t *memTx) InsertWallet(_ context.Context, w *Wallet) error {
	t.store.mu.Lock()
	_, exists := t.store.owners[w.OwnerID]
	t.store.mu.Unlock()
	if exists {
		return newError(CodeWalletExists, "owner %s already has a wallet", w.OwnerID)
	}
	for _, staged := range t.inserts {
		if staged.OwnerID == w.OwnerID {
			return newError(CodeWalletExists, "owner %s already has a wallet", w.OwnerID)
		}
	}
	t.inserts[w.ID] = *w
	return nil
}

func (t *memTx) UpdateWallet(_ context.Context, w *Wallet) error {
	t.updates[w.ID] = *w
	return nil
}

func (t *memTx) AppendEntry(_ context.Context, e *ledger.Entry) error {
	t.newEntries = append(t.newEntries, copyEntry(*e))
	return nil
}

func (t *memTx) HasEntryWithReference(_ context.Context, walletID string, typ ledger.EntryType, ref string) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, e := range t.store.entries[walletID] {
		if e.Type != typ || e.SourceReference != ref {
			continue
		}
		if e.Status == ledger.StatusPending || e.Status == ledger.StatusCompleted {
			return true, nil
		}
	}
	for _, e := range t.newEntries {
		if e.WalletID == walletID && e.Type == typ && e.SourceReference == ref {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) EntryByID(_ context.Context, walletID, entryID string) (*ledger.Entry, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, e := range t.store.entries[walletID] {
		if e.ID == entryID {
			c := copyEntry(e)
			return &c, nil
		}
	}
	return nil, newError(CodeEntryNotFound, "entry %s not found", entryID)
}

func (t *memTx) FinalizeEntry(_ context.Context, entryID string, status ledger.EntryStatus, before, after decimal.Decimal, at time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, entries := range t.store.entries {
		for _, e := range entries {
			if e.ID != entryID {
				continue
			}
			if e.Status != ledger.StatusPending {
				return newError(CodeEntryNotPending, "entry %s is not pending", entryID)
			}
			t.finals = append(t.finals, pendingFinal{entryID: entryID, status: status, before: before, after: after, at: at.UTC()})
			return nil
		}
	}
	return newError(CodeEntryNotFound, "entry %s not found", entryID)
}

func (t *memTx) ClassTotal(_ context.Context, walletID string, class LimitClass, since time.Time) (decimal.Decimal, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	total := decimal.Zero
	for _, e := range t.store.entries[walletID] {
		if e.Status != ledger.StatusCompleted || e.ProcessedAt.Before(since) {
			continue
		}
		switch class {
		case ClassLoad:
			if e.Type == ledger.TypeLoad {
				total = total.Add(e.Amount)
			}
		case ClassSpend:
			switch e.Type {
			case ledger.TypePayment, ledger.TypeEscrowHold:
				total = total.Add(e.Amount)
			case ledger.TypeTransfer:
				if e.Amount.IsNegative() {
					total = total.Add(e.Amount.Neg())
				}
			}
		}
	}
	return total, nil
}

func (t *memTx) Commit(_ context.Context) error {
	if t.done {
		return nil
	}

	t.store.mu.Lock()
	hook := t.store.commitHook
	t.store.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			t.finish()
			return newError(CodeStoreUnavailable, "commit failed: %v", err)
		}
	}

	t.store.mu.Lock()
	for id, w := range t.inserts {
		if _, exists := t.store.owners[w.OwnerID]; exists {
			t.store.mu.Unlock()
			t.finish()
			return newError(CodeWalletExists, "owner %s already has a wallet", w.OwnerID)
		}
		t.store.wallets[id] = w
		t.store.owners[w.OwnerID] = id
	}
	for id, w := range t.updates {
		t.store.wallets[id] = w
	}
	for _, e := range t.newEntries {
		t.store.entries[e.WalletID] = append(t.store.entries[e.WalletID], e)
	}
	for _, f := range t.finals {
		entries := t.store.entries[walletOfEntry(t.store, f.entryID)]
		for i := range entries {
			if entries[i].ID == f.entryID {
				entries[i].Status = f.status
				entries[i].BalanceBefore = f.before
				entries[i].BalanceAfter = f.after
				entries[i].ProcessedAt = f.at
			}
		}
	}
	t.store.mu.Unlock()

	t.finish()
	return nil
}

func (t *memTx) Rollback(_ context.Context) error {
	if t.done {
		return nil
	}
	t.finish()
	return nil
}

// finish releases held locks exactly once, in reverse acquisition order.
func (t *memTx) finish() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.release(t.held[i])
	}
	t.held = nil
	t.done = true
}

// walletOfEntry is called with store.mu held.
func walletOfEntry(s *MemoryStore, entryID string) string {
	for walletID, entries := range s.entries {
		for _, e := range entries {
			if e.ID == entryID {
				return walletID
			}
		}
	}
	return ""
}

func copyEntry(e ledger.Entry) ledger.Entry {
	c := e
	if e.Metadata != nil {
		c.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}
