package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLockTimeoutSurfaces(t *testing.T) {
	store := NewMemoryStore()
	store.SetLockWait(50 * time.Millisecond)
	engine := newTestEngine(t, store, newTestClock(), nil)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)

	// hold the wallet's row lock from a second unit of work
	blocker, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, err := blocker.WalletForUpdate(ctx, w.ID); err != nil {
		t.Fatalf("lock wallet: %v", err)
	}

	_, err = engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("10"), Source: SourceCard})
	if !HasCode(err, CodeLockTimeout) {
		t.Fatalf("expected LOCK_TIMEOUT, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("lock timeout must be retryable")
	}

	if err := blocker.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("10"), Source: SourceCard}); err != nil {
		t.Fatalf("load after lock released: %v", err)
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	store := NewMemoryStore()
	engine := newTestEngine(t, store, newTestClock(), nil)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)
	mustLoad(t, engine, w.OwnerID, "50")

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	locked, err := tx.WalletByOwnerForUpdate(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	locked.Balance = d("9999")
	if err := tx.UpdateWallet(ctx, locked); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	snap, err := engine.Balance(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !snap.Balance.Equal(d("50")) {
		t.Fatalf("balance = %s, want 50 after rollback", snap.Balance)
	}
}

// First locks of fresh wallets grow the semaphore map while finishing units
// of work release into it; both paths must synchronize on the store mutex.
// Run with -race.
func TestFreshWalletLocksDuringCommits(t *testing.T) {
	store := NewMemoryStore()
	engine := newTestEngine(t, store, newTestClock(), nil)
	ctx := context.Background()
	seed := mustCreate(t, engine, KYCBasic)

	const fresh = 8
	errs := make(chan error, fresh+1)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		var err error
		for i := 0; i < 40 && err == nil; i++ {
			_, err = engine.Load(ctx, LoadRequest{OwnerID: seed.OwnerID, Amount: d("1"), Source: SourceCard})
		}
		errs <- err
	}()
	for i := 0; i < fresh; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := engine.CreateWallet(ctx, uuid.NewString(), KYCBasic)
			if err == nil {
				_, err = engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("5"), Source: SourceCard})
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent load: %v", err)
		}
	}
}

func TestCommitReleasesLocks(t *testing.T) {
	store := NewMemoryStore()
	store.SetLockWait(50 * time.Millisecond)
	engine := newTestEngine(t, store, newTestClock(), nil)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)

	// back-to-back operations would hang if a finished unit kept its lock
	for i := 0; i < 3; i++ {
		if _, err := engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("10"), Source: SourceCard}); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}
}
