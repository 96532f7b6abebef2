package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newCachedEngine(t *testing.T) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	engine, err := NewEngine(NewMemoryStore(), EngineConfig{
		Cache: NewCache(client, time.Minute),
		Clock: newTestClock().Now,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return engine, mr
}

func TestBalanceReadThroughCache(t *testing.T) {
	engine, mr := newCachedEngine(t)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)
	mustLoad(t, engine, w.OwnerID, "80")

	snap, err := engine.Balance(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !snap.Balance.Equal(d("80")) {
		t.Fatalf("balance = %s, want 80", snap.Balance)
	}
	if !mr.Exists(snapshotKeyPrefix + w.OwnerID) {
		t.Fatal("snapshot not cached after store read")
	}

	// served from cache now
	cached, err := engine.Balance(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("cached balance: %v", err)
	}
	if !cached.Balance.Equal(d("80")) {
		t.Fatalf("cached balance = %s, want 80", cached.Balance)
	}
}

func TestMutationInvalidatesCache(t *testing.T) {
	engine, mr := newCachedEngine(t)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)
	mustLoad(t, engine, w.OwnerID, "80")

	if _, err := engine.Balance(ctx, w.OwnerID); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("30")}); err != nil {
		t.Fatalf("payment: %v", err)
	}
	if mr.Exists(snapshotKeyPrefix + w.OwnerID) {
		t.Fatal("snapshot still cached after mutation")
	}

	snap, err := engine.Balance(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !snap.Balance.Equal(d("50")) {
		t.Fatalf("balance after payment = %s, want 50", snap.Balance)
	}
}

// A Redis outage must degrade to store reads, never fail the call.
func TestBalanceDegradesWithoutRedis(t *testing.T) {
	engine, mr := newCachedEngine(t)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)
	mustLoad(t, engine, w.OwnerID, "45")

	mr.Close()

	snap, err := engine.Balance(ctx, w.OwnerID)
	if err != nil {
		t.Fatalf("balance with redis down: %v", err)
	}
	if !snap.Balance.Equal(d("45")) {
		t.Fatalf("balance = %s, want 45", snap.Balance)
	}

	// mutations still commit; invalidation is best-effort
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("5")}); err != nil {
		t.Fatalf("payment with redis down: %v", err)
	}
}
