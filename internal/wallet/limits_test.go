package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func tightTiers() TierTable {
	tiers := TierTable{
		KYCBasic: {
			DailyLoad:    decimal.NewFromInt(100),
			MonthlyLoad:  decimal.NewFromInt(150),
			DailySpend:   decimal.NewFromInt(100),
			MonthlySpend: decimal.NewFromInt(150),
		},
	}
	tiers[KYCEnhanced] = DefaultTiers()[KYCEnhanced]
	tiers[KYCFull] = DefaultTiers()[KYCFull]
	return tiers
}

func TestDailyWindowResetsAtMidnight(t *testing.T) {
	store := NewMemoryStore()
	clk := newTestClock() // 2026-03-14 10:00 UTC
	engine := newTestEngine(t, store, clk, nil)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic)

	mustLoad(t, engine, w.OwnerID, "200") // fills the daily window
	if _, err := engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("10"), Source: SourceCard}); !HasCode(err, CodeDailyLoadLimit) {
		t.Fatalf("expected DAILY_LOAD_LIMIT_EXCEEDED, got %v", err)
	}

	clk.Advance(15 * time.Hour) // 2026-03-15 01:00, past midnight
	if _, err := engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("10"), Source: SourceCard}); err != nil {
		t.Fatalf("load after window reset: %v", err)
	}
}

func TestMonthlyLoadLimit(t *testing.T) {
	store := NewMemoryStore()
	clk := newTestClock()
	engine := newTestEngine(t, store, clk, tightTiers())
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic) // daily 100, monthly 150

	mustLoad(t, engine, w.OwnerID, "100")
	clk.Advance(24 * time.Hour) // next day, same month

	// the daily window is fresh but the monthly one still holds 100
	if _, err := engine.Load(ctx, LoadRequest{OwnerID: w.OwnerID, Amount: d("60"), Source: SourceCard}); !HasCode(err, CodeMonthlyLoadLimit) {
		t.Fatalf("expected MONTHLY_LOAD_LIMIT_EXCEEDED, got %v", err)
	}
	mustLoad(t, engine, w.OwnerID, "50")

	clk.Advance(18 * 24 * time.Hour) // into April
	mustLoad(t, engine, w.OwnerID, "100")
}

func TestMonthlySpendLimit(t *testing.T) {
	store := NewMemoryStore()
	clk := newTestClock()
	engine := newTestEngine(t, store, clk, tightTiers())
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic) // daily spend 100, monthly 150

	mustLoad(t, engine, w.OwnerID, "100")
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("100")}); err != nil {
		t.Fatalf("payment: %v", err)
	}

	clk.Advance(24 * time.Hour)
	mustLoad(t, engine, w.OwnerID, "50")
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("60")}); !HasCode(err, CodeMonthlySpendLimit) {
		t.Fatalf("expected MONTHLY_SPEND_LIMIT_EXCEEDED, got %v", err)
	}
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("50")}); err != nil {
		t.Fatalf("payment within monthly window: %v", err)
	}
}

// Escrow holds and transfer debits count toward spend limits; releases and
// fees do not.
func TestSpendClassMembership(t *testing.T) {
	store := NewMemoryStore()
	engine := newTestEngine(t, store, newTestClock(), nil)
	ctx := context.Background()
	w := mustCreate(t, engine, KYCBasic) // daily spend 150
	other := mustCreate(t, engine, KYCBasic)
	mustLoad(t, engine, w.OwnerID, "200")

	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("100"), EscrowHold: true}); err != nil {
		t.Fatalf("hold: %v", err)
	}
	// 100 held + 60 payment would exceed the daily 150
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("60")}); !HasCode(err, CodeDailySpendLimit) {
		t.Fatalf("expected DAILY_SPEND_LIMIT_EXCEEDED, got %v", err)
	}
	if _, err := engine.Transfer(ctx, TransferRequest{FromOwnerID: w.OwnerID, ToOwnerID: other.OwnerID, Amount: d("60")}); !HasCode(err, CodeDailySpendLimit) {
		t.Fatalf("expected DAILY_SPEND_LIMIT_EXCEEDED on transfer, got %v", err)
	}

	// releasing the hold spends nothing further
	if _, err := engine.ReleaseEscrow(ctx, w.ID, d("100"), "payout"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := engine.ProcessPayment(ctx, PaymentRequest{OwnerID: w.OwnerID, Amount: d("50")}); err != nil {
		t.Fatalf("payment within remaining headroom: %v", err)
	}
}

// The limit windows open at local midnight and the 1st of the month in the
// configured location, not in UTC.
func TestWindowBoundariesInLocation(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	at := time.Date(2026, 4, 1, 2, 0, 0, 0, time.UTC) // still March 31, 21:00 local
	ev := NewEvaluator(func() time.Time { return at }, loc)

	day := ev.startOfDay()
	if !day.Equal(time.Date(2026, 3, 31, 0, 0, 0, 0, loc)) {
		t.Fatalf("startOfDay = %v, want local midnight March 31", day)
	}
	month := ev.startOfMonth()
	if !month.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, loc)) {
		t.Fatalf("startOfMonth = %v, want local March 1", month)
	}
}
