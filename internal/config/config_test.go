package config

import (
	"testing"
	"time"

	"github.com/MrJones267/aryv-wallet/internal/wallet"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wallet")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "info" || cfg.Currency != "USD" {
		t.Fatalf("defaults: level=%s currency=%s", cfg.LogLevel, cfg.Currency)
	}
	if cfg.Timezone != time.UTC {
		t.Fatalf("timezone = %v, want UTC", cfg.Timezone)
	}
	if cfg.LockTimeout != 2*time.Second {
		t.Fatalf("lock timeout = %v, want 2s", cfg.LockTimeout)
	}
	if cfg.RedisURL != "" {
		t.Fatalf("redis url = %q, want empty", cfg.RedisURL)
	}
	if !cfg.Tiers[wallet.KYCBasic].DailyLoad.Equal(wallet.DefaultTiers()[wallet.KYCBasic].DailyLoad) {
		t.Fatal("tiers should default to the stock table")
	}
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wallet")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("WALLET_CURRENCY", "XAF")
	t.Setenv("LOCK_TIMEOUT_SECONDS", "5")
	t.Setenv("WALLET_LIMIT_BASIC_DAILY_LOAD", "500")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %s, want debug", cfg.LogLevel)
	}
	if cfg.Currency != "XAF" {
		t.Fatalf("currency = %s, want XAF", cfg.Currency)
	}
	if cfg.LockTimeout != 5*time.Second {
		t.Fatalf("lock timeout = %v, want 5s", cfg.LockTimeout)
	}
	basic := cfg.Tiers[wallet.KYCBasic]
	if basic.DailyLoad.String() != "500" {
		t.Fatalf("basic daily load = %s, want 500", basic.DailyLoad)
	}
	if !basic.MonthlyLoad.Equal(wallet.DefaultTiers()[wallet.KYCBasic].MonthlyLoad) {
		t.Fatal("unrelated fields must keep their defaults")
	}
}

func TestLoadRejectsBadTierOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/wallet")
	t.Setenv("WALLET_LIMIT_FULL_DAILY_SPEND", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative limit override")
	}
}
