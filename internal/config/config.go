package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/wallet"
)

const (
	defaultLogLevel    = "info"
	defaultCurrency    = "USD"
	defaultTimezone    = "UTC"
	defaultLockTimeout = 2 * time.Second
	defaultCacheTTL    = time.Minute

	lockTimeoutSecondsEnvVar  = "LOCK_TIMEOUT_SECONDS"
	lockTimeoutDurationEnvVar = "LOCK_TIMEOUT"
)

// Config captures wallet engine runtime configuration loaded from
// environment variables.
type Config struct {
	DatabaseURL string
	RedisURL    string
	LogLevel    string
	Currency    string
	Timezone    *time.Location
	LockTimeout time.Duration
	CacheTTL    time.Duration
	Tiers       wallet.TierTable
}

// Load reads configuration from the environment. REDIS_URL is optional; an
// empty value disables the balance cache. Tier limits start from
// wallet.DefaultTiers and accept per-field overrides such as
// WALLET_LIMIT_BASIC_DAILY_LOAD.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		LogLevel:    strings.ToLower(getEnv("LOG_LEVEL", defaultLogLevel)),
		Currency:    getEnv("WALLET_CURRENCY", defaultCurrency),
		LockTimeout: defaultLockTimeout,
		CacheTTL:    defaultCacheTTL,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL must be set")
	}

	tz := getEnv("WALLET_TIMEZONE", defaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("invalid WALLET_TIMEZONE %q: %w", tz, err)
	}
	cfg.Timezone = loc

	if v := os.Getenv(lockTimeoutSecondsEnvVar); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockTimeoutSecondsEnvVar, err)
		}
		cfg.LockTimeout = time.Duration(seconds) * time.Second
	} else if v := os.Getenv(lockTimeoutDurationEnvVar); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", lockTimeoutDurationEnvVar, err)
		}
		cfg.LockTimeout = d
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		cfg.CacheTTL = d
	}

	tiers, err := loadTiers()
	if err != nil {
		return Config{}, err
	}
	cfg.Tiers = tiers

	return cfg, nil
}

// loadTiers applies environment overrides on top of the stock tier table.
func loadTiers() (wallet.TierTable, error) {
	tiers := wallet.DefaultTiers()
	for _, level := range []wallet.KYCLevel{wallet.KYCBasic, wallet.KYCEnhanced, wallet.KYCFull} {
		limits := tiers[level]
		fields := []struct {
			suffix string
			target *decimal.Decimal
		}{
			{"DAILY_LOAD", &limits.DailyLoad},
			{"MONTHLY_LOAD", &limits.MonthlyLoad},
			{"DAILY_SPEND", &limits.DailySpend},
			{"MONTHLY_SPEND", &limits.MonthlySpend},
		}
		for _, f := range fields {
			key := fmt.Sprintf("WALLET_LIMIT_%s_%s", strings.ToUpper(string(level)), f.suffix)
			v := os.Getenv(key)
			if v == "" {
				continue
			}
			d, err := decimal.NewFromString(v)
			if err != nil || d.Sign() <= 0 {
				return nil, fmt.Errorf("invalid %s: %q", key, v)
			}
			*f.target = d
		}
		tiers[level] = limits
	}
	return tiers, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
