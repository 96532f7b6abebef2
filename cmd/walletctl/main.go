// walletctl is an operator CLI for the wallet ledger engine. It is the same
// composition the platform services use: env config, JSON logging, a pgx pool
// and an optional Redis balance cache in front of the Postgres store.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"github.com/MrJones267/aryv-wallet/internal/config"
	"github.com/MrJones267/aryv-wallet/internal/infra"
	"github.com/MrJones267/aryv-wallet/internal/logging"
	"github.com/MrJones267/aryv-wallet/internal/wallet"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engineCfg := wallet.EngineConfig{
		Tiers:    cfg.Tiers,
		Currency: cfg.Currency,
		Logger:   logger,
		Location: cfg.Timezone,
	}

	if cfg.RedisURL != "" {
		cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		engineCfg.Cache = wallet.NewCache(cache, cfg.CacheTTL)
	}

	store := wallet.NewPostgresStore(db, cfg.LockTimeout)
	engine, err := wallet.NewEngine(store, engineCfg)
	if err != nil {
		logger.Error("build engine", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, engine, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", os.Args[1], err)
		if wallet.IsRetryable(err) {
			fmt.Fprintln(os.Stderr, "transient failure, safe to retry")
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, engine *wallet.Engine, command string, args []string) error {
	switch command {
	case "create":
		fs := flag.NewFlagSet("create", flag.ExitOnError)
		owner := fs.String("owner", "", "owner user id")
		level := fs.String("kyc", "basic", "kyc level: basic, enhanced, full")
		fs.Parse(args)
		w, err := engine.CreateWallet(ctx, *owner, wallet.KYCLevel(*level))
		if err != nil {
			return err
		}
		fmt.Printf("wallet %s created for owner %s (%s)\n", w.ID, w.OwnerID, w.KYCLevel)
		return nil

	case "load":
		fs := flag.NewFlagSet("load", flag.ExitOnError)
		owner := fs.String("owner", "", "owner user id")
		amount := fs.String("amount", "", "amount to load")
		source := fs.String("source", wallet.SourceCard, "origination channel")
		ref := fs.String("ref", "", "external source reference")
		location := fs.String("location", "", "kiosk or partner store location")
		agent := fs.String("agent", "", "agent id for agent loads")
		fs.Parse(args)
		amt, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		res, err := engine.Load(ctx, wallet.LoadRequest{
			OwnerID:         *owner,
			Amount:          amt,
			Source:          *source,
			SourceReference: *ref,
			Location:        *location,
			AgentID:         *agent,
		})
		if err != nil {
			return err
		}
		fmt.Printf("loaded %s, balance %s\n", amt, res.Snapshot.Balance)
		return nil

	case "pay":
		fs := flag.NewFlagSet("pay", flag.ExitOnError)
		owner := fs.String("owner", "", "owner user id")
		amount := fs.String("amount", "", "amount to pay")
		hold := fs.Bool("hold", false, "place an escrow hold instead of debiting")
		desc := fs.String("desc", "", "description")
		ref := fs.String("ref", "", "payment reference")
		fs.Parse(args)
		amt, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		res, err := engine.ProcessPayment(ctx, wallet.PaymentRequest{
			OwnerID:     *owner,
			Amount:      amt,
			Description: *desc,
			EscrowHold:  *hold,
			Reference:   *ref,
		})
		if err != nil {
			return err
		}
		fmt.Printf("balance %s, escrow %s\n", res.Snapshot.Balance, res.Snapshot.Escrow)
		return nil

	case "release":
		fs := flag.NewFlagSet("release", flag.ExitOnError)
		id := fs.String("wallet", "", "wallet id")
		amount := fs.String("amount", "", "escrow amount to release")
		desc := fs.String("desc", "", "description")
		fs.Parse(args)
		amt, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		res, err := engine.ReleaseEscrow(ctx, *id, amt, *desc)
		if err != nil {
			return err
		}
		fmt.Printf("balance %s, escrow %s\n", res.Snapshot.Balance, res.Snapshot.Escrow)
		return nil

	case "transfer":
		fs := flag.NewFlagSet("transfer", flag.ExitOnError)
		from := fs.String("from", "", "sender owner id")
		to := fs.String("to", "", "receiver owner id")
		amount := fs.String("amount", "", "amount to transfer")
		desc := fs.String("desc", "", "description")
		fs.Parse(args)
		amt, err := decimal.NewFromString(*amount)
		if err != nil {
			return fmt.Errorf("invalid amount %q", *amount)
		}
		res, err := engine.Transfer(ctx, wallet.TransferRequest{
			FromOwnerID: *from,
			ToOwnerID:   *to,
			Amount:      amt,
			Description: *desc,
		})
		if err != nil {
			return err
		}
		fmt.Printf("transfer %s: sender %s, receiver %s\n",
			res.Reference, res.FromBalance.Balance, res.ToBalance.Balance)
		return nil

	case "balance":
		fs := flag.NewFlagSet("balance", flag.ExitOnError)
		owner := fs.String("owner", "", "owner user id")
		fs.Parse(args)
		snap, err := engine.Balance(ctx, *owner)
		if err != nil {
			return err
		}
		fmt.Printf("balance %s, available %s, escrow %s %s\n",
			snap.Balance, snap.Available, snap.Escrow, snap.Currency)
		return nil

	case "history":
		fs := flag.NewFlagSet("history", flag.ExitOnError)
		owner := fs.String("owner", "", "owner user id")
		limit := fs.Int("limit", 20, "page size")
		offset := fs.Int("offset", 0, "page offset")
		fs.Parse(args)
		entries, err := engine.History(ctx, *owner, *limit, *offset)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %-14s %10s  %s -> %s  [%s]\n",
				e.ProcessedAt.Format("2006-01-02 15:04:05"), e.Type, e.Amount,
				e.BalanceBefore, e.BalanceAfter, e.Status)
		}
		return nil

	default:
		usage()
		return fmt.Errorf("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: walletctl <command> [flags]

commands:
  create    provision a wallet for an owner
  load      load funds from an external source
  pay       debit a payment or place an escrow hold
  release   release held escrow funds
  transfer  move funds between two owners
  balance   show an owner's balance snapshot
  history   list ledger entries, newest first`)
}
