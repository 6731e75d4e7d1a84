package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/backoffice-ledger/internal/config"
	"github.com/iliyamo/backoffice-ledger/internal/database"
	"github.com/iliyamo/backoffice-ledger/internal/handler"
	"github.com/iliyamo/backoffice-ledger/internal/ledger"
	"github.com/iliyamo/backoffice-ledger/internal/queue"
	"github.com/iliyamo/backoffice-ledger/internal/report"
	"github.com/iliyamo/backoffice-ledger/internal/repository"
	"github.com/iliyamo/backoffice-ledger/internal/router"
	"github.com/iliyamo/backoffice-ledger/internal/service"
)

func main() {
	migrate := flag.Bool("migrate", false, "create missing tables before serving")
	flag.Parse()

	_ = godotenv.Load() // .env is optional

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	log := config.NewLogger(cfg.App)
	slog.SetDefault(log)

	if err := run(cfg, log, *migrate); err != nil {
		log.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	if migrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info("schema migrated")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable; cache and rate limiting disabled", slog.String("addr", cfg.Redis.Address()))
	} else {
		defer rdb.Close()
	}

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithStrictStock(cfg.Ledger.StrictStock),
	}
	if cfg.Broker.PublishEnabled {
		pub := service.NewQueuePublisher(cfg.Broker.URL, log)
		defer pub.Close()
		opts = append(opts, ledger.WithPublisher(pub))
	}
	engine := ledger.NewEngine(repository.NewLedgerStore(db), opts...)
	reports := report.NewService(repository.NewReportRepo(db))
	creds := service.NewCredentials(repository.NewUserRepo(db), repository.NewTokenRepo(db), cfg.Auth, log)

	e := router.New(router.Deps{
		Cfg:       cfg,
		Log:       log,
		Redis:     rdb,
		Verifier:  creds,
		DB:        db,
		Auth:      handler.NewAuthHandler(creds),
		Contacts:  handler.NewContactHandler(repository.NewContactRepo(db)),
		Inventory: handler.NewInventoryHandler(repository.NewInventoryRepo(db)),
		Invoices:  handler.NewInvoiceHandler(engine),
		Reports:   handler.NewReportHandler(reports),
	})
	e.Server.ReadTimeout = cfg.App.RequestTimeout
	e.Server.WriteTimeout = cfg.App.RequestTimeout

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.App.Port
		log.Info("listening", slog.String("addr", addr), slog.String("env", cfg.App.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Broker.ConsumerEnabled {
		c := &queue.Consumer{URL: cfg.Broker.URL, LogDir: cfg.Broker.LogDir, Log: log}
		g.Go(func() error {
			if err := c.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
