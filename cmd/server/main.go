package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sheikh-saqib/household-ledger/internal/api"
	"github.com/sheikh-saqib/household-ledger/internal/config"
	"github.com/sheikh-saqib/household-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/household-ledger/internal/interfaces"
	"github.com/sheikh-saqib/household-ledger/internal/ledger"
	"github.com/sheikh-saqib/household-ledger/internal/storage/memory"
	"github.com/sheikh-saqib/household-ledger/internal/storage/postgres"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	level, _ := cfg.SlogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store interfaces.LedgerStore
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.MigrateOnStart {
			if err := postgres.RunMigrations(cfg.Store.DatabaseURL); err != nil {
				return err
			}
			logger.Info("migrations applied")
		}
		db, err := postgres.Open(ctx, cfg.Store.DatabaseURL, cfg.Store.MaxOpenConns)
		if err != nil {
			return err
		}
		defer db.Close()
		store = postgres.NewPostgresLedgerStore(db)
	default:
		logger.Warn("using in-memory store; data is lost on exit")
		store = memory.NewMemoryLedgerStore()
	}

	windows, err := cfg.Limits.Resolver()
	if err != nil {
		return err
	}
	opts := []ledger.Option{
		ledger.WithLogger(logger),
		ledger.WithWindowResolver(windows),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher))
	}
	ledgerService := ledger.NewLedger(store, opts...)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.New(ledgerService, store, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", cfg.HTTPAddr, "store", cfg.Store.Driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
