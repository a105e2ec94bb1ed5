package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tenderfinder/db"
	"tenderfinder/db/migrations"
	"tenderfinder/internal/auth"
	"tenderfinder/internal/config"
	"tenderfinder/internal/handlers"
	"tenderfinder/internal/ingest"
	"tenderfinder/internal/ledger"
	"tenderfinder/internal/logger"
	"tenderfinder/internal/scoring"
	"tenderfinder/internal/search"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}

	zlog, err := logger.New(cfg.Logger.Level)
	if err != nil {
		log.Fatalf("Cannot init logger: %v", err)
	}
	defer zlog.Sync()

	if err := run(cfg, zlog); err != nil {
		zlog.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalogConn, err := openStore(ctx, migrations.Catalog, cfg.Catalog, cfg.MigrationsEnabled, log)
	if err != nil {
		return err
	}
	ledgerConn, err := openStore(ctx, migrations.Ledger, cfg.Ledger, cfg.MigrationsEnabled, log)
	if err != nil {
		catalogConn.Close()
		return err
	}
	defer func() {
		err = multierr.Combine(err, catalogConn.Close(), ledgerConn.Close())
	}()

	if cfg.Auth.DefaultSecret() {
		log.Warn("JWT_SECRET is not set, tokens are signed with the built-in default key")
	}

	engine := scoring.NewEngine(scoring.Config{
		BestPriceFactor: cfg.Scoring.BestPriceFactor,
		DeliveryPercent: cfg.Scoring.DeliveryPercent,
	})
	catalog := db.NewCatalog(catalogConn)

	// пользователи живут рядом с леджером: удаление каскадом чистит их записи
	accounts := auth.NewService(
		db.NewUsers(ledgerConn),
		auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Expiration),
		cfg.Auth.BcryptCost,
		log.Named("auth"),
	)
	if err := accounts.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}

	h := handlers.NewHandler(
		catalog,
		search.NewService(catalog, engine, search.Config{
			ResultLimit:   cfg.Search.ResultLimit,
			WindowPercent: cfg.Search.WindowPercent,
			ScanTimeout:   cfg.Search.ScanTimeout,
		}, log.Named("search")),
		ledger.NewService(db.NewLedger(ledgerConn), catalog, engine, log.Named("ledger")),
		accounts,
		ingest.NewReceiver(log.Named("ingest")),
		engine,
		log,
	)
	h.Probes["catalog"] = catalogConn
	h.Probes["ledger"] = ledgerConn

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      handlers.NewRouter(h, cfg.Server.RequestTimeout),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore подключается к хранилищу и при необходимости прогоняет только его набор миграций
func openStore(ctx context.Context, set migrations.Set, dbCfg config.DatabaseConfig, migrate bool, log *zap.Logger) (*db.Conn, error) {
	name := string(set)
	conn, err := db.Open(ctx, dbCfg.Driver, dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", name, err)
	}
	if migrate {
		if err := migrations.Run(ctx, conn.DB.DB, string(conn.Dialect), logger.NewGooseLogger(log.Named("goose")), set); err != nil {
			conn.Close()
			return nil, fmt.Errorf("migrate %s store: %w", name, err)
		}
	}
	log.Info("store ready", zap.String("store", name), zap.String("driver", string(conn.Dialect)))
	return conn, nil
}
