package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/erazemk/menjava/internal/api"
	"github.com/erazemk/menjava/internal/auth"
	"github.com/erazemk/menjava/internal/config"
	"github.com/erazemk/menjava/internal/exchange"
	"github.com/erazemk/menjava/internal/inbox"
	"github.com/erazemk/menjava/internal/messaging"
	"github.com/erazemk/menjava/internal/store"
)

const revocationPurgeInterval = time.Hour

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringP("addr", "a", ":8080", "listen address")
	cmd.Flags().String("transfer-mode", exchange.ModeAtomic, "exchange strategy: atomic or two-phase")
	return cmd
}

// openRealtime builds the configured realtime backend. The returned close
// function is never nil.
func openRealtime(ctx context.Context, cfg *config.Config, log *slog.Logger) (messaging.Realtime, func() error, error) {
	if cfg.Realtime != "redis" {
		return messaging.NewHub(log), func() error { return nil }, nil
	}
	rt, err := messaging.NewRedisRealtime(ctx, messaging.RedisConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		PresenceTTL: cfg.PresenceTTL,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.Close, nil
}

func (a *app) serve(parent context.Context) error {
	log := slog.Default()
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := a.openDatabase()
	if err != nil {
		return err
	}
	defer database.Close()
	log.Info("database ready", "path", a.cfg.DB)

	secret, err := store.GetJWTSecret(ctx, database)
	if err != nil {
		return err
	}

	if err := recordTransferMode(ctx, a.cfg.TransferMode, log, database); err != nil {
		return err
	}
	transfer, err := exchange.NewTransferrer(a.cfg.TransferMode, database, log)
	if err != nil {
		return err
	}

	rt, closeRealtime, err := openRealtime(ctx, a.cfg, log)
	if err != nil {
		return fmt.Errorf("connecting realtime: %w", err)
	}
	defer closeRealtime()
	log.Info("realtime ready", "backend", a.cfg.Realtime)

	handler := api.NewRouter(api.Deps{
		DB:          database,
		Tokens:      auth.NewTokens(secret, a.cfg.TokenExpiry),
		Ledger:      exchange.NewLedger(database, transfer, log),
		Inbox:       &inbox.Aggregator{DB: database},
		Messaging:   &messaging.Service{DB: database, Realtime: rt, Log: log},
		Realtime:    rt,
		Log:         log,
		CORSOrigins: a.cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server started", "addr", a.cfg.Addr, "transfer_mode", a.cfg.TransferMode)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("server forced to shutdown", "error", err)
			return server.Close()
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(revocationPurgeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case now := <-ticker.C:
				n, err := store.PurgeExpiredRevocations(gctx, database, now)
				if err != nil {
					log.Warn("purging revoked tokens", "error", err)
					continue
				}
				if n > 0 {
					log.Debug("purged revoked tokens", "count", n)
				}
			}
		}
	})

	err = g.Wait()
	log.Info("server stopped, closing database")
	return err
}

// recordTransferMode stores the active exchange strategy and logs when it
// differs from the previous run. The client-driven strategy can leave
// partial swaps behind, so it is announced as a warning.
func recordTransferMode(ctx context.Context, mode string, log *slog.Logger, database *sql.DB) error {
	previous, err := store.GetSetting(ctx, database, store.SettingTransferMode)
	if err != nil {
		return err
	}
	if previous != "" && previous != mode {
		log.Info("transfer mode changed", "from", previous, "to", mode)
	}
	if mode == exchange.ModeTwoPhase {
		log.Warn("two-phase transfers enabled; a failure between phases flags the proposal for reconciliation")
	}
	return store.PutSetting(ctx, database, store.SettingTransferMode, mode)
}
