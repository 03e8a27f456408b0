package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/handlers"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/api/router"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/config"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/feed"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/logger"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/pkg/validator"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/repository/postgres"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/services"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/internal/worker"
	"github.com/CaptainTaekwondo/Prompt-Master-v4.1.2/migrations"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.Init(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		OutputPath: cfg.Logging.OutputPath,
	})

	loc, err := cfg.Ledger.Location()
	if err != nil {
		return fmt.Errorf("invalid ledger timezone %q: %w", cfg.Ledger.Timezone, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Up(ctx, db.DB, db.Driver()); err != nil {
		return err
	}
	log.Infof("Database ready (%s)", db.Driver())

	broker, closeBroker, err := newBroker(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	defer closeBroker()

	// Repositories
	accounts := postgres.NewAccountRepository(db, broker, loc, log)
	subscriptions := postgres.NewSubscriptionRepository(db)

	// Services
	subscriptionService := services.NewSubscriptionService(subscriptions, accounts, log)
	ledgerService := services.NewLedgerService(accounts, subscriptionService, loc, cfg.Ledger.ReconcileRetries, log)
	promptService := services.NewPromptService(accounts, subscriptionService, log)

	// Handlers
	val := validator.New()
	h := &router.Handlers{
		Health:       handlers.NewHealthHandler(db.DB, log),
		Account:      handlers.NewAccountHandler(ledgerService, log, val),
		Stream:       handlers.NewStreamHandler(ledgerService, log, 0),
		Prompt:       handlers.NewPromptHandler(promptService, log, val),
		Subscription: handlers.NewSubscriptionHandler(subscriptionService, log, val),
	}

	gauge, err := worker.NewSubscriptionGauge(subscriptions, cfg.Ledger.GaugeSchedule, log)
	if err != nil {
		return err
	}
	if err := gauge.Start(ctx); err != nil {
		return err
	}
	defer gauge.Stop()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.New(cfg, log, h),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Server listening on %s (%s)", srv.Addr, cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Server stopped")
	return nil
}

// newBroker fans account changes out across instances through Redis when
// enabled, and within this process otherwise.
func newBroker(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (feed.Broker, func(), error) {
	if !cfg.Enabled {
		b := feed.NewMemoryBroker(log)
		return b, func() { _ = b.Close() }, nil
	}

	client, err := feed.NewRedisClient(cfg)
	if err != nil {
		return nil, nil, err
	}
	b, err := feed.NewRedisBroker(ctx, client, cfg.Channel, log)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Infof("Account changes relayed through redis %s", cfg.Addr())
	return b, func() {
		_ = b.Close()
		_ = client.Close()
	}, nil
}
