package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/example/slotbooking/internal/application"
	"github.com/example/slotbooking/internal/broadcast"
	"github.com/example/slotbooking/internal/config"
	httptransport "github.com/example/slotbooking/internal/http"
	"github.com/example/slotbooking/internal/logging"
	"github.com/example/slotbooking/internal/notify"
	"github.com/example/slotbooking/internal/persistence/sqlstore"
	"github.com/example/slotbooking/internal/scheduler"
	"github.com/example/slotbooking/internal/telemetry"
)

const serviceName = "slotbooking"

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		bootstrap.Warn("unknown log level, using info", "error", err)
	}
	logger := logging.New(os.Stdout, level).With("service", serviceName)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("slotbooking stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("slotbooking stopped")
}

// run wires every component and blocks until ctx is cancelled or one of the
// long-running components fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("load timezone: %w", err)
	}

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("failed to flush traces", "error", err)
		}
	}()

	store, err := sqlstore.Open(ctx, sqlstore.Config{Driver: cfg.DBDriver, DSN: cfg.DBDSN}, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close store", "error", cerr)
		}
	}()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	if cfg.GamesFile != "" {
		games, err := loadGames(cfg.GamesFile, time.Now())
		if err != nil {
			return err
		}
		if err := seedGames(ctx, store, games); err != nil {
			return err
		}
		logger.Info("game catalog loaded", "games", len(games), "file", cfg.GamesFile)
	}

	hub := broadcast.NewHub(logger)

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.GraphConfigured() {
		graph, err := notify.NewGraphNotifier(ctx, notify.GraphConfig{
			TenantID:     cfg.GraphTenantID,
			ClientID:     cfg.GraphClientID,
			ClientSecret: cfg.GraphClientSecret,
			SenderID:     cfg.GraphSenderID,
		}, logger)
		if err != nil {
			return err
		}
		notifier = graph
	}
	dispatcher := notify.NewDispatcher(notifier, notify.DispatcherConfig{
		Workers:   cfg.NotifyWorkers,
		QueueSize: cfg.NotifyQueue,
		Timeout:   cfg.NotifyTimeout,
	}, logger)

	opts := application.Options{
		HoldTTL:        cfg.HoldTTL,
		ChanceBaseline: cfg.ChanceBaseline,
		Location:       loc,
		Events:         hub,
		Notifications:  dispatcher,
		Logger:         logger,
	}
	booking := application.NewBookingService(store, opts)
	resolver := application.NewResolver(store, opts)
	ledger := application.NewLedger(store, opts)

	sweeper := scheduler.NewSweeper(resolver, cfg.SweepInterval, logger)
	reset, err := scheduler.NewChanceReset(ledger, cfg.ChanceResetSchedule, loc, logger)
	if err != nil {
		return err
	}

	events := httptransport.NewEventsHandler(hub, logger)
	defer func() { _ = events.Close() }()

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Slots:       httptransport.NewSlotHandler(booking, logger),
		Invitations: httptransport.NewInvitationHandler(booking, logger),
		Catalog:     httptransport.NewCatalogHandler(booking, store, logger),
		Events:      events,
		Auth:        httptransport.RequireBearer(httptransport.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer, nil), booking, logger),
		Middleware: []func(http.Handler) http.Handler{
			cors.New(cors.Options{
				AllowedOrigins:   cfg.CORSOrigins,
				AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
				AllowedHeaders:   []string{"Authorization", "Content-Type"},
				AllowCredentials: true,
			}).Handler,
			httptransport.RequestLogger(logger),
		},
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Event streams stay open; handlers bound their own writes.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(redisOpts)
		defer client.Close()
		relay := broadcast.NewRedisRelay(client, "", 0, logger)
		detach := relay.Attach(hub)
		defer detach()
		g.Go(func() error { return relay.Run(gctx) })
	}

	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx) })
	g.Go(func() error { return reset.Run(gctx) })
	g.Go(func() error {
		logger.Info("slotbooking API listening", "addr", server.Addr, "driver", store.Driver(), "timezone", loc.String())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = events.Close()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
