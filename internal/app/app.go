// Package app wires configuration, infrastructure, and every domain
// package into the two runtime modes Device Fabric supports: the fabric
// process (HTTP device API + Message Fabric + session core) and the
// escalation worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/devicefabric/fabric/internal/audit"
	"github.com/devicefabric/fabric/internal/config"
	"github.com/devicefabric/fabric/internal/db"
	"github.com/devicefabric/fabric/internal/events"
	"github.com/devicefabric/fabric/internal/httpserver"
	"github.com/devicefabric/fabric/internal/platform"
	"github.com/devicefabric/fabric/internal/telemetry"
	"github.com/devicefabric/fabric/pkg/brokerauth"
	"github.com/devicefabric/fabric/pkg/classify"
	"github.com/devicefabric/fabric/pkg/escalation"
	"github.com/devicefabric/fabric/pkg/fabric"
	"github.com/devicefabric/fabric/pkg/notify"
	"github.com/devicefabric/fabric/pkg/registry"
	"github.com/devicefabric/fabric/pkg/session"
)

// Run is the application entry point. It connects to infrastructure and
// starts the mode named by cfg.Mode.
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting devicefabric", "mode", cfg.Mode, "listen", cfg.ListenAddr())

	pool, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	switch cfg.Mode {
	case "fabric":
		return runFabric(ctx, cfg, logger, pool, rdb, metricsReg)
	case "escalation":
		return runEscalation(ctx, cfg, logger, pool, rdb)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

// runFabric starts the HTTP device API and the Message Fabric's MQTT
// connection together: both read and write the same session/registry
// state, so they share one process and one pgxpool.
func runFabric(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, metricsReg *prometheus.Registry) error {
	bus := events.New()

	auditWriter := audit.NewWriter(pool, logger)
	auditWriter.Start(ctx)
	defer auditWriter.Close()

	credStore, err := brokerauth.NewPasswordFileStore(cfg.Broker.PasswordFile, cfg.Broker.ReloadCommand)
	if err != nil {
		return fmt.Errorf("opening broker password store: %w", err)
	}
	authority := brokerauth.NewAuthority(credStore, cfg.Broker.DebounceWindow, logger)

	queries := db.New(pool)
	fanout := buildNotifier(cfg, queries, logger)
	sessionStore := session.NewStore(pool, logger, bus, fanout)
	classifier := classify.NewClient(cfg.Classify.URL, cfg.Classify.Timeout)

	msgFabric := fabric.NewStore(cfg.MQTT, queries, sessionStore, classifier, logger)

	registryStore := registry.NewStore(pool, logger, authority, msgFabric, auditWriter, cfg.MQTT.BrokerURL)
	registryHandler := registry.NewHandler(registryStore)
	auditHandler := audit.NewHandler(auditWriter)
	fabricHandler := fabric.NewHandler(msgFabric)

	reconciler := brokerauth.NewReconciler(authority, queries, cfg.Broker.ReconcileInterval, logger)
	go func() {
		if err := reconciler.Run(ctx); err != nil {
			logger.Error("broker reconciler stopped", "error", err)
		}
	}()

	srv := httpserver.NewServer(cfg, logger, pool, rdb, metricsReg)
	srv.DeviceRouter.Mount("/", registryHandler.Routes())
	srv.DeviceRouter.Mount("/", auditHandler.Routes())
	registryHandler.MountClaim(srv.Router)
	srv.Router.Route("/admin", func(r chi.Router) {
		r.Mount("/", fabricHandler.Routes())
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("device api listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		if err := msgFabric.Run(ctx); err != nil {
			errCh <- fmt.Errorf("message fabric: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down device api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// runEscalation starts the standalone escalation-tick worker: it advances
// alerts through their escalation levels and fans notifications out to
// whichever channels are configured.
func runEscalation(ctx context.Context, cfg *config.Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client) error {
	logger.Info("escalation worker started")

	bus := events.New()
	queries := db.New(pool)
	fanout := buildNotifier(cfg, queries, logger)
	sessionStore := session.NewStore(pool, logger, bus, fanout)
	classifier := classify.NewClient(cfg.Classify.URL, cfg.Classify.Timeout)
	msgFabric := fabric.NewStore(cfg.MQTT, queries, sessionStore, classifier, logger)
	go func() {
		if err := msgFabric.Run(ctx); err != nil {
			logger.Error("message fabric stopped", "error", err)
		}
	}()

	engine := escalation.NewEngine(pool, rdb, logger, msgFabric, fanout, escalation.Config{
		TickInterval: cfg.Escal.TickInterval,
		BatchLimit:   cfg.Escal.BatchLimit,
	})
	return engine.Run(ctx)
}

// buildNotifier wires the notification provider registry and rate
// limiter shared by the escalation engine's delayed ticks and the
// session core's immediate alert-creation fan-out.
func buildNotifier(cfg *config.Config, queries *db.Queries, logger *slog.Logger) *notify.Fanout {
	providerRegistry := notify.NewRegistry()
	providerRegistry.Register(notify.NewSlackPush(cfg.Notify.SlackBotToken, cfg.Notify.SlackAlertChannel, logger))
	providerRegistry.Register(notify.NewTwilioSMS(cfg.Notify.TwilioAccountSID, cfg.Notify.TwilioAuthToken, cfg.Notify.TwilioFromNumber, logger))
	providerRegistry.Register(notify.NewSMTPEmail(notify.SMTPConfig{
		Host:     cfg.Notify.SMTPHost,
		Port:     cfg.Notify.SMTPPort,
		Username: cfg.Notify.SMTPUsername,
		Password: cfg.Notify.SMTPPassword,
		From:     cfg.Notify.SMTPFrom,
		StartTLS: true,
	}, logger))

	limiter := notify.NewRateLimiter(map[notify.Channel]notify.RateLimit{
		notify.ChannelSMS:   {Max: cfg.Notify.SMSPerHourLimit, Window: time.Hour},
		notify.ChannelEmail: {Max: cfg.Notify.EmailPerHourLimit, Window: time.Hour},
	})
	return notify.NewFanout(queries, providerRegistry, limiter, logger)
}
