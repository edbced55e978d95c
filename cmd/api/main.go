package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"k8s.io/utils/clock"

	"github.com/BradenHooton/admingate/internal/auth"
	"github.com/BradenHooton/admingate/internal/background"
	"github.com/BradenHooton/admingate/internal/config"
	"github.com/BradenHooton/admingate/internal/database"
	"github.com/BradenHooton/admingate/internal/gatekeeper"
	"github.com/BradenHooton/admingate/internal/handlers"
	"github.com/BradenHooton/admingate/internal/metrics"
	middlewareCustom "github.com/BradenHooton/admingate/internal/middleware"
	"github.com/BradenHooton/admingate/internal/notify"
	"github.com/BradenHooton/admingate/internal/routes"
	"github.com/BradenHooton/admingate/internal/store"
	pkghttp "github.com/BradenHooton/admingate/pkg/http"
	pkglogger "github.com/BradenHooton/admingate/pkg/logger"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Server.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded",
		slog.String("env", cfg.Server.Env),
		slog.String("store", cfg.Gate.StoreBackend),
		slog.Int("credentials", len(cfg.Credentials)),
	)
	for _, w := range cfg.Warnings {
		logger.Warn("configuration warning", slog.String("warning", w))
	}
	if cfg.BuiltinCredentials {
		logger.Warn("no admin credentials configured, using the built-in development credential")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Session store
	sessionStore, health, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open session store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	credentials, err := gatekeeper.NewCredentialSet(cfg.Credentials)
	if err != nil {
		logger.Error("invalid admin credentials", slog.Any("error", err))
		os.Exit(1)
	}

	policy := gatekeeper.Policy{
		MaxAttempts:     cfg.Gate.MaxAttempts,
		LockoutDuration: cfg.Gate.LockoutDuration,
		SessionTTL:      cfg.Gate.SessionTTL,
		TickInterval:    cfg.Gate.TickInterval,
	}

	// Metrics
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(promRegistry)

	clk := clock.RealClock{}
	registry, err := gatekeeper.NewRegistry(gatekeeper.RegistryConfig{
		Policy:      policy,
		Credentials: credentials,
		Store:       sessionStore,
		Clock:       clk,
		Recorder:    collector,
		Logger:      logger,
		IdleTimeout: cfg.Gate.IdleTimeout,
	})
	if err != nil {
		logger.Error("failed to create gatekeeper registry", slog.Any("error", err))
		os.Exit(1)
	}
	defer registry.Close()

	// Lockout alerts
	var alerter notify.Alerter = notify.NopAlerter{}
	if cfg.Alerts.Enabled() {
		sesAlerter, err := notify.NewSESAlerter(ctx, cfg.Alerts.AWSRegion, cfg.Alerts.FromAddress, cfg.Alerts.Recipients, logger)
		if err != nil {
			logger.Error("failed to initialize lockout alerts", slog.Any("error", err))
			os.Exit(1)
		}
		alerter = sesAlerter
	}

	ipConfig, err := pkghttp.NewIPConfig(cfg.Server.TrustedProxies)
	if err != nil {
		logger.Error("invalid trusted proxies", slog.Any("error", err))
		os.Exit(1)
	}

	tokenManager := auth.NewTokenManager(cfg.Auth.SigningSecret, clk)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingBaseMs,
		RandomDelayMs: cfg.Auth.TimingRandomMs,
	})

	gateHandler := handlers.NewGateHandler(handlers.GateConfig{
		Gates:    registry,
		Tokens:   tokenManager,
		Timing:   timingDelay,
		Audit:    pkglogger.NewAuditLogger(logger),
		Alerter:  alerter,
		Alerts:   collector,
		IPConfig: ipConfig,
		Cookies: auth.CookieConfig{
			Domain:   cfg.Auth.CookieDomain,
			Secure:   cfg.Auth.CookieSecure,
			SameSite: cfg.Auth.CookieSameSite,
		},
		MaxAttempts: policy.MaxAttempts,
		Clock:       clk,
		Logger:      logger,
	})

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{
		Env:             cfg.Server.Env,
		NoStorePrefixes: []string{"/auth/", "/dashboard/"},
	}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger, ipConfig))
	router.Use(middleware.Recoverer)

	routes.RegisterRoutes(router, routes.Deps{
		Gate:     gateHandler,
		Nav:      handlers.NewNavHandler(),
		Health:   handlers.NewHealthHandler(cfg.Gate.StoreBackend, health, logger),
		Tokens:   tokenManager,
		Sessions: registry,
		Metrics:  metrics.Handler(promRegistry),
		IPConfig: ipConfig,
		LoginRateLimit: middlewareCustom.RateLimitConfig{
			Requests: cfg.Server.LoginRateLimit,
			Window:   cfg.Server.LoginRateWindow,
		},
		StateRateLimit: middlewareCustom.RateLimitConfig{
			Requests: cfg.Server.StateRateLimit,
			Window:   cfg.Server.StateRateWindow,
		},
	})

	// Event streams end when ctx does, so Shutdown is not held open by them
	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	// Start idle gatekeeper sweep
	sweepManager := background.NewSweepManager(registry, logger, cfg.Gate.SweepInterval)
	go sweepManager.Start(ctx)

	// Start server
	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutdown signal received")

	sweepManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDeadline)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
	}

	logger.Info("server stopped gracefully")
}

// openStore builds the configured session store backend. health is nil for the memory store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.SessionStore, store.HealthChecker, func(), error) {
	switch cfg.Gate.StoreBackend {
	case config.StorePostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, logger)
		if err != nil {
			return nil, nil, nil, err
		}

		migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := db.Migrate(migrateCtx); err != nil {
			db.Close()
			return nil, nil, nil, err
		}

		pg := store.NewPostgresStore(db, logger)
		pg.Start(ctx)
		return pg, pg, func() {
			pg.Close()
			db.Close()
		}, nil

	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, nil, fmt.Errorf("unable to reach redis at %s: %w", cfg.Redis.Addr, err)
		}

		rs := store.NewRedisStore(client, store.RedisOptions{
			KeyPrefix: cfg.Redis.KeyPrefix,
			Channel:   cfg.Redis.Channel,
		}, logger)
		if err := rs.Start(ctx); err != nil {
			_ = client.Close()
			return nil, nil, nil, err
		}
		logger.Info("redis connection established", slog.String("addr", cfg.Redis.Addr))
		return rs, rs, func() {
			rs.Close()
			_ = client.Close()
		}, nil

	default:
		mem := store.NewMemoryStore()
		logger.Warn("using in-memory session store, sessions do not survive restarts")
		return mem, nil, mem.Close, nil
	}
}
