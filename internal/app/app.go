package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"site-inspector/internal/authz"
	"site-inspector/internal/config"
	"site-inspector/internal/database"
	"site-inspector/internal/event"
	"site-inspector/internal/handler"
	"site-inspector/internal/metrics"
	"site-inspector/internal/middleware"
	"site-inspector/internal/notify"
	"site-inspector/internal/repository"
	"site-inspector/internal/router"
	"site-inspector/internal/scheduler"
	"site-inspector/internal/service"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server    *http.Server
	db        *database.DB
	redis     *redis.Client
	bus       *event.InMemoryBus
	auth      *service.AuthService
	audit     *service.AuditService
	scheduler *scheduler.Scheduler
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, database.Options{
		URL:      cfg.DatabaseURL,
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	slog.Info("connecting to Redis")
	rdb, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	siteRepo := repository.NewSiteRepository(pool)
	visitRepo := repository.NewVisitRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	resetRepo := repository.NewResetTokenRepository(rdb)
	slog.Info("stores ready")

	m := metrics.New(prometheus.NewRegistry())
	bus := event.NewBus()

	tokenService := service.NewTokenService(tokenRepo, userRepo, service.TokenConfig{
		Secret:     cfg.JWTSecret,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
		AccessTTL:  cfg.JWTAccessTTL,
		RefreshTTL: cfg.JWTRefreshTTL,
	}, service.WithTokenMetrics(m))

	authService, err := service.NewAuthService(userRepo, tokenService, resetRepo, newSender(cfg), bus, m, service.AuthConfig{
		BcryptCost:       cfg.BcryptCost,
		MaxFailedLogins:  cfg.MaxFailedLogins,
		LockoutDuration:  cfg.LockoutDuration,
		PasswordResetTTL: cfg.PasswordResetTTL,
		PasswordResetURL: cfg.PasswordResetURL,
	})
	if err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize auth service: %w", err)
	}

	if err := authService.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to seed admin account: %w", err)
	}

	cleanup, err := scheduler.New(cfg.TokenCleanupSchedule, tokenService, m)
	if err != nil {
		_ = rdb.Close()
		db.Close()
		return nil, fmt.Errorf("failed to initialize cleanup scheduler: %w", err)
	}

	evaluator := authz.NewEvaluator(visitRepo, m)
	siteService := service.NewSiteService(siteRepo, evaluator, bus, nil)
	visitService := service.NewVisitService(visitRepo, siteRepo, evaluator, bus, nil)
	auditService := service.NewAuditService(auditRepo, bus)

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(tokenService), router.Handlers{
		Auth:  handler.NewAuthHandler(authService),
		User:  handler.NewUserHandler(authService),
		Site:  handler.NewSiteHandler(siteService),
		Visit: handler.NewVisitHandler(visitService),
		Audit: handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(map[string]handler.HealthCheck{
			"postgres": db.Health,
			"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
	}, m)

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:    server,
		db:        db,
		redis:     rdb,
		bus:       bus,
		auth:      authService,
		audit:     auditService,
		scheduler: cleanup,
	}, nil
}

func newSender(cfg *config.Config) notify.Sender {
	if cfg.MailgunDomain == "" {
		slog.Warn("mailgun not configured, password reset mail will only be logged")
		return notify.LogSender{}
	}
	return notify.NewMailgunSender(notify.MailgunConfig{
		Domain: cfg.MailgunDomain,
		APIKey: cfg.MailgunAPIKey,
		From:   cfg.MailFrom,
	})
}

// Run serves until SIGINT or SIGTERM, then drains in reverse start order.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditCtx, cancelAudit := context.WithCancel(context.Background())
	var auditWG sync.WaitGroup
	auditWG.Add(1)
	go func() {
		defer auditWG.Done()
		a.audit.Run(auditCtx)
	}()

	a.scheduler.Start()

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			runErr = fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("graceful shutdown failed: %w", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		slog.Warn("cleanup scheduler did not stop in time", "error", err)
	}
	a.auth.Wait()

	cancelAudit()
	auditWG.Wait()
	if dropped := a.bus.Dropped(); dropped > 0 {
		slog.Warn("audit events dropped", "count", dropped)
	}

	if err := a.redis.Close(); err != nil {
		slog.Warn("redis close failed", "error", err)
	}
	a.db.Close()

	slog.Info("server stopped")
	return runErr
}
