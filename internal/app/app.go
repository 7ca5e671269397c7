package app

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

	"bus-stop-inventory/internal/broker"
	"bus-stop-inventory/internal/bruteforce"
	"bus-stop-inventory/internal/config"
	"bus-stop-inventory/internal/database"
	"bus-stop-inventory/internal/handler"
	"bus-stop-inventory/internal/logger"
	"bus-stop-inventory/internal/metrics"
	"bus-stop-inventory/internal/middleware"
	"bus-stop-inventory/internal/model"
	"bus-stop-inventory/internal/ratelimit"
	"bus-stop-inventory/internal/repository"
	"bus-stop-inventory/internal/router"
	"bus-stop-inventory/internal/security"
	"bus-stop-inventory/internal/service"
	"bus-stop-inventory/internal/storage"
)

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat))

	a := &App{}
	built, err := a.build(cfg)
	if err != nil {
		a.cleanup()
		return nil, err
	}

	a.server = &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           built,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}
	return a, nil
}

func (a *App) build(cfg *config.Config) (http.Handler, error) {
	ctx := context.Background()

	files, err := storage.New(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload storage: %w", err)
	}

	slog.Info("connecting to PostgreSQL")
	db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, db.Close)

	if err := db.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}

	pool := db.Pool
	userRepo := repository.NewUserRepository(pool)
	tokenRepo := repository.NewTokenRepository(pool)
	auditRepo := repository.NewAuditRepository(pool)
	stopRepo := repository.NewStopRepository(pool)
	photoRepo := repository.NewPhotoRepository(pool)
	directoryRepo := repository.NewDirectoryRepository(pool)
	slog.Info("database ready")

	limiterStore, guardStore, err := a.securityStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	publisher, err := a.auditPublisher(cfg)
	if err != nil {
		return nil, err
	}

	hasher, err := security.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize password hasher: %w", err)
	}
	issuer, err := security.NewTokenService(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	m := metrics.New()
	guard := bruteforce.NewGuard(guardStore, bruteforce.Config{
		MaxAttempts: cfg.BruteForceMaxAttempts,
		Window:      cfg.BruteForceWindow,
		Lockout:     cfg.BruteForceLockout,
	})
	limiter := ratelimit.New(limiterStore, ratelimit.Quotas{
		Window:        cfg.RateLimitWindow,
		Login:         cfg.RateLimitLogin,
		Upload:        cfg.RateLimitUpload,
		Default:       cfg.RateLimitDefault,
		BlockDuration: cfg.RateLimitBlock,
	})

	auditService := service.NewAuditService(auditRepo, publisher, m)
	authService := service.NewAuthService(userRepo, tokenRepo, hasher, issuer, guard, auditService, m, service.AuthConfig{
		MaxLoginAttempts: cfg.MaxLoginAttempts,
		AccountLockout:   cfg.AccountLockout,
	})
	userService := service.NewUserService(userRepo, tokenRepo, hasher, auditService, cfg.PasswordStrict)
	stopService := service.NewStopService(stopRepo, photoRepo, files, auditService)
	photoService := service.NewPhotoService(photoRepo, stopRepo, files, auditService, service.PhotoConfig{
		MaxUploadSize:     cfg.MaxUploadSize,
		AllowedExtensions: cfg.AllowedPhotoExtensions,
		ThumbnailSize:     cfg.ThumbnailSize,
	})
	directoryService := service.NewDirectoryService(directoryRepo, auditService)
	reportService := service.NewReportService(stopRepo, auditService)

	if err := authService.Seed(ctx, seedUsers(cfg)); err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	a.cleanupFuncs = append(a.cleanupFuncs, sweepCancel)
	go newSweeper(cfg.PruneInterval, limiter, guard, tokenRepo).Run(sweepCtx)

	return router.New(cfg, m, limiter, middleware.NewAuthenticator(issuer, userRepo), router.Handlers{
		Health:    handler.NewHealthHandler(db),
		Auth:      handler.NewAuthHandler(authService),
		Users:     handler.NewUserHandler(userService),
		Stops:     handler.NewStopHandler(stopService),
		Photos:    handler.NewPhotoHandler(photoService, cfg.MaxUploadSize),
		Reports:   handler.NewReportHandler(reportService),
		Audit:     handler.NewAuditHandler(auditService),
		Directory: handler.NewDirectoryHandler(directoryService),
	}), nil
}

// securityStores picks Redis-backed rate-limit and brute-force state when
// REDIS_URL is set so that several replicas share one view of each client.
func (a *App) securityStores(ctx context.Context, cfg *config.Config) (ratelimit.Store, bruteforce.Store, error) {
	if cfg.RedisURL == "" {
		slog.Info("rate limiting state kept in memory")
		return ratelimit.NewMemoryStore(), bruteforce.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = client.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	slog.Info("rate limiting state kept in redis", "addr", opts.Addr)
	return ratelimit.NewRedisStore(client), bruteforce.NewRedisStore(client), nil
}

func (a *App) auditPublisher(cfg *config.Config) (broker.Publisher, error) {
	if cfg.AuditAMQPURL == "" {
		return broker.Nop{}, nil
	}

	publisher, err := broker.NewAMQPPublisher(cfg.AuditAMQPURL, cfg.AuditAMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to audit broker: %w", err)
	}
	a.cleanupFuncs = append(a.cleanupFuncs, func() { _ = publisher.Close() })

	slog.Info("audit entries mirrored to broker", "queue", cfg.AuditAMQPQueue)
	return publisher, nil
}

func seedUsers(cfg *config.Config) []service.SeedUser {
	if cfg.SeedAdminPassword == "" {
		slog.Warn("SEED_ADMIN_PASSWORD not set, an empty database will have no accounts")
		return nil
	}

	users := []service.SeedUser{
		{Email: cfg.SeedAdminEmail, Password: cfg.SeedAdminPassword, Name: "Administrator", Role: model.RoleAdmin},
	}
	if cfg.SeedDemoUsers {
		users = append(users,
			service.SeedUser{Email: "inspector@busstops.local", Password: cfg.SeedAdminPassword, Name: "Demo Inspector", Role: model.RoleInspector},
			service.SeedUser{Email: "viewer@busstops.local", Password: cfg.SeedAdminPassword, Name: "Demo Viewer", Role: model.RoleViewer},
		)
	}
	return users
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
