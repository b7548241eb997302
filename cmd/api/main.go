package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/juju/clock"
	"go.uber.org/zap"

	httptransport "github.com/accountops/account-deletion/internal/api/http"
	"github.com/accountops/account-deletion/internal/api/http/handlers"
	"github.com/accountops/account-deletion/internal/auth"
	"github.com/accountops/account-deletion/internal/config"
	"github.com/accountops/account-deletion/internal/events"
	"github.com/accountops/account-deletion/internal/jobs"
	"github.com/accountops/account-deletion/internal/notify"
	"github.com/accountops/account-deletion/internal/observability"
	"github.com/accountops/account-deletion/internal/persistence"
	"github.com/accountops/account-deletion/internal/repository"
	"github.com/accountops/account-deletion/internal/service"
	"github.com/accountops/account-deletion/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger,
		zap.String("service", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", cfg.App.Version),
	)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	clk := clock.WallClock
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	observability.SubscribeLifecycle(dispatcher, metrics, logger)

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	staffRepo := repository.NewStaffRepository(pool)
	deletionRepo := repository.NewDeletionRepository(pool)
	accountRepo := repository.NewConnectedAccountRepository(pool)
	banRepo := repository.NewBanRepository(pool)
	cleanupRepo := repository.NewCleanupRepository(pool)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	sessions := auth.NewSessionStore(redis.Client, tokens.TTL(), clk)
	scheduler := jobs.NewRedisScheduler(redis.Client, "account_deletion:jobs", cfg.Worker.Lease)
	locker := persistence.NewRedisLocker(redis.Client, cfg.Worker.LockTTL, cfg.Worker.LockWaitInterval)

	providers := make(map[string]service.ProviderHandler, len(cfg.Auth.ConnectedProviders))
	for _, name := range cfg.Auth.ConnectedProviders {
		providers[name] = auth.NewProviderStateHandler(redis.Client, name)
	}

	renderer, err := notify.NewRenderer(cfg.Notification.EmailFrom, cfg.Notification.BoardTitle)
	if err != nil {
		logger.Fatal("failed to load mail templates", zap.Error(err))
	}
	var mailer notify.Mailer = notify.NewLogMailer(logger)
	if cfg.Notification.SMTPHost != "" {
		n := cfg.Notification
		mailer = notify.NewSMTPMailer(n.SMTPHost, n.SMTPPort, n.SMTPUsername, n.SMTPPassword)
	}
	notifications := service.NewNotificationService(renderer, mailer, scheduler, clk, logger)

	engine := service.NewExecutionEngine(service.EngineDependencies{
		Users:     userRepo,
		Accounts:  accountRepo,
		Bans:      banRepo,
		Deletions: deletionRepo,
		Scheduler: scheduler,
		Notifier:  notifications,
		Providers: providers,
		Clock:     clk,
		Logger:    logger,
	})
	deletionService := service.NewDeletionService(service.DeletionDependencies{
		Deletions:  deletionRepo,
		Users:      userRepo,
		Scheduler:  scheduler,
		Notifier:   notifications,
		Locker:     locker,
		Policy:     cfg,
		Usernames:  service.NewUsernameGenerator(cfg.Deletion.DeletedUserPrefix),
		Engine:     engine,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	cleanupService := service.NewCleanupService(cleanupRepo, accountRepo, providers, sessions, logger)
	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:  userRepo,
		StaffRepo: staffRepo,
		BanRepo:   banRepo,
		Sessions:  sessions,
		Tokens:    tokens,
	})
	authMiddleware := auth.NewAuthMiddleware(tokens, userRepo, staffRepo, sessions)

	if n, err := deletionService.Resync(ctx); err != nil {
		logger.Error("failed to resync deletion jobs", zap.Error(err))
	} else {
		logger.Info("deletion jobs resynced", zap.Int("pending", n))
	}

	if cfg.Worker.Enabled {
		runner := worker.NewRunner(scheduler, worker.Options{
			PollInterval: cfg.Worker.PollInterval,
			BatchSize:    cfg.Worker.BatchSize,
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryBackoff: cfg.Worker.RetryBackoff,
		}, clk, metrics, logger)
		worker.RegisterDeletionJobs(runner, deletionService, cleanupService, notifications)
		go func() {
			if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("job runner exited", zap.Error(err))
			}
		}()
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Users:          handlers.NewUsersHandler(authService),
		Deletions:      handlers.NewDeletionHandler(deletionService, authService, sessions),
		Staff:          handlers.NewStaffHandler(authService, deletionService),
		AuthMiddleware: authMiddleware.Handle,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
