package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/girderhq/api/internal/app"
	"github.com/girderhq/api/internal/config"
	girderhttp "github.com/girderhq/api/internal/infra/http"
	"github.com/girderhq/api/internal/infra/http/handler"
	"github.com/girderhq/api/internal/infra/jobs"
	"github.com/girderhq/api/internal/infra/postgres"
	"github.com/girderhq/api/internal/infra/redis"
	"github.com/girderhq/api/pkg/domain/authz"
	"github.com/girderhq/api/pkg/jwt"
	"github.com/girderhq/api/pkg/logger"
	"github.com/girderhq/api/pkg/password"
	"github.com/girderhq/api/pkg/validator"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		log := logger.NewDefault()
		log.Error("failed to load configuration", "error", err)
		return 1
	}

	log := initLogger(cfg)
	log.Info("starting application", "app", cfg.App.Name, "env", cfg.App.Env)

	db, err := postgres.New(&cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		return 1
	}
	defer closeWithLog(db, "database", log)
	log.Info("database connected")

	redisClient, err := redis.New(&cfg.Redis, log)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		return 1
	}
	defer closeWithLog(redisClient, "redis", log)
	log.Info("redis connected")

	// Repositories
	userRepo := postgres.NewUserRepository(db)
	tenantRepo := postgres.NewTenantRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	projectRepo := postgres.NewProjectRepository(db)
	taskRepo := postgres.NewTaskRepository(db)
	rfiRepo := postgres.NewRFIRepository(db)
	contractRepo := postgres.NewContractRepository(db)
	notificationRepo := postgres.NewNotificationRepository(db)

	// Job queue client
	jobClient := jobs.NewClient(jobs.ClientConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
	}, log)
	defer closeWithLog(jobClient, "job client", log)

	// Services
	hasher := password.New(password.WithCost(cfg.Auth.BcryptCost))
	tokens := jwt.NewGenerator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer,
		cfg.Auth.AccessTokenDuration, cfg.Auth.RefreshTokenDuration)

	authService := app.NewAuthService(userRepo, hasher, tokens, log)
	permissionService := app.NewPermissionService(roleRepo, log)
	tenantService := app.NewTenantService(tenantRepo, roleRepo, log)
	roleService := app.NewRoleService(roleRepo, log)
	projectService := app.NewProjectService(projectRepo, log)
	taskService := app.NewTaskService(taskRepo, projectService, jobClient, log)
	rfiService := app.NewRFIService(rfiRepo, projectService, jobClient, log)
	contractService := app.NewContractService(contractRepo, projectService, log)
	notificationService := app.NewNotificationService(notificationRepo, taskRepo, log)

	gate := authz.NewGate(tenantRepo, permissionService)
	log.Info("services initialized")

	// HTTP server
	server, err := girderhttp.NewServer(cfg, log, girderhttp.RouterDeps{
		Config:        cfg,
		Logger:        log,
		Validator:     validator.New(),
		Gate:          gate,
		Auth:          authService,
		Tenants:       tenantService,
		Permissions:   permissionService,
		Roles:         roleService,
		Projects:      projectService,
		Tasks:         taskService,
		RFIs:          rfiService,
		Contracts:     contractService,
		Notifications: notificationService,
		Health: handler.NewHealthHandler(
			handler.WithDatabase(db),
			handler.WithRedis(redisClient),
		),
	}, redisClient)
	if err != nil {
		log.Error("failed to build http server", "error", err)
		return 1
	}

	// Background worker and scheduler
	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisAddr:     cfg.Redis.Addr(),
		RedisPassword: cfg.Redis.Password,
		RedisDB:       cfg.Redis.DB,
		Concurrency:   cfg.Worker.Concurrency,
		Queues:        cfg.Worker.Queues,
	}, notificationService, log)

	scheduler := jobs.NewScheduler(jobClient, log)
	if cfg.Scheduler.Enabled {
		if err := scheduler.RegisterDueSoonScan(cfg.Scheduler.DueSoonSpec, cfg.Scheduler.DueSoonWindow); err != nil {
			log.Error("failed to register due-soon scan", "error", err)
			return 1
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.Start()
	})
	g.Go(func() error {
		return worker.Run(gctx)
	})
	if cfg.Scheduler.Enabled {
		g.Go(func() error {
			return scheduler.Run(gctx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	log.Info("application started", "http_addr", cfg.Server.Addr())

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error("application error", "error", err)
		return 1
	}

	log.Info("application stopped")
	return 0
}

func initLogger(cfg *config.Config) *logger.Logger {
	log := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	log.SetDefault()
	return log
}

type closer interface {
	Close() error
}

func closeWithLog(c closer, name string, log *logger.Logger) {
	if err := c.Close(); err != nil {
		log.Error("failed to close "+name, "error", err)
	}
}
