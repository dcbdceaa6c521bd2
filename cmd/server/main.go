package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/linkoffice/oa-approval/internal/application/port"
	"github.com/linkoffice/oa-approval/internal/application/service"
	"github.com/linkoffice/oa-approval/internal/config"
	"github.com/linkoffice/oa-approval/internal/infrastructure/cache"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/repository"
	"github.com/linkoffice/oa-approval/internal/infrastructure/persistence/sqlite"
	httpserver "github.com/linkoffice/oa-approval/internal/interfaces/http"
	"github.com/linkoffice/oa-approval/pkg/database"
	"github.com/linkoffice/oa-approval/pkg/utils"
)

func main() {
	// Load configuration
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting OA approval service",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	// Initialize database
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0755); err != nil {
		logger.Fatal("Failed to create data directory", zap.Error(err))
	}
	db, err := database.New(database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator := database.NewMigrator(db, logger)
	if err := migrator.RunMigrations(cfg.Database.MigrationsDir); err != nil {
		logger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	txManager := sqlite.NewDB(db.DB, logger)
	userRepo := repository.NewUserRepository(db.DB, logger)
	departmentRepo := repository.NewDepartmentRepository(db.DB, logger)
	approverRepo := repository.NewApproverRepository(db.DB, logger)
	workflowRepo := repository.NewWorkflowRepository(db.DB, logger)
	reimbursementRepo := repository.NewReimbursementRepository(db.DB, logger)
	recordRepo := repository.NewRecordRepository(db.DB, logger)

	// Initialize permission cache. The Redis cache is advisory; a miss or
	// outage degrades to database reads.
	var permCache port.PermissionCache = cache.NewNoopPermissionCache()
	var redisCache *cache.RedisPermissionCache
	if cfg.Redis.Enabled {
		redisCache = cache.NewRedisPermissionCache(cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		defer redisCache.Close()
		permCache = redisCache
	}

	// Initialize application services
	svcLogger := utils.NewSugarAdapter(logger)
	permissionService := service.NewPermissionService(
		userRepo, departmentRepo, permCache, cfg.Approval.PermissionCacheTTL, svcLogger)
	approverService := service.NewApproverService(userRepo, approverRepo, svcLogger)
	workflowSelector := service.NewWorkflowSelector(workflowRepo, userRepo, svcLogger)
	approvalService := service.NewApprovalService(
		reimbursementRepo, workflowRepo, recordRepo, workflowSelector, approverService, txManager, svcLogger)
	todoService := service.NewTodoService(reimbursementRepo, workflowRepo, approverService, svcLogger)
	exportService := service.NewExportService(reimbursementRepo, userRepo, recordRepo, svcLogger)

	// Initialize HTTP server
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		JWTSecret:    cfg.Auth.JWTSecret,
	}, approvalService, permissionService, todoService, exportService, svcLogger)

	// Run until interrupted
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		logger.Fatal("HTTP server failed", zap.Error(err))
	}

	logger.Info("Server exited successfully")
}
