package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/hr-admin-api/api/swagger"
	"github.com/noah-isme/hr-admin-api/internal/handler"
	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/cache"
	"github.com/noah-isme/hr-admin-api/pkg/config"
	"github.com/noah-isme/hr-admin-api/pkg/database"
	"github.com/noah-isme/hr-admin-api/pkg/jobs"
	"github.com/noah-isme/hr-admin-api/pkg/logger"
	"github.com/noah-isme/hr-admin-api/pkg/storage"
)

// @title HR Admin API
// @version 1.0.0
// @description Employee roster, bulk employee import and batch payslip ingestion.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	var sessionCache service.SessionCache
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, keeping sessions in memory", zap.Error(err))
		}
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessionCache = repository.NewCacheRepository(redisClient, "hr-admin:", logr.Named("cache"))
	} else {
		sessionCache = repository.NewMemoryCacheRepository()
	}

	files, err := storage.NewLocalStorage(cfg.Payslips.StorageDir)
	if err != nil {
		return fmt.Errorf("init payslip storage: %w", err)
	}

	employeeRepo := repository.NewEmployeeRepository(db)
	payslipRepo := repository.NewPayslipRepository(db)
	activityRepo := repository.NewActivityLogRepository(db)

	activitySvc := service.NewActivityLogService(activityRepo, jobs.QueueConfig{
		Workers:    cfg.ActivityLog.Workers,
		BufferSize: cfg.ActivityLog.BufferSize,
		MaxRetries: cfg.ActivityLog.MaxRetries,
		RetryDelay: cfg.ActivityLog.RetryDelay,
	}, logr.Named("activity"))
	activitySvc.Start(ctx)
	defer activitySvc.Stop()

	sessions := service.NewSessionStore(sessionCache, metrics, cfg.Import.SessionTTL, logr.Named("sessions"))
	authSvc := service.NewAuthService(logr.Named("auth"), service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	employeeSvc := service.NewEmployeeService(employeeRepo, activitySvc, validator.New(), logr.Named("employees"))
	importSvc := service.NewEmployeeImportService(employeeRepo, sessions, activitySvc, metrics, service.EmployeeImportConfig{
		MaxUploadBytes: cfg.Import.MaxUploadBytes,
		Rules:          importer.Rules{ShortIDWidth: cfg.Import.MatriculaWidth},
	}, logr.Named("employee-import"))
	payslipSvc := service.NewPayslipImportService(payslipRepo, employeeRepo, files,
		storage.NewSignedURLSigner(cfg.Payslips.SignedURLSecret, cfg.Payslips.SignedURLTTL),
		sessions, activitySvc, metrics, service.PayslipConfig{
			Rules: importer.PayslipRules{
				ShortIDWidth: cfg.Import.MatriculaWidth,
				Extensions:   cfg.Payslips.Extensions,
			},
			MaxFileBytes:  cfg.Payslips.MaxFileBytes,
			MaxBatchFiles: cfg.Payslips.MaxBatchFiles,
			StagingTTL:    cfg.Payslips.StagingTTL,
		}, logr.Named("payslips"))
	go payslipSvc.RunCleanup(ctx, cfg.Payslips.CleanupInterval)

	checks := map[string]handler.ReadinessCheck{
		"postgres": func(ctx context.Context) error { return database.Ping(ctx, db) },
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return cache.Ping(ctx, redisClient) }
	}

	r := newRouter(cfg, logr, routeDeps{
		auth:      authSvc,
		metrics:   metrics,
		employees: handler.NewEmployeeHandler(employeeSvc),
		imports:   handler.NewEmployeeImportHandler(importSvc, cfg.Import.MaxUploadBytes),
		payslips:  handler.NewPayslipHandler(payslipSvc, int64(cfg.Payslips.MaxBatchFiles)*cfg.Payslips.MaxFileBytes),
		activity:  handler.NewActivityLogHandler(activitySvc),
		ops:       handler.NewMetricsHandler(metrics, checks),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
