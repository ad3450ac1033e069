package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/importer"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/repository"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/config"
	"github.com/noah-isme/hr-admin-api/pkg/database"
	"github.com/noah-isme/hr-admin-api/pkg/jobs"
	"github.com/noah-isme/hr-admin-api/pkg/logger"
	"github.com/noah-isme/hr-admin-api/pkg/storage"
)

// app holds the services a command needs. Sessions live in memory since a
// command runs a whole flow in one process.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	db       *sqlx.DB
	activity *service.ActivityLogService
	imports  *service.EmployeeImportService
	payslips *service.PayslipImportService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	files, err := storage.NewLocalStorage(cfg.Payslips.StorageDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	employees := repository.NewEmployeeRepository(db)
	metrics := service.NewMetricsService()
	sessions := service.NewSessionStore(repository.NewMemoryCacheRepository(), metrics, cfg.Import.SessionTTL, logr)
	activity := service.NewActivityLogService(repository.NewActivityLogRepository(db), jobs.QueueConfig{
		Workers:    1,
		MaxRetries: cfg.ActivityLog.MaxRetries,
		RetryDelay: cfg.ActivityLog.RetryDelay,
	}, logr.Named("activity"))
	activity.Start(ctx)

	return &app{
		cfg:      cfg,
		logger:   logr,
		db:       db,
		activity: activity,
		imports: service.NewEmployeeImportService(employees, sessions, activity, metrics, service.EmployeeImportConfig{
			MaxUploadBytes: cfg.Import.MaxUploadBytes,
			Rules:          importer.Rules{ShortIDWidth: cfg.Import.MatriculaWidth},
		}, logr.Named("employee-import")),
		payslips: service.NewPayslipImportService(repository.NewPayslipRepository(db), employees, files,
			storage.NewSignedURLSigner(cfg.Payslips.SignedURLSecret, cfg.Payslips.SignedURLTTL),
			sessions, activity, metrics, service.PayslipConfig{
				Rules: importer.PayslipRules{
					ShortIDWidth: cfg.Import.MatriculaWidth,
					Extensions:   cfg.Payslips.Extensions,
				},
				MaxFileBytes:  cfg.Payslips.MaxFileBytes,
				MaxBatchFiles: cfg.Payslips.MaxBatchFiles,
				StagingTTL:    cfg.Payslips.StagingTTL,
			}, logr.Named("payslips")),
	}, nil
}

// Close flushes pending activity entries and releases the database.
func (a *app) Close() {
	a.activity.Stop()
	_ = a.db.Close()
	_ = a.logger.Sync()
}

func operatorActor(cmd *cobra.Command) models.Actor {
	name, _ := cmd.Flags().GetString("operator")
	return models.Actor{Name: name, Meta: models.RequestMeta{UserAgent: "hrctl"}}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
