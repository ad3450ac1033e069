package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/hr-admin-api/internal/handler"
	"github.com/noah-isme/hr-admin-api/internal/middleware"
	"github.com/noah-isme/hr-admin-api/internal/models"
	"github.com/noah-isme/hr-admin-api/internal/service"
	"github.com/noah-isme/hr-admin-api/pkg/config"
	"github.com/noah-isme/hr-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hr-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hr-admin-api/pkg/middleware/requestid"
)

type routeDeps struct {
	auth      middleware.TokenValidator
	metrics   *service.MetricsService
	employees *handler.EmployeeHandler
	imports   *handler.EmployeeImportHandler
	payslips  *handler.PayslipHandler
	activity  *handler.ActivityLogHandler
	ops       *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	// Signed links carry their own authorization.
	api.GET("/payslips/download", deps.payslips.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))

	operators := middleware.RequireRoles(middleware.HROperators...)
	hrOrSelf := middleware.RBAC(append(roleNames(middleware.HROperators), middleware.RoleSelf)...)

	employees := secured.Group("/employees")
	employees.GET("", operators, deps.employees.List)
	employees.GET("/:id", operators, deps.employees.Get)
	employees.PATCH("/:id/status", operators, deps.employees.UpdateStatus)
	employees.GET("/:id/payslips", hrOrSelf, deps.payslips.ListByEmployee)

	imports := employees.Group("/import", operators)
	imports.GET("/template", deps.imports.Template)
	imports.POST("", deps.imports.Upload)
	imports.GET("/:session", deps.imports.Get)
	imports.DELETE("/:session", deps.imports.Abandon)
	imports.PUT("/:session/conflicts", deps.imports.SetAllDecisions)
	imports.PUT("/:session/conflicts/:index", deps.imports.SetDecision)
	imports.POST("/:session/conflicts/:index/toggle", deps.imports.ToggleDecision)
	imports.POST("/:session/commit", deps.imports.Commit)
	imports.GET("/:session/report", deps.imports.Report)

	payslips := secured.Group("/payslips", operators)
	payslips.POST("/batch", deps.payslips.Stage)
	payslips.GET("/batch/:session", deps.payslips.Get)
	payslips.DELETE("/batch/:session", deps.payslips.Abandon)
	payslips.PUT("/batch/:session/files/:index", deps.payslips.SetReplace)
	payslips.POST("/batch/:session/commit", deps.payslips.Commit)
	payslips.GET("/:id/download-url", deps.payslips.DownloadLink)

	secured.GET("/activity-logs", operators, deps.activity.List)

	return r
}

func roleNames(roles []models.UserRole) []string {
	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	return names
}
