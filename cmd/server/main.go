package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/tutorium/intake-api/api/swagger"
	"github.com/tutorium/intake-api/internal/handler"
	"github.com/tutorium/intake-api/internal/middleware"
	"github.com/tutorium/intake-api/internal/models"
	"github.com/tutorium/intake-api/internal/repository"
	"github.com/tutorium/intake-api/internal/service"
	"github.com/tutorium/intake-api/pkg/cache"
	"github.com/tutorium/intake-api/pkg/config"
	"github.com/tutorium/intake-api/pkg/database"
	"github.com/tutorium/intake-api/pkg/jobs"
	"github.com/tutorium/intake-api/pkg/logger"
	corsmiddleware "github.com/tutorium/intake-api/pkg/middleware/cors"
	reqidmiddleware "github.com/tutorium/intake-api/pkg/middleware/requestid"
	"github.com/tutorium/intake-api/pkg/storage"
)

// @title Tutorium Intake API
// @version 1.0.0
// @description Multi-tenant tutoring administration backend centred on intake reconciliation
// @BasePath /
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validate := validator.New()

	// Repositories.
	userRepo := repository.NewUserRepository(db)
	orgRepo := repository.NewOrganizationRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	intakeRepo := repository.NewIntakeRepository(db)
	instructorRepo := repository.NewInstructorRepository(db)
	sessionRepo := repository.NewSessionReportRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	reportJobRepo := repository.NewReportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// Storage.
	documentStore, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init report storage", "error", err)
	}
	documentSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	reportSigner := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	// Services.
	metricsService := service.NewMetricsService()
	cacheService := service.NewCacheService(cacheRepo, metricsService, cfg.Settings.CacheTTL, logr, redisClient != nil)
	authService := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "tutorium-intake-api",
	})
	intakeService := service.NewIntakeService(intakeRepo, studentRepo, instructorRepo, userRepo, metricsService, logr)
	studentService := service.NewStudentService(studentRepo, userRepo, validate, logr, cfg.Intake.SuggestionLimit)
	instructorService := service.NewInstructorService(instructorRepo, validate, logr)
	settingsService := service.NewSettingsService(settingsRepo, cacheService, userRepo, validate, logr, cfg.Settings.CacheTTL)
	sessionService := service.NewSessionReportService(sessionRepo, studentRepo, instructorRepo, validate, logr)
	reportService := service.NewReportService(reportJobRepo, sessionRepo, reportStore, reportSigner, validate, logr)
	documentService := service.NewDocumentService(documentRepo, studentRepo, documentStore, documentSigner, logr, service.DocumentServiceConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
		SignedURLTTL:     cfg.Documents.SignedURLTTL,
	})

	// Background report workers.
	reportQueue := jobs.NewQueue("reports", reportService.Process, jobs.QueueConfig{
		Workers:    cfg.Reports.WorkerConcurrency,
		MaxRetries: cfg.Reports.WorkerRetries,
		Logger:     logr,
	})
	reportService.SetQueue(reportQueue)
	reportQueue.Start(ctx)
	defer reportQueue.Stop()
	reportService.StartCleanup(ctx, cfg.Reports.CleanupInterval, cfg.Reports.SignedURLTTL)

	// Handlers.
	authHandler := handler.NewAuthHandler(authService)
	intakeHandler := handler.NewIntakeHandler(intakeService, studentService)
	studentHandler := handler.NewStudentHandler(studentService)
	instructorHandler := handler.NewInstructorHandler(instructorService)
	settingsHandler := handler.NewSettingsHandler(settingsService)
	reportHandler := handler.NewReportHandler(sessionService, reportService)
	documentHandler := handler.NewDocumentHandler(documentService)
	metricsHandler := handler.NewMetricsHandler(metricsService)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsService))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authService), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authService), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authService), authHandler.Me)
	}

	membershipLookup := func(c *gin.Context, orgID, userID string) (*models.Membership, error) {
		return orgRepo.MembershipFor(c.Request.Context(), orgID, userID)
	}
	org := api.Group("", middleware.JWT(authService), middleware.Tenant(membershipLookup))
	{
		intake := org.Group("/intake")
		{
			intake.GET("/queue", middleware.RequirePermission(models.PermIntakeView), intakeHandler.Queue)
			intake.GET("/dismissed", middleware.RequirePermission(models.PermIntakeDismiss), intakeHandler.Dismissed)
			intake.GET("/:id/suggestions", middleware.RequirePermission(models.PermIntakeView), intakeHandler.Suggestions)
			intake.POST("/:id/assign", middleware.RequirePermission(models.PermIntakeAssign), intakeHandler.Assign)
			intake.POST("/:id/approve", middleware.RequirePermission(models.PermIntakeApprove), intakeHandler.Approve)
			intake.POST("/:id/dismiss", middleware.RequirePermission(models.PermIntakeDismiss), intakeHandler.Dismiss)
			intake.POST("/:id/restore", middleware.RequirePermission(models.PermIntakeDismiss), intakeHandler.Restore)
			intake.POST("/merge", middleware.RequirePermission(models.PermIntakeMerge), intakeHandler.Merge)
		}

		students := org.Group("/students")
		{
			students.GET("", middleware.RequirePermission(models.PermStudentRead), studentHandler.List)
			students.GET("/:id", middleware.RequirePermission(models.PermStudentRead), studentHandler.Get)
			students.POST("", middleware.RequirePermission(models.PermStudentWrite), studentHandler.Create)
			students.PATCH("/:id", middleware.RequirePermission(models.PermStudentWrite), studentHandler.Update)
			students.DELETE("/:id", middleware.RequirePermission(models.PermStudentWrite), studentHandler.Deactivate)
			students.GET("/:id/documents", middleware.RequirePermission(models.PermDocumentRead), documentHandler.ListByStudent)
		}

		instructors := org.Group("/instructors")
		{
			instructors.GET("", middleware.RequirePermission(models.PermInstructorRead), instructorHandler.List)
			instructors.GET("/:id", middleware.RequirePermission(models.PermInstructorRead), instructorHandler.Get)
			instructors.POST("", middleware.RequirePermission(models.PermRosterManage), instructorHandler.Create)
			instructors.PATCH("/:id", middleware.RequirePermission(models.PermRosterManage), instructorHandler.Update)
			instructors.DELETE("/:id", middleware.RequirePermission(models.PermRosterManage), instructorHandler.Deactivate)
		}

		settings := org.Group("/settings")
		{
			settings.GET("", middleware.RequirePermission(models.PermSettingsRead), settingsHandler.Get)
			settings.PUT("", middleware.RequirePermission(models.PermSettingsWrite), settingsHandler.Update)
		}

		sessions := org.Group("/sessions")
		{
			sessions.GET("", middleware.RequirePermission(models.PermSessionWrite), reportHandler.ListSessions)
			sessions.POST("", middleware.RequirePermission(models.PermSessionWrite), reportHandler.CreateSession)
		}

		reports := org.Group("/reports", middleware.RequirePermission(models.PermReportRequest))
		{
			reports.GET("/hours", reportHandler.InstructorHours)
			reports.POST("/jobs", middleware.Audit(userRepo, models.AuditActionReportRequest, "report"), reportHandler.CreateJob)
			reports.GET("/jobs/:id", reportHandler.GetJob)
			reports.GET("/download", reportHandler.Download)
		}

		documents := org.Group("/documents")
		{
			documents.POST("", middleware.RequirePermission(models.PermDocumentWrite), middleware.Audit(userRepo, models.AuditActionDocumentUpload, "document"), documentHandler.Upload)
			documents.GET("/:id/url", middleware.RequirePermission(models.PermDocumentRead), documentHandler.SignedURL)
			documents.GET("/download", middleware.RequirePermission(models.PermDocumentRead), documentHandler.Download)
			documents.DELETE("/:id", middleware.RequirePermission(models.PermDocumentWrite), middleware.Audit(userRepo, models.AuditActionDocumentDelete, "document"), documentHandler.Delete)
		}

		org.GET("/system/metrics", middleware.RequirePermission(models.PermSettingsWrite), metricsHandler.Snapshot)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Warnw("graceful shutdown failed", "error", err)
	}
}
