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

	_ "github.com/unionportal/benefits-api/api/swagger"
	"github.com/unionportal/benefits-api/internal/handler"
	"github.com/unionportal/benefits-api/internal/middleware"
	"github.com/unionportal/benefits-api/internal/models"
	"github.com/unionportal/benefits-api/internal/repository"
	"github.com/unionportal/benefits-api/internal/service"
	"github.com/unionportal/benefits-api/pkg/cache"
	"github.com/unionportal/benefits-api/pkg/config"
	"github.com/unionportal/benefits-api/pkg/database"
	"github.com/unionportal/benefits-api/pkg/export"
	"github.com/unionportal/benefits-api/pkg/jobs"
	"github.com/unionportal/benefits-api/pkg/logger"
	"github.com/unionportal/benefits-api/pkg/mail"
	corsmiddleware "github.com/unionportal/benefits-api/pkg/middleware/cors"
	reqidmiddleware "github.com/unionportal/benefits-api/pkg/middleware/requestid"
	"github.com/unionportal/benefits-api/pkg/scheduler"
	"github.com/unionportal/benefits-api/pkg/storage"
)

// @title Union Benefits Portal API
// @version 1.0.0
// @description Employee benefits portal: enrollments, point redemption and roster exports
// @BasePath /api/v1
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
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if cfg.Cache.Enabled {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.EnrollmentTTL, logr, cfg.Cache.Enabled)

	userRepo := repository.NewUserRepository(db)
	activityRepo := repository.NewActivityRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	enrolleeRepo := repository.NewEnrolleeRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	exportRepo := repository.NewExportRepository(db)

	validate := validator.New()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "benefits-portal",
		Audience:           []string{"benefits-portal"},
	})
	userSvc := service.NewUserService(userRepo, logr)
	activitySvc := service.NewActivityService(activityRepo, cacheSvc, cfg.Cache.ActivityTTL, logr)
	enrollmentSvc := service.NewEnrollmentService(enrollmentRepo, enrolleeRepo, cacheSvc, cfg.Cache.EnrollmentTTL, logr)

	var mailer service.Mailer
	if cfg.Mail.Enabled {
		mailer = mail.NewSMTPMailer(cfg.Mail)
	}
	notificationSvc := service.NewNotificationService(mailer, logr, cfg.Mail.Enabled)

	enrollingSvc := service.NewEnrollingService(enrollmentRepo, enrolleeRepo, userSvc, enrollmentSvc, userRepo, notificationSvc, validate, logr)
	exchangeSvc := service.NewExchangeService(activitySvc, orderRepo, userSvc, userRepo, validate, logr)

	store, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(exportRepo, enrollmentRepo, enrolleeRepo, userRepo, store, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exportQueue := jobs.NewQueue("roster-exports", exportSvc.Process, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	exportSvc.BindQueue(exportQueue)
	exportQueue.Start(ctx)
	defer exportQueue.Stop()

	maint := scheduler.New(logr)
	if err := maint.Add("30 3 * * *", "refresh-token-sweep", func() {
		if _, err := userRepo.DeleteExpiredRefreshTokens(context.Background(), time.Now().UTC()); err != nil {
			logr.Sugar().Warnw("refresh token sweep failed", "error", err)
		}
	}); err != nil {
		logr.Sugar().Fatalw("failed to schedule refresh token sweep", "error", err)
	}
	if err := maint.Add(cfg.Exports.CleanupSchedule, "export-cleanup", func() {
		exportSvc.Cleanup(context.Background())
	}); err != nil {
		logr.Sugar().Fatalw("failed to schedule export cleanup", "error", err)
	}
	maint.Start()
	defer maint.Stop()

	authHandler := handler.NewAuthHandler(authSvc)
	homeHandler := handler.NewHomeHandler(userSvc)
	enrollmentHandler := handler.NewEnrollmentHandler(enrollmentSvc)
	enrollingHandler := handler.NewEnrollingHandler(enrollingSvc)
	exchangeHandler := handler.NewExchangeHandler(activitySvc, exchangeSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/refresh", authHandler.Refresh)

	// Signed download links carry their own authentication.
	api.GET("/exports/:token", exportHandler.Download)

	protected := api.Group("", middleware.JWT(authSvc))
	protected.POST("/auth/logout", authHandler.Logout)
	protected.POST("/auth/change-password", authHandler.ChangePassword)

	protected.GET("/home", homeHandler.Home)

	protected.GET("/enrollments", enrollmentHandler.List)
	protected.GET("/enrollments/:id", enrollmentHandler.Get)
	protected.GET("/enrollments/:id/enroll", enrollingHandler.Preview)
	protected.POST("/enrollments/:id/enroll", enrollingHandler.Submit)

	protected.GET("/exchange/activity", exchangeHandler.Activity)
	protected.POST("/exchange/orders", exchangeHandler.PlaceOrder)

	admin := protected.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/enrollments/:id/roster",
		middleware.Audit(userRepo, models.AuditActionRosterView, "enrollments"),
		enrollmentHandler.Roster)
	admin.POST("/enrollments/:id/roster-export", exportHandler.Request)
	admin.GET("/roster-exports/:jobId", exportHandler.Status)
	admin.GET("/admin/system-status", metricsHandler.SystemStatus)

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
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
