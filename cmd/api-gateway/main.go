package main

import (
	"context"
	"errors"
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
	"go.uber.org/zap"

	_ "github.com/YashBawari18/Online-TicketConsession/api/swagger"
	"github.com/YashBawari18/Online-TicketConsession/internal/bootstrap"
	"github.com/YashBawari18/Online-TicketConsession/internal/handler"
	internalmiddleware "github.com/YashBawari18/Online-TicketConsession/internal/middleware"
	"github.com/YashBawari18/Online-TicketConsession/internal/repository"
	"github.com/YashBawari18/Online-TicketConsession/internal/service"
	"github.com/YashBawari18/Online-TicketConsession/pkg/cache"
	"github.com/YashBawari18/Online-TicketConsession/pkg/config"
	"github.com/YashBawari18/Online-TicketConsession/pkg/database"
	"github.com/YashBawari18/Online-TicketConsession/pkg/export"
	"github.com/YashBawari18/Online-TicketConsession/pkg/jobs"
	"github.com/YashBawari18/Online-TicketConsession/pkg/logger"
	corsmiddleware "github.com/YashBawari18/Online-TicketConsession/pkg/middleware/cors"
	reqidmiddleware "github.com/YashBawari18/Online-TicketConsession/pkg/middleware/requestid"
	"github.com/YashBawari18/Online-TicketConsession/pkg/storage"
)

// @title Train Concession API
// @version 1.0.0
// @description Student railway concession applications, review and reporting.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := service.NewMetricsService()

	store, err := bootstrap.OpenStore(ctx, cfg, metrics, logr)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if cfg.Database.AutoMigrate && store.Driver == config.GatewayPostgres {
		version, err := store.Migrate(database.Up, 0)
		if err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logr.Info("schema migrated", zap.Uint("version", version))
	}

	checks := map[string]handler.ReadinessCheck{"store": store.Ping}

	var cacheRepo service.CacheRepository
	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable; dashboard cache disabled", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
		checks["cache"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Dashboard.CacheTTL, logr, cacheRepo != nil)

	auditTrail := service.NewAuditTrail(repository.NewAuditRepository(store.Gateway), jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     logr,
	})
	auditTrail.Start(context.Background())
	defer auditTrail.Stop()

	validate := validator.New()

	authSvc := service.NewAuthService(repository.NewAccountRepository(store.Gateway), validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	}, auditTrail)

	concessionSvc := service.NewConcessionService(repository.NewConcessionRepository(store.Gateway), validate, logr,
		service.WithConcessionCache(cacheSvc),
		service.WithConcessionAudit(auditTrail),
		service.WithConcessionMetrics(metrics),
	)

	localStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir, cfg.Documents.AllowedMIMEs)
	if err != nil {
		return fmt.Errorf("open document storage: %w", err)
	}
	documentSvc := service.NewDocumentService(concessionSvc, localStorage,
		storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL), logr,
		service.DocumentServiceConfig{
			MaxFileSize:  cfg.Documents.MaxFileSizeBytes,
			DownloadPath: cfg.APIPrefix + handler.DocumentDownloadPath,
		})

	dashboardSvc := service.NewDashboardService(service.DashboardServiceParams{
		Source: concessionSvc,
		Cache:  cacheSvc,
		Logger: logr,
		Config: service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	exportSvc := service.NewExportService(concessionSvc, service.ExportConfig{Institution: cfg.Export.Institution}, logr, export.NewCSVExporter(), export.NewPDFExporter())

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.Use(internalmiddleware.WithResponseMeta())
	r.Use(internalmiddleware.AuditContext())

	var rateLimit gin.HandlerFunc
	if cfg.RateLimit.Enabled {
		limiter := internalmiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logr)
		limiter.StartCleanup(time.Minute, ctx.Done())
		rateLimit = limiter.Handler()
	}

	handler.RegisterRoutes(r, handler.Handlers{
		Auth:       handler.NewAuthHandler(authSvc),
		Concession: handler.NewConcessionHandler(concessionSvc, documentSvc, dashboardSvc, cfg.Documents.MaxFileSizeBytes),
		Document:   handler.NewDocumentHandler(documentSvc, cfg.Documents.MaxFileSizeBytes),
		Dashboard:  handler.NewDashboardHandler(dashboardSvc),
		Export:     handler.NewExportHandler(exportSvc),
		Metrics:    handler.NewMetricsHandler(metrics, checks),
	}, handler.RouteDeps{
		Prefix:    cfg.APIPrefix,
		Tokens:    authSvc,
		Audit:     auditTrail,
		RateLimit: rateLimit,
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("gateway", store.Driver))
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

