package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/block-scheduler-api/api/swagger"
	"github.com/noah-isme/block-scheduler-api/internal/handler"
	internalmiddleware "github.com/noah-isme/block-scheduler-api/internal/middleware"
	"github.com/noah-isme/block-scheduler-api/internal/models"
	"github.com/noah-isme/block-scheduler-api/internal/repository"
	"github.com/noah-isme/block-scheduler-api/internal/service"
	"github.com/noah-isme/block-scheduler-api/pkg/cache"
	"github.com/noah-isme/block-scheduler-api/pkg/config"
	"github.com/noah-isme/block-scheduler-api/pkg/database"
	"github.com/noah-isme/block-scheduler-api/pkg/export"
	"github.com/noah-isme/block-scheduler-api/pkg/jobs"
	"github.com/noah-isme/block-scheduler-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/block-scheduler-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/block-scheduler-api/pkg/middleware/requestid"
)

// @title Block Scheduler API
// @version 1.0.0
// @description Places teaching module blocks into a shared weekly timetable.
// @BasePath /api/v1
// @schemes http
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		// Load reports still work uncached.
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	clock, err := service.NewSystemClock(cfg.Scheduler.Timezone)
	if err != nil {
		return err
	}
	shift, err := models.ParseShift(cfg.Scheduler.DefaultShift)
	if err != nil {
		return fmt.Errorf("scheduler default shift: %w", err)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	var cacheRepo service.CacheRepository
	if redisClient != nil {
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Loads.CacheTTL, logr, cacheRepo != nil && cfg.Loads.CacheEnabled)

	eventRepo := repository.NewEventRepository(db)
	loadRepo := repository.NewWeeklyLoadRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)

	loadTracker := service.NewLoadTracker(loadRepo, catalogRepo, cacheSvc, metricsSvc, clock, logr, service.LoadTrackerConfig{CacheTTL: cfg.Loads.CacheTTL})
	eventSvc := service.NewEventService(eventRepo, loadTracker, validate, metricsSvc, logr)
	checker := service.NewAvailabilityChecker(eventRepo, catalogRepo)
	schedulerSvc := service.NewSchedulerService(
		catalogRepo,
		checker,
		loadTracker,
		eventSvc,
		eventRepo,
		service.NewSlotScorer(),
		clock,
		validate,
		metricsSvc,
		logr,
		service.SchedulerConfig{
			DefaultShift: shift,
			MaxWeeks:     cfg.Scheduler.MaxWeeks,
			RunTTL:       cfg.Scheduler.RunTTL,
			RunTimeout:   cfg.Scheduler.RunTimeout,
		},
	)
	exportSvc := service.NewExportService(eventRepo, clock, logr, export.NewCSVExporter(), export.NewPDFExporter(nil))

	var verifier *service.TokenVerifier
	if cfg.Auth.Enabled {
		verifier, err = service.NewTokenVerifier(service.TokenVerifierConfig{
			Secret:   cfg.JWT.Secret,
			Issuer:   cfg.JWT.Issuer,
			Audience: cfg.JWT.Audience,
			Leeway:   cfg.JWT.Leeway,
		})
		if err != nil {
			return err
		}
	}

	queue := jobs.NewQueue("scheduler", schedulerSvc.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Scheduler.AsyncWorkers,
		BufferSize: cfg.Scheduler.QueueBuffer,
		MaxRetries: -1,
		Logger:     logr.Named("scheduler-queue"),
	})
	queue.Start(ctx)
	defer queue.Stop()
	schedulerSvc.AttachQueue(queue)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	if cfg.Metrics.Enabled {
		r.Use(internalmiddleware.Metrics(metricsSvc, "/metrics", "/health", "/ready"))
	}

	pingers := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		pingers["redis"] = redisPinger(redisClient)
	}
	metricsHandler := handler.NewMetricsHandler(metricsSvc, pingers)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	admin := internalmiddleware.AdminOnly(verifier, cfg.Auth.Enabled)
	api := r.Group(apiPrefix(cfg.APIPrefix))

	if cfg.Scheduler.Enabled {
		schedulerHandler := handler.NewSchedulerHandler(schedulerSvc)
		runs := api.Group("/scheduler/runs")
		runs.POST("", withAdmin(admin, schedulerHandler.Run)...)
		runs.POST("/async", withAdmin(admin, schedulerHandler.RunAsync)...)
		runs.GET("/:id", schedulerHandler.GetRun)
	}

	eventHandler := handler.NewEventHandler(eventSvc, exportSvc)
	events := api.Group("/events")
	events.GET("", eventHandler.List)
	events.GET("/export", eventHandler.Export)
	events.GET("/:id", eventHandler.Get)
	events.POST("", withAdmin(admin, eventHandler.Upsert)...)
	events.PUT("/:id", withAdmin(admin, eventHandler.Update)...)
	events.DELETE("/:id", withAdmin(admin, eventHandler.Delete)...)

	loadHandler := handler.NewLoadHandler(loadTracker)
	api.GET("/teachers/:id/loads", loadHandler.TeacherLoads)

	return serve(ctx, r, cfg, logr)
}

func serve(ctx context.Context, r *gin.Engine, cfg *config.Config, logr *zap.Logger) error {
	addr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func withAdmin(admin []gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	chain := make([]gin.HandlerFunc, 0, len(admin)+1)
	chain = append(chain, admin...)
	return append(chain, h)
}

func apiPrefix(prefix string) string {
	prefix = strings.TrimRight(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		return "/"
	}
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	return prefix
}

func redisPinger(client *redis.Client) handler.PingFunc {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}

var _ handler.Pinger = (*sqlx.DB)(nil)
