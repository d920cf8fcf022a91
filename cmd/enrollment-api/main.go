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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/elective-enrollment-api/api/swagger"
	"github.com/noah-isme/elective-enrollment-api/internal/handler"
	"github.com/noah-isme/elective-enrollment-api/internal/middleware"
	"github.com/noah-isme/elective-enrollment-api/internal/models"
	"github.com/noah-isme/elective-enrollment-api/internal/realtime"
	"github.com/noah-isme/elective-enrollment-api/internal/repository"
	"github.com/noah-isme/elective-enrollment-api/internal/repository/memory"
	"github.com/noah-isme/elective-enrollment-api/internal/service"
	"github.com/noah-isme/elective-enrollment-api/pkg/cache"
	"github.com/noah-isme/elective-enrollment-api/pkg/config"
	"github.com/noah-isme/elective-enrollment-api/pkg/database"
	"github.com/noah-isme/elective-enrollment-api/pkg/jobs"
	"github.com/noah-isme/elective-enrollment-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/elective-enrollment-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/elective-enrollment-api/pkg/middleware/requestid"
)

// @title Elective Enrollment API
// @version 1.0.0
// @description Seat-capacity enrollment for faculty-led elective sections.
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

type allocationStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.AllocationTx) error) error
}

type sectionStore interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListAvailable(ctx context.Context, department string, year int) ([]models.Section, error)
	List(ctx context.Context, filter models.SectionFilter) ([]models.Section, error)
	Create(ctx context.Context, section *models.Section) error
}

type enrollmentStore interface {
	ListForStudent(ctx context.Context, studentID string) ([]models.EnrollmentDetail, error)
	ListReport(ctx context.Context, filter models.EnrollmentReportFilter) ([]models.EnrollmentReportRow, error)
}

type studentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

// backend is the record store chosen by STORE_DRIVER.
type backend struct {
	store       allocationStore
	sections    sectionStore
	enrollments enrollmentStore
	students    studentStore
	pingers     map[string]handler.Pinger
	close       func()
}

func openBackend(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*backend, error) {
	if cfg.Database.Driver == config.StoreDriverMemory {
		store := memory.NewStore()
		store.SeedDemo(cfg.Sections.DefaultCapacity)
		logr.Warn("using in-memory store with demo data; nothing is persisted")
		return &backend{
			store:       store,
			sections:    store.Sections(),
			enrollments: store.Enrollments(),
			students:    store.Students(),
			pingers:     map[string]handler.Pinger{},
			close:       func() {},
		}, nil
	}

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &backend{
		store:       repository.NewSQLStore(db),
		sections:    repository.NewSectionRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		students:    repository.NewStudentRepository(db),
		pingers:     map[string]handler.Pinger{"postgres": db},
		close:       func() { _ = db.Close() },
	}, nil
}

func needsRedis(cfg *config.Config) bool {
	return cfg.Sections.CacheEnabled || cfg.Notify.Transport != config.NotifyTransportMemory
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	metrics := service.NewMetricsService()
	validate := validator.New()

	be, err := openBackend(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer be.close()

	var redisClient *redis.Client
	if needsRedis(cfg) {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		switch {
		case err != nil && cfg.Notify.Transport != config.NotifyTransportMemory:
			return fmt.Errorf("connect redis for %s notifications: %w", cfg.Notify.Transport, err)
		case err != nil:
			logr.Warn("redis unavailable, section cache disabled", zap.Error(err))
		default:
			defer redisClient.Close()
			be.pingers["redis"] = cache.Pinger{Client: redisClient}
		}
	}

	cacheSvc := service.NewCacheService(
		repository.NewCacheRepository(redisClient, cfg.Sections.CachePrefix, logr),
		metrics, cfg.Sections.CacheTTL, logr, cfg.Sections.CacheEnabled && redisClient != nil,
	)

	hub := realtime.NewHub(cfg.Notify.BufferSize, logr)
	var publishers []service.Publisher
	switch cfg.Notify.Transport {
	case config.NotifyTransportRedis:
		publishers = append(publishers, realtime.NewRedisPublisher(redisClient, cfg.Notify.ChannelPrefix))
		go realtime.KeepBridged(ctx, redisClient, cfg.Notify.ChannelPrefix, hub, logr, realtime.BridgeBackoff{
			Initial: 500 * time.Millisecond,
			Max:     30 * time.Second,
		})
	case config.NotifyTransportBoth:
		publishers = append(publishers, hub, realtime.NewRedisPublisher(redisClient, cfg.Notify.ChannelPrefix))
	default:
		publishers = append(publishers, hub)
	}

	notifier := service.NewNotifierService(be.students, publishers, metrics, logr)
	queue := jobs.NewQueue("notifications", notifier.HandleJob, jobs.QueueConfig{
		Workers:    cfg.Notify.Workers,
		BufferSize: cfg.Notify.BufferSize,
		MaxRetries: -1,
		Logger:     logr,
	})
	queue.Start(context.WithoutCancel(ctx))
	notifier.UseDispatcher(queue)

	allocator := service.NewEnrollmentService(be.store, service.NewSectionLocks(cfg.Allocator.LockTimeout, metrics), service.EnrollmentServiceOptions{
		Notifier:         notifier,
		Cache:            cacheSvc,
		Metrics:          metrics,
		TransientRetries: cfg.Allocator.TransientRetries,
	}, validate, logr)
	sections := service.NewSectionService(be.sections, be.enrollments, cacheSvc, cfg.Sections.DefaultCapacity, validate, logr)
	reports := service.NewReportService(be.enrollments, nil, nil, validate, logr)
	auth := service.NewAuthService(service.AuthConfig{Secret: cfg.JWT.Secret, Issuer: cfg.JWT.Issuer, Expiry: cfg.JWT.Expiration})
	metricsHandler := handler.NewMetricsHandler(metrics, be.pingers)
	eventsHandler := handler.NewEventsHandler(hub, 0, logr)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		Auth:        auth,
		Sections:    handler.NewSectionHandler(sections),
		Enrollments: handler.NewEnrollmentHandler(allocator, reports),
		Reports:     handler.NewReportHandler(reports),
		Events:      eventsHandler,
		Metrics:     metricsHandler,
		DevTokens:   cfg.Env != config.EnvProduction,
	}.Register(r.Group(cfg.APIPrefix))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv.RegisterOnShutdown(eventsHandler.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env,
			"store", cfg.Database.Driver, "notify", cfg.Notify.Transport)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("http shutdown incomplete", zap.Error(err))
	}
	queue.Drain(shutdownCtx)
	return nil
}
