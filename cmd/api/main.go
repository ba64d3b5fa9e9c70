package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"proviant/internal/api"
	"proviant/internal/config"
	"proviant/internal/database"
	"proviant/internal/domain"
	"proviant/internal/events"
	"proviant/internal/logging"
	"proviant/internal/metrics"
	"proviant/internal/models"
	"proviant/internal/push"
	"proviant/internal/repository"
	"proviant/internal/scheduler"
	"proviant/internal/service"
	"proviant/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	catalog, err := loadCatalog(&logger)
	if err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if !cfg.API.Enabled {
		logger.Warn().Msg("API is disabled in config, but starting API application. Check your config.")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	defer redisClient.Close()

	sessionService := initSessionService(cfg, redisClient, &logger)
	alertScheduler := push.NewRedisAlertScheduler(redisClient, &logger)

	// Воркер здесь только ставит задачи: лист обслуживает процесс бота,
	// у него и клиент таблицы, и цикл доставки.
	var syncWorker domain.SyncWorker
	if cfg.Google.Enabled {
		syncWorker = worker.NewSheetsWorker(db, nil, redisClient, worker.RetryPolicy{}, &logger)
	}

	eventBus := events.NewEventBus()

	userService := service.NewUserService(db, &logger)
	alertService := service.NewAlertService(alertScheduler, db, cfg.Alerts.HorizonDays, cfg.Alerts.DeliveryHour, &logger)
	itemService := service.NewItemService(db, catalog, alertService, eventBus, syncWorker, &logger)
	groupService := service.NewGroupService(db, catalog, &logger)

	runner := initRunner(cfg, sessionService, userService, alertService, eventBus, &logger)

	httpServer := api.NewHTTPServer(cfg.API, itemService, groupService, userService, sessionService, runner, &logger)

	startMetrics(ctx, cfg, &logger)

	return startServer(ctx, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

func loadCatalog(logger *zerolog.Logger) (models.Catalog, error) {
	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("catalog_path", catalogPath).Msg("catalog file missing, using built-in")
			return models.DefaultCatalog(), nil
		}
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("read catalog")
		return models.Catalog{}, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Str("catalog_path", catalogPath).Msg("parse catalog")
		return models.Catalog{}, err
	}

	if err := config.ValidateCatalog(catalog); err != nil {
		logger.Error().Err(err).Msg("catalog validation failed")
		return models.Catalog{}, err
	}

	return catalog, nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("redis connection failed, sessions fall back to disk")
		return redisClient
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initSessionService(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *service.SessionService {
	ttl := time.Duration(cfg.Session.TTLSeconds) * time.Second
	primaryRepo := repository.NewRedisSessionRepository(redisClient, ttl)
	fallbackRepo := repository.NewDiskSessionRepository(cfg.Session.FallbackPath)
	sessionRepo := repository.NewFailoverSessionRepository(primaryRepo, fallbackRepo, logger)
	return service.NewSessionService(sessionRepo, logger)
}

// initRunner регистрирует пересборку для ручного запуска через
// POST /api/v1/refresh. Тикер не включаем: расписание принадлежит
// процессу бота.
func initRunner(
	cfg *config.Config,
	sessions domain.SessionManager,
	users domain.UserService,
	alerts domain.AlertService,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *scheduler.Runner {
	runner := scheduler.NewRunner(worker.RetryPolicy{}, logger)

	interval, err := time.ParseDuration(cfg.Refresh.Interval)
	if err != nil || interval <= 0 {
		interval = 6 * time.Hour
	}

	coordinator := scheduler.NewRefreshCoordinator(sessions, users, alerts, eventBus, logger)
	runner.Register(scheduler.TaskExpiryRefresh, interval, coordinator.Run)
	return runner
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServer(ctx context.Context, httpServer *api.HTTPServer, cfg *config.Config, logger *zerolog.Logger) error {
	go func() {
		if !cfg.API.HTTP.Enabled {
			return
		}
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return nil
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
