package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"proviant/internal/api"
	"proviant/internal/bot"
	"proviant/internal/config"
	"proviant/internal/database"
	"proviant/internal/domain"
	"proviant/internal/events"
	"proviant/internal/fatsecret"
	"proviant/internal/google"
	"proviant/internal/logging"
	"proviant/internal/metrics"
	"proviant/internal/models"
	"proviant/internal/push"
	"proviant/internal/repository"
	"proviant/internal/scheduler"
	"proviant/internal/service"
	"proviant/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
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
	cfg, catalog, logger, closer, loadErr := loadConfigAndCatalog()
	if loadErr != nil {
		return loadErr
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	defer redisClient.Close()

	sessionService := initSessionService(cfg, redisClient, &logger)
	alertScheduler := push.NewRedisAlertScheduler(redisClient, &logger)

	sheetsService, err := initGoogleSheets(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	// Запускаем воркер зеркалирования в Google Sheets
	var sheetsWorker *worker.SheetsWorker
	var syncWorker domain.SyncWorker
	if sheetsService != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker = worker.NewSheetsWorker(db, sheetsService, redisClient, retryPolicy, &logger)
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	eventBus := events.NewEventBus()
	subscribeInventoryEvents(eventBus, &logger)

	// Инициализация бизнес-сервисов
	userService := service.NewUserService(db, &logger)
	alertService := service.NewAlertService(alertScheduler, db, cfg.Alerts.HorizonDays, cfg.Alerts.DeliveryHour, &logger)
	itemService := service.NewItemService(db, catalog, alertService, eventBus, syncWorker, &logger)
	groupService := service.NewGroupService(db, catalog, &logger)
	foodCatalog := initFoodCatalog(cfg, &logger)
	botMetrics := bot.NewMetrics()

	runner := initRunner(ctx, cfg, sessionService, userService, alertService, eventBus, &logger)

	startMonitoring(ctx, cfg, db, &logger)

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, itemService, groupService, userService, sessionService, runner, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = apiServer.Shutdown(shutdownCtx)
		}()
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	return startBot(ctx, cfg, catalog, sessionService, itemService, groupService,
		userService, alertService, foodCatalog, syncWorker, runner, botMetrics, redisClient, &logger)
}

func loadConfigAndCatalog() (*config.Config, models.Catalog, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, models.Catalog{}, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, models.Catalog{}, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()

	catalogPath := os.Getenv("CATALOG_PATH")
	if catalogPath == "" {
		catalogPath = "configs/catalog.yaml"
	}

	catalog, err := loadCatalog(catalogPath, &logger)
	if err != nil {
		return nil, models.Catalog{}, zerolog.Logger{}, closer, err
	}

	return cfg, catalog, logger, closer, nil
}

// loadCatalog читает справочник категорий и единиц. Отсутствие файла не
// ошибка: работаем со встроенным каталогом.
func loadCatalog(path string, logger *zerolog.Logger) (models.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info().Str("catalog_path", path).Msg("Файл каталога не найден, используется встроенный")
			return models.DefaultCatalog(), nil
		}
		logger.Error().Err(err).Msgf("Ошибка чтения %s", path)
		return models.Catalog{}, err
	}

	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		logger.Error().Err(err).Msg("Ошибка парсинга catalog.yaml")
		return models.Catalog{}, err
	}

	if err := config.ValidateCatalog(catalog); err != nil {
		logger.Error().Err(err).Msg("Catalog validation failed")
		return models.Catalog{}, err
	}

	return catalog, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	if err := os.MkdirAll(cfg.Session.FallbackPath, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для сессий")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return nil, err
	}
	return db, nil
}

// initRedis создаёт клиент всегда: на нём держится очередь уведомлений.
// Недоступный Redis не валит процесс, сессии уходят на файловый
// fallback, а планирование уведомлений пишет ошибки в лог.
func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Str("addr", cfg.Redis.Address).Msg("Redis unavailable")
	}
	return redisClient
}

func initSessionService(cfg *config.Config, redisClient *redis.Client, logger *zerolog.Logger) *service.SessionService {
	ttl := time.Duration(cfg.Session.TTLSeconds) * time.Second
	primaryRepo := repository.NewRedisSessionRepository(redisClient, ttl)
	fallbackRepo := repository.NewDiskSessionRepository(cfg.Session.FallbackPath)
	sessionRepo := repository.NewFailoverSessionRepository(primaryRepo, fallbackRepo, logger)
	return service.NewSessionService(sessionRepo, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*google.SheetsService, error) {
	if !cfg.Google.Enabled {
		return nil, nil
	}
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.InventorySpreadsheetID == "" {
		logger.Error().Msg("Нехватает переменных для подключения к Гуглу")
		return nil, os.ErrInvalid
	}

	sheetsSvc, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.InventorySpreadsheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil, err
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil, err
	}

	if err := sheetsSvc.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("Sheets cache warmup failed")
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc, nil
}

func initFoodCatalog(cfg *config.Config, logger *zerolog.Logger) domain.FoodCatalog {
	if !cfg.FatSecret.Enabled {
		return nil
	}
	logger.Info().Msg("FatSecret food catalog enabled")
	return fatsecret.NewClient(cfg.FatSecret.ClientID, cfg.FatSecret.ClientSecret, logger)
}

// initRunner регистрирует фоновую пересборку уведомлений. Задача
// зарегистрирована всегда, чтобы ручной запуск (/refresh_all, API)
// работал и при выключенном расписании; тикер крутится только когда
// refresh.enabled.
func initRunner(
	ctx context.Context,
	cfg *config.Config,
	sessions domain.SessionManager,
	users domain.UserService,
	alerts domain.AlertService,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *scheduler.Runner {
	retryPolicy := worker.RetryPolicy{MaxRetries: 3, InitialDelay: 5 * time.Second, MaxDelay: 5 * time.Minute, BackoffFactor: 2}
	runner := scheduler.NewRunner(retryPolicy, logger)

	interval, err := time.ParseDuration(cfg.Refresh.Interval)
	if err != nil || interval <= 0 {
		logger.Warn().Str("interval", cfg.Refresh.Interval).Msg("Некорректный интервал пересборки, используется 6h")
		interval = 6 * time.Hour
	}

	coordinator := scheduler.NewRefreshCoordinator(sessions, users, alerts, eventBus, logger)
	runner.Register(scheduler.TaskExpiryRefresh, interval, coordinator.Run)

	if cfg.Refresh.Enabled {
		runner.Start(ctx)
	}
	return runner
}

func startMonitoring(ctx context.Context, cfg *config.Config, db *database.DB, logger *zerolog.Logger) {
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		go serveHTTP(ctx, cfg.Monitoring.PrometheusPort, "/metrics", promhttp.Handler(), logger)
	}

	if cfg.Monitoring.HealthCheckPort > 0 {
		health := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		go serveHTTP(ctx, cfg.Monitoring.HealthCheckPort, "/healthz", health, logger)
	}
}

func serveHTTP(ctx context.Context, port int, pattern string, handler http.Handler, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle(pattern, handler)

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Str("endpoint", pattern).Int("port", port).Msg("monitoring server error")
	}
}

func startBot(
	ctx context.Context,
	cfg *config.Config,
	catalog models.Catalog,
	sessionService *service.SessionService,
	itemService *service.ItemService,
	groupService *service.GroupService,
	userService *service.UserService,
	alertService *service.AlertService,
	foodCatalog domain.FoodCatalog,
	syncWorker domain.SyncWorker,
	runner *scheduler.Runner,
	botMetrics *bot.Metrics,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.Telegram.BotToken)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания BotAPI")
		return err
	}
	botAPI.Debug = cfg.Telegram.Debug

	sender := bot.NewSenderAdapter(botAPI)
	tgService := service.NewTelegramService(sender)

	telegramBot, err := bot.NewBot(
		tgService, cfg, catalog, sessionService, itemService,
		groupService, userService, alertService, foodCatalog,
		syncWorker, runner, botMetrics, logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка создания бота")
		return err
	}

	dispatcher := newDispatcher(cfg, redisClient, tgService, logger)
	go dispatcher.Start(ctx)

	logger.Info().Msg("Бот запущен...")
	telegramBot.Start(ctx)

	logger.Info().Msg("Shutdown complete.")
	return nil
}

func newDispatcher(cfg *config.Config, redisClient *redis.Client, tgService *service.TelegramService, logger *zerolog.Logger) *push.Dispatcher {
	pollInterval, err := time.ParseDuration(cfg.Alerts.PollInterval)
	if err != nil {
		logger.Warn().Str("poll_interval", cfg.Alerts.PollInterval).Msg("Некорректный интервал опроса очереди, используется 30s")
		pollInterval = 0
	}

	opts := push.DispatcherOptions{
		PollInterval: pollInterval,
		SendRPS:      cfg.Alerts.SendRPS,
		SendBurst:    cfg.Alerts.SendBurst,
		Retry:        worker.RetryPolicy{MaxRetries: cfg.Alerts.MaxAttempts},
	}
	return push.NewDispatcher(redisClient, tgService, opts, logger)
}

// subscribeInventoryEvents вешает на шину аудит: изменения запасов
// уходят в лог, итоги пересборки отдельной строкой. Выгрузку в таблицу
// шина не дублирует, её сервисы ставят в очередь сами.
func subscribeInventoryEvents(bus *events.EventBus, logger *zerolog.Logger) {
	if bus == nil {
		return
	}

	audit := func(ev *events.Event) error {
		logger.Debug().Str("event", ev.Type).RawJSON("payload", ev.Payload).Msg("inventory event")
		return nil
	}
	for _, eventType := range []string{
		events.EventItemCreated,
		events.EventItemMerged,
		events.EventItemUpdated,
		events.EventItemDeleted,
	} {
		bus.Subscribe(eventType, audit)
	}

	bus.Subscribe(events.EventRefreshCompleted, func(ev *events.Event) error {
		var payload events.RefreshEventPayload
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			logger.Error().Err(err).Msg("event bus: decode refresh payload")
			return nil
		}
		logger.Info().
			Int64("user_id", payload.UserID).
			Int("scanned", payload.Scanned).
			Int("scheduled", payload.Scheduled).
			Int("cancelled", payload.Cancelled).
			Int("failures", payload.Failures).
			Msg("Пересборка уведомлений завершена")
		return nil
	})
}
