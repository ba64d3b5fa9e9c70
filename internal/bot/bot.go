package bot

import (
	"context"
	"os"
	"time"

	"proviant/internal/config"
	"proviant/internal/domain"
	"proviant/internal/models"
	"proviant/internal/service"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefreshRunner запускает фоновую пересборку уведомлений по запросу
// из чата. Интерфейс узкий, чтобы бот не тянул весь планировщик.
type RefreshRunner interface {
	RunNow(ctx context.Context, taskID string) (models.TaskResult, error)
}

type Bot struct {
	tgService    domain.TelegramService
	config       *config.Config
	catalog      models.Catalog
	sessions     domain.SessionManager
	itemService  domain.ItemService
	groupService domain.GroupService
	userService  domain.UserService
	alertService domain.AlertService
	foodCatalog  domain.FoodCatalog
	syncWorker   domain.SyncWorker
	runner       RefreshRunner
	selections   *service.SelectionRegistry
	metrics      *Metrics
	logger       *zerolog.Logger
}

func NewBot(
	tgService domain.TelegramService,
	config *config.Config,
	catalog models.Catalog,
	sessions domain.SessionManager,
	itemService domain.ItemService,
	groupService domain.GroupService,
	userService domain.UserService,
	alertService domain.AlertService,
	foodCatalog domain.FoodCatalog,
	syncWorker domain.SyncWorker,
	runner RefreshRunner,
	metrics *Metrics,
	logger *zerolog.Logger,
) (*Bot, error) {
	if logger == nil {
		l := zerolog.New(os.Stdout).With().Timestamp().Logger()
		logger = &l
	}

	return &Bot{
		tgService:    tgService,
		config:       config,
		catalog:      catalog,
		sessions:     sessions,
		itemService:  itemService,
		groupService: groupService,
		userService:  userService,
		alertService: alertService,
		foodCatalog:  foodCatalog,
		syncWorker:   syncWorker,
		runner:       runner,
		selections:   service.NewSelectionRegistry(),
		metrics:      metrics,
		logger:       logger,
	}, nil
}

// Шаги диалогов. Шаг хранится в сессии пользователя вместе с
// промежуточными данными, поэтому диалог переживает рестарт бота.
const (
	StateAddName       = "add_name"
	StateAddCategory   = "add_category"
	StateAddQuantity   = "add_quantity"
	StateAddExpiry     = "add_expiry"
	StateAddDuplicate  = "add_duplicate"
	StateGroupName     = "group_name"
	StateGroupCategory = "group_category"
	StateLookupQuery   = "lookup_query"
)

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.tgService.GetUpdatesChan(u)

	b.logger.Info().Str("username", b.tgService.GetSelf().UserName).Msg("Authorized on account")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Bot stopping...")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.UpdateProcessingTime.Observe(time.Since(start).Seconds())
		}
	}()

	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.New().String()
	l := b.logger.With().Str("request_id", requestID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		var userID int64
		if update.Message != nil {
			userID = update.Message.From.ID
		} else if update.CallbackQuery != nil {
			userID = update.CallbackQuery.From.ID
		}

		if userID == 0 {
			return
		}

		if b.isBlacklisted(userID) {
			return
		}

		// Track activity
		b.trackActivity(userID)

		if !b.isAdmin(userID) {
			allowed, err := b.sessions.CheckRateLimit(updateCtx, userID, b.config.Bot.RateLimitMessages, time.Duration(b.config.Bot.RateLimitWindow)*time.Second)
			if err != nil {
				b.logger.Error().Err(err).Int64("user_id", userID).Msg("Rate limit check failed")
			} else if !allowed {
				b.logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")
				if update.Message != nil {
					b.sendMessage(update.Message.Chat.ID, "⚠️ Вы отправляете сообщения слишком часто. Пожалуйста, подождите немного.")
				}
				return
			}
		}

		if update.CallbackQuery != nil {
			b.handleCallbackQuery(updateCtx, update)
			return
		}

		if update.Message == nil {
			return
		}

		b.handleMessage(updateCtx, update)
	})
}
