package domain

import (
	"context"
	"time"

	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type Repository interface {
	CreateItem(ctx context.Context, item *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, userID int64) ([]models.Item, error)
	ListInventoryItems(ctx context.Context, inventoryID int64) ([]models.Item, error)
	UpdateItem(ctx context.Context, item *models.Item) error
	UpdateItemWithVersion(ctx context.Context, item *models.Item, fromVersion int64) error
	DeleteItem(ctx context.Context, id int64) error
	CreateInventory(ctx context.Context, inv *models.Inventory) error
	GetInventory(ctx context.Context, id int64) (*models.Inventory, error)
	ListInventories(ctx context.Context, userID int64) ([]models.Inventory, error)
	EnsureDefaultInventory(ctx context.Context, userID int64) (*models.Inventory, error)
	CountItems(ctx context.Context, inventoryID int64) (int, error)
	CreateGroup(ctx context.Context, group *models.Group) error
	GetGroup(ctx context.Context, id int64) (*models.Group, error)
	ListGroups(ctx context.Context, userID int64) ([]models.Group, error)
	ListGroupsByCategory(ctx context.Context, userID int64, category string) ([]models.Group, error)
	DeleteGroup(ctx context.Context, id int64) error
	AddItemToGroup(ctx context.Context, itemID, groupID int64) error
	RemoveItemFromGroup(ctx context.Context, itemID, groupID int64) error
	ListGroupItems(ctx context.Context, groupID int64) ([]models.Item, error)
	CountGroupItems(ctx context.Context, groupID int64) (int, error)
	CreateOrUpdateUser(ctx context.Context, user *models.User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	UpdateUserActivity(ctx context.Context, telegramID int64) error
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

// SessionRepository хранит состояние диалога и слот активного пользователя.
type SessionRepository interface {
	GetState(ctx context.Context, userID int64) (*models.UserState, error)
	SetState(ctx context.Context, state *models.UserState) error
	ClearState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
	SetActiveUser(ctx context.Context, active *models.ActiveUser) error
	GetActiveUser(ctx context.Context) (*models.ActiveUser, error)
	ClearActiveUser(ctx context.Context) error
}

type SessionManager interface {
	GetUserState(ctx context.Context, userID int64) (*models.UserState, error)
	SetUserState(ctx context.Context, userID int64, step string, data map[string]interface{}) error
	UpdateUserStateData(ctx context.Context, userID int64, key string, value interface{}) error
	ClearUserState(ctx context.Context, userID int64) error
	CheckRateLimit(ctx context.Context, userID int64, limit int, window time.Duration) (bool, error)
	SetActiveUser(ctx context.Context, active *models.ActiveUser) error
	ActiveUser(ctx context.Context) (*models.ActiveUser, error)
	ClearActiveUser(ctx context.Context) error
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// AlertScheduler is the push subsystem: durable scheduling of alerts
// with replacement per user/item/kind and cancellation by id or owner.
type AlertScheduler interface {
	Schedule(ctx context.Context, alert *models.Alert) (string, error)
	Cancel(ctx context.Context, alertID string) error
	CancelAllForUser(ctx context.Context, userID int64) (int, error)
	ListScheduled(ctx context.Context, userID int64) ([]models.Alert, error)
}

type SheetsWriter interface {
	UpsertItemRow(ctx context.Context, item *models.Item) error
	DeleteItemRow(ctx context.Context, itemID int64) error
	ReplaceInventorySheet(ctx context.Context, items []models.Item) error
}

type SyncWorker interface {
	EnqueueTask(ctx context.Context, taskType string, itemID int64, item *models.Item) error
	EnqueueReplaceAll(ctx context.Context) error
}

// FoodCatalog внешний справочник продуктов для подсказок имён.
type FoodCatalog interface {
	SearchFoods(ctx context.Context, query string, limit int) ([]models.FoodSuggestion, error)
}

type TelegramService interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	SendMessage(chatID int64, text string) (tgbotapi.Message, error)
	SendMarkdown(chatID int64, text string) (tgbotapi.Message, error)
	SendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error)
	SendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	EditMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	GetSelf() tgbotapi.User
	StopReceivingUpdates()
}

// ItemService владеет жизненным циклом позиций: двухфазное создание с
// проверкой дубликата, правки, удаление и массовые операции.
//
// Create с decision возвращает либо готовый результат, либо приостановку
// OutcomeDuplicate с отчётом. ResolveDuplicate завершает приостановленное
// создание: слияние привязано к версии позиции из отчёта, поэтому
// повторная доставка того же решения не применится дважды.
type ItemService interface {
	FindDuplicate(ctx context.Context, userID int64, input models.ItemInput) (*models.DuplicateReport, error)
	Create(ctx context.Context, user *models.User, input models.ItemInput, decision models.CreateDecision) (*models.CreateResult, error)
	ResolveDuplicate(ctx context.Context, user *models.User, report *models.DuplicateReport, decision models.CreateDecision) (*models.CreateResult, error)
	Get(ctx context.Context, id int64) (*models.Item, error)
	List(ctx context.Context, userID int64) ([]models.Item, error)
	ListExpiring(ctx context.Context, userID int64, horizon int) ([]models.Item, error)
	Update(ctx context.Context, user *models.User, item *models.Item) error
	Delete(ctx context.Context, userID, id int64) error
	BulkAddToGroup(ctx context.Context, userID int64, itemIDs []int64, groupID int64) (*models.BulkGroupResult, error)
	BulkDelete(ctx context.Context, userID int64, itemIDs []int64) (int, error)
}

type GroupService interface {
	Create(ctx context.Context, group *models.Group) error
	Get(ctx context.Context, id int64) (*models.Group, error)
	List(ctx context.Context, userID int64) ([]models.Group, error)
	Delete(ctx context.Context, userID, id int64) error
	Items(ctx context.Context, groupID int64) ([]models.Item, error)
	AddItem(ctx context.Context, itemID, groupID int64) error
	RemoveItem(ctx context.Context, itemID, groupID int64) error
	Suggest(ctx context.Context, userID int64, category string) ([]models.Group, error)
}

type UserService interface {
	SaveUser(ctx context.Context, user *models.User) error
	UpdateUserActivity(ctx context.Context, telegramID int64) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetAllUsers(ctx context.Context) ([]models.User, error)
}

// AlertService планирует и пересобирает уведомления о сроках годности.
type AlertService interface {
	ScheduleForItem(ctx context.Context, user *models.User, item *models.Item, ref time.Time) (string, error)
	CancelForItem(ctx context.Context, userID, itemID int64) error
	RefreshAllForUser(ctx context.Context, user *models.User) (*models.RefreshSummary, error)
	CancelAllForUser(ctx context.Context, userID int64) (int, error)
}
