package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

func (b *Bot) handleMessage(ctx context.Context, update tgbotapi.Update) {
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)
	l := zerolog.Ctx(ctx)

	l.Debug().
		Int64("user_id", userID).
		Str("username", update.Message.From.UserName).
		Str("text", text).
		Msg("Handling message")

	if b.metrics != nil {
		b.metrics.MessagesProcessed.Inc()
		if strings.HasPrefix(text, "/") {
			b.metrics.CommandsProcessed.WithLabelValues(strings.Fields(text)[0]).Inc()
		}
	}

	if b.isAdmin(userID) && b.handleAdminCommand(ctx, update, text) {
		return
	}

	state := b.getUserState(ctx, userID)

	switch {
	case text == "/start" || strings.EqualFold(text, "сброс") || strings.EqualFold(text, "reset"):
		b.clearUserState(ctx, userID)
		b.handleStart(ctx, update)

	case text == "/stop":
		b.handleStop(ctx, chatID, userID)

	case text == "/help" || text == btnHelp:
		b.sendHelp(chatID, userID)

	case text == "/cancel" || text == btnCancel || text == btnBack:
		b.handleMainMenu(ctx, chatID, userID)

	case text == "/add" || text == btnAdd:
		b.startAddFlow(ctx, chatID, userID)

	case text == "/list" || text == btnList:
		b.showInventory(ctx, chatID, userID)

	case text == "/expiring" || text == btnExpiring || strings.HasPrefix(text, "/expiring "):
		b.showExpiring(ctx, update, text)

	case text == "/select" || text == btnSelect:
		b.startSelection(ctx, chatID, userID)

	case text == "/groups" || text == btnGroups:
		b.showGroups(ctx, chatID, userID)

	case text == "/newgroup":
		b.startGroupFlow(ctx, chatID, userID)

	case text == "/export" || text == btnExport:
		b.handleExport(ctx, chatID, userID)

	case text == "/refresh" || text == btnRefresh:
		b.handleRefresh(ctx, chatID, userID)

	case text == "/lookup" || strings.HasPrefix(text, "/lookup "):
		b.handleLookup(ctx, chatID, userID, strings.TrimSpace(strings.TrimPrefix(text, "/lookup")))

	case state != nil && state.CurrentStep != "":
		b.handleStateStep(ctx, update, text, state)

	default:
		b.sendMessage(chatID, "Не понимаю. Посмотрите /help или используйте кнопки меню.")
	}
}

// handleStateStep продолжает начатый диалог с того шага, на котором
// пользователь остановился.
func (b *Bot) handleStateStep(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	switch state.CurrentStep {
	case StateAddName:
		b.handleAddName(ctx, update, text, state)
	case StateAddCategory:
		b.handleAddCategory(ctx, update, text, state)
	case StateAddQuantity:
		b.handleAddQuantity(ctx, update, text, state)
	case StateAddExpiry:
		b.handleAddExpiry(ctx, update, text, state)
	case StateAddDuplicate:
		b.sendMessage(update.Message.Chat.ID, "Выберите действие кнопками под сообщением о дубликате или нажмите «Отмена».")
	case StateGroupName:
		b.handleGroupName(ctx, update, text, state)
	case StateGroupCategory:
		b.handleGroupCategory(ctx, update, text, state)
	case StateLookupQuery:
		b.clearUserState(ctx, update.Message.From.ID)
		b.runLookup(ctx, update.Message.Chat.ID, text)
	default:
		b.clearUserState(ctx, update.Message.From.ID)
		b.sendMessage(update.Message.Chat.ID, "Сессия устарела. Начните заново.")
	}
}

// handleStart регистрирует пользователя и занимает активный слот:
// фоновые напоминания приходят тому, кто представился последним.
func (b *Bot) handleStart(ctx context.Context, update tgbotapi.Update) {
	from := update.Message.From
	chatID := update.Message.Chat.ID

	user := &models.User{
		TelegramID:   from.ID,
		Username:     from.UserName,
		FirstName:    from.FirstName,
		LastName:     from.LastName,
		LanguageCode: from.LanguageCode,
		LastActivity: time.Now(),
	}
	if err := b.userService.SaveUser(ctx, user); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("telegram_id", from.ID).Msg("Failed to save user")
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	active := &models.ActiveUser{
		UserID:     user.ID,
		TelegramID: from.ID,
		ChatID:     chatID,
		StartedAt:  time.Now(),
	}
	if err := b.sessions.SetActiveUser(ctx, active); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to set active user")
	}

	greeting := fmt.Sprintf("Привет, %s! Я веду учёт продуктовых запасов и напомню, когда у чего-то будет выходить срок годности.\n\nНачните с кнопки «%s» или посмотрите /help.", from.FirstName, btnAdd)
	b.sendWithKeyboard(chatID, greeting, b.mainMenuKeyboard(from.ID))
}

func (b *Bot) sendHelp(chatID, userID int64) {
	help := `Я веду учёт продуктовых запасов и напоминаю о сроках годности.

/add — добавить позицию
/list — показать запасы
/expiring — что истекает в ближайшие дни (/expiring 7 — свой горизонт)
/select — отметить несколько позиций и удалить или сгруппировать их
/groups — группы, /newgroup — новая группа
/export — выгрузить запасы в Excel
/refresh — пересобрать напоминания
/lookup — поиск по каталогу продуктов
/stop — выключить учёт и напоминания`

	if b.isAdmin(userID) {
		help += `

Администратору:
/sync — выгрузка запасов в Google-таблицу
/refresh_all — пересборка уведомлений планировщиком
/users — статистика пользователей`
	}

	b.sendMessage(chatID, help)
}

// showExpiring показывает позиции, истекающие в пределах горизонта.
// Просроченные попадают в список всегда.
func (b *Bot) showExpiring(ctx context.Context, update tgbotapi.Update, text string) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	days := models.AlertHorizonDays
	if fields := strings.Fields(text); len(fields) == 2 {
		if parsed, err := strconv.Atoi(fields[1]); err == nil && parsed >= 0 {
			days = parsed
		}
	}

	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	items, err := b.itemService.ListExpiring(ctx, user.ID, days)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(items) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("В ближайшие %d дн. ничего не истекает 👍", days))
		return
	}

	now := time.Now()
	var message strings.Builder
	message.WriteString(fmt.Sprintf("⏰ Истекает в ближайшие %d дн.:\n\n", days))
	for _, item := range items {
		message.WriteString(formatItemLine(item, now))
		message.WriteString("\n")
	}
	b.sendMessage(chatID, message.String())
}

// handleRefresh пересобирает напоминания запросившего пользователя и
// показывает сводку.
func (b *Bot) handleRefresh(ctx context.Context, chatID, userID int64) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	summary, err := b.alertService.RefreshAllForUser(ctx, user)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Alert refresh failed")
		b.sendMessage(chatID, "Не удалось пересобрать напоминания, попробуйте позже.")
		return
	}

	b.sendMessage(chatID, formatRefreshSummary(summary))
}

func formatRefreshSummary(s *models.RefreshSummary) string {
	var message strings.Builder
	message.WriteString("🔔 Напоминания пересобраны.\n\n")
	message.WriteString(fmt.Sprintf("Проверено позиций: %d\n", s.Scanned))
	message.WriteString(fmt.Sprintf("Запланировано: %d (сегодня %d, завтра %d, скоро %d)\n", s.Scheduled, s.Today, s.Tomorrow, s.Soon))
	if s.Expired > 0 {
		message.WriteString(fmt.Sprintf("Уже просрочено: %d\n", s.Expired))
	}
	if s.Cancelled > 0 {
		message.WriteString(fmt.Sprintf("Снято устаревших: %d\n", s.Cancelled))
	}
	if s.Failures > 0 {
		message.WriteString(fmt.Sprintf("Сбоев: %d\n", s.Failures))
	}
	return message.String()
}

// handleLookup ищет по внешнему каталогу продуктов. Без аргумента
// спрашивает запрос отдельным шагом.
func (b *Bot) handleLookup(ctx context.Context, chatID, userID int64, query string) {
	if b.foodCatalog == nil {
		b.sendMessage(chatID, "Поиск по каталогу продуктов выключен.")
		return
	}
	if query == "" {
		b.setUserState(ctx, userID, StateLookupQuery, nil)
		b.sendWithKeyboard(chatID, "Что ищем в каталоге продуктов?", cancelKeyboard())
		return
	}
	b.runLookup(ctx, chatID, query)
}

func (b *Bot) runLookup(ctx context.Context, chatID int64, query string) {
	if b.foodCatalog == nil {
		b.sendMessage(chatID, "Поиск по каталогу продуктов выключен.")
		return
	}
	if b.metrics != nil {
		b.metrics.LookupRequests.Inc()
	}

	suggestions, err := b.foodCatalog.SearchFoods(ctx, sanitizeInput(query), 5)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("query", query).Msg("Food catalog search failed")
		b.sendMessage(chatID, "Каталог сейчас недоступен, попробуйте позже.")
		return
	}
	if len(suggestions) == 0 {
		b.sendMessage(chatID, "Ничего не нашлось. Попробуйте другое название.")
		return
	}

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🔎 Нашлось по запросу «%s»:\n\n", query))
	for _, s := range suggestions {
		if s.Brand != "" {
			message.WriteString(fmt.Sprintf("• %s (%s)\n", s.Name, s.Brand))
		} else {
			message.WriteString(fmt.Sprintf("• %s\n", s.Name))
		}
		if s.Description != "" {
			message.WriteString(fmt.Sprintf("  %s\n", s.Description))
		}
	}
	b.sendMessage(chatID, message.String())
}
