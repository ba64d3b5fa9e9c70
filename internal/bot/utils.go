package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"proviant/internal/database"
	"proviant/internal/expiry"
	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Кнопки главного меню и диалогов.
const (
	btnAdd      = "➕ Добавить"
	btnList     = "📦 Запасы"
	btnExpiring = "⏰ Сроки"
	btnGroups   = "🗂 Группы"
	btnSelect   = "☑️ Выбрать"
	btnExport   = "💾 Экспорт"
	btnRefresh  = "🔔 Уведомления"
	btnHelp     = "ℹ️ Помощь"
	btnCancel   = "❌ Отмена"
	btnBack     = "⬅️ Назад"
	btnNoExpiry = "🚫 Без срока"
	btnSync     = "📤 Выгрузка в таблицу"
)

// Вспомогательные методы для работы с состояниями пользователей.
// Состояние живёт в сессионном хранилище, а не в памяти бота, поэтому
// начатый диалог переживает рестарт процесса.

func (b *Bot) setUserState(ctx context.Context, userID int64, step string, tempData map[string]interface{}) {
	if tempData == nil {
		tempData = make(map[string]interface{})
	}
	if err := b.sessions.SetUserState(ctx, userID, step, tempData); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Str("step", step).Msg("Failed to save user state")
	}
}

func (b *Bot) getUserState(ctx context.Context, userID int64) *models.UserState {
	state, err := b.sessions.GetUserState(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to load user state")
		return nil
	}
	return state
}

func (b *Bot) clearUserState(ctx context.Context, userID int64) {
	if err := b.sessions.ClearUserState(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to clear user state")
	}
}

func (b *Bot) updateStateData(ctx context.Context, userID int64, key string, value interface{}) {
	if err := b.sessions.UpdateUserStateData(ctx, userID, key, value); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Str("key", key).Msg("Failed to update user state data")
	}
}

func (b *Bot) isBlacklisted(userID int64) bool {
	for _, blacklistedID := range b.config.Bot.Blacklist {
		if userID == blacklistedID {
			return true
		}
	}
	return false
}

func (b *Bot) isAdmin(userID int64) bool {
	for _, adminID := range b.config.Bot.Admins {
		if userID == adminID {
			return true
		}
	}
	return false
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.tgService.SendMessage(chatID, text); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) {
	if _, err := b.tgService.SendWithKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message with keyboard")
	}
}

func (b *Bot) sendWithInlineKeyboard(chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tgService.SendWithInlineKeyboard(chatID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message with inline keyboard")
	}
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if _, err := b.tgService.EditMessage(chatID, messageID, text, keyboard); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Int("message_id", messageID).Msg("Failed to edit message")
	}
}

func (b *Bot) answerCallback(callbackID, text string) {
	if err := b.tgService.AnswerCallback(callbackID, text); err != nil {
		b.logger.Error().Err(err).Msg("Failed to answer callback")
	}
}

// requireUser находит пользователя по telegram id. Без /start записи
// нет, и диалог не продолжается.
func (b *Bot) requireUser(ctx context.Context, chatID, telegramID int64) (*models.User, bool) {
	user, err := b.userService.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			b.sendMessage(chatID, "Сначала представьтесь: отправьте /start.")
		} else {
			zerolog.Ctx(ctx).Error().Err(err).Int64("telegram_id", telegramID).Msg("Failed to load user")
			b.sendMessage(chatID, b.getErrorMessage(err))
		}
		return nil, false
	}
	return user, true
}

// handleMainMenu главное меню с постоянной клавиатурой.
func (b *Bot) handleMainMenu(ctx context.Context, chatID, userID int64) {
	b.clearUserState(ctx, userID)
	b.sendWithKeyboard(chatID, "Что делаем с запасами?", b.mainMenuKeyboard(userID))
}

func (b *Bot) mainMenuKeyboard(userID int64) tgbotapi.ReplyKeyboardMarkup {
	rows := [][]tgbotapi.KeyboardButton{
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnAdd),
			tgbotapi.NewKeyboardButton(btnList),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnExpiring),
			tgbotapi.NewKeyboardButton(btnGroups),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSelect),
			tgbotapi.NewKeyboardButton(btnExport),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnRefresh),
			tgbotapi.NewKeyboardButton(btnHelp),
		),
	}

	// Кнопки только для администраторов
	if b.isAdmin(userID) {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSync),
		))
	}

	return tgbotapi.NewReplyKeyboard(rows...)
}

// categoryKeyboard строит клавиатуру из категорий каталога, по две в
// ряд, с кнопкой отмены внизу.
func (b *Bot) categoryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	names := b.catalog.CategoryNames()

	var rows [][]tgbotapi.KeyboardButton
	for i := 0; i < len(names); i += 2 {
		if i+1 < len(names) {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(names[i]),
				tgbotapi.NewKeyboardButton(names[i+1]),
			))
		} else {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(
				tgbotapi.NewKeyboardButton(names[i]),
			))
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnCancel),
	))

	return tgbotapi.NewReplyKeyboard(rows...)
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

func expiryKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnNoExpiry),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
}

// sanitizeInput убирает переводы строк и ограничивает длину: названия
// попадают в экспорт и в таблицу, многострочный текст там ломает вид.
func sanitizeInput(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.TrimSpace(text)

	runes := []rune(text)
	if len(runes) > 200 {
		text = string(runes[:200])
	}
	return text
}

// parseQuantity разбирает ввод вида "2 л" или "0,5 кг". Запятая в
// числе допускается. Валидация единицы против каталога остаётся за
// сервисом.
func parseQuantity(text string) (float64, string, error) {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return 0, "", fmt.Errorf("ожидается количество и единица через пробел")
	}

	qty, err := strconv.ParseFloat(strings.Replace(fields[0], ",", ".", 1), 64)
	if err != nil {
		return 0, "", fmt.Errorf("не удалось разобрать число %q", fields[0])
	}

	unit := strings.Join(fields[1:], " ")
	return qty, unit, nil
}

// parseUserDate принимает ДД.ММ.ГГГГ и ГГГГ-ММ-ДД.
func parseUserDate(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if t, err := time.Parse("02.01.2006", text); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", text)
}

func formatQuantity(quantity float64, unit string) string {
	return strconv.FormatFloat(quantity, 'f', -1, 64) + " " + unit
}

// formatItemLine одна строка списка: светофор срочности, название,
// количество и срок.
func formatItemLine(item models.Item, ref time.Time) string {
	base := fmt.Sprintf("%s — %s", item.Name, formatQuantity(item.Quantity, item.Unit))

	days, ok := expiry.ItemDaysUntil(&item, ref)
	if !ok {
		return "⚪️ " + base + ", без срока"
	}

	switch expiry.Classify(days, models.AlertHorizonDays) {
	case expiry.UrgencyExpired:
		return fmt.Sprintf("🔴 %s, просрочено с %s", base, item.ExpiresAt.Format("02.01.2006"))
	case expiry.UrgencyToday:
		return fmt.Sprintf("🟠 %s, истекает сегодня", base)
	case expiry.UrgencyTomorrow:
		return fmt.Sprintf("🟡 %s, истекает завтра", base)
	case expiry.UrgencySoon:
		return fmt.Sprintf("🟡 %s, осталось %d дн.", base, days)
	default:
		return fmt.Sprintf("🟢 %s, годен до %s", base, item.ExpiresAt.Format("02.01.2006"))
	}
}

func formatDuplicateReport(report *models.DuplicateReport, ref time.Time) string {
	var message strings.Builder
	message.WriteString("⚠️ Такая позиция уже есть в запасах:\n\n")
	message.WriteString(formatItemLine(report.Existing, ref))
	message.WriteString("\n\n")

	if report.CanMerge {
		message.WriteString("Объединить с существующей записью или создать отдельную?")
	} else {
		message.WriteString(fmt.Sprintf("Объединить не получится: %s. Создать отдельную запись?", report.Reason))
	}
	return message.String()
}

// duplicateKeyboard кнопки решения по дубликату. Кнопка слияния
// появляется только когда слияние возможно.
func duplicateKeyboard(canMerge bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	if canMerge {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔗 Объединить", "dup:merge"),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Создать отдельно", "dup:new"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "dup:cancel"),
		),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
