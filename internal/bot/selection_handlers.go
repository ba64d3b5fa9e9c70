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

// Режим множественного выбора: каждая позиция превращается в
// кнопку-чекбокс, действие применяется ко всем отмеченным сразу.
// Набор отметок эфемерный и живёт в памяти процесса.

func (b *Bot) startSelection(ctx context.Context, chatID, userID int64) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	items, err := b.itemService.List(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(items) == 0 {
		b.sendMessage(chatID, "Запасы пусты, выбирать нечего.")
		return
	}

	b.selections.Clear(userID)

	sortByUrgency(items, time.Now())
	b.sendWithInlineKeyboard(chatID, selectionTitle(0), b.selectionKeyboard(items, userID))
}

func selectionTitle(count int) string {
	return fmt.Sprintf("☑️ Режим выбора, отмечено: %d.\nОтметьте позиции и выберите действие.", count)
}

func (b *Bot) selectionKeyboard(items []models.Item, userID int64) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		mark := "☐"
		if b.selections.Selected(userID, item.ID) {
			mark = "☑️"
		}
		label := fmt.Sprintf("%s %s — %s", mark, item.Name, formatQuantity(item.Quantity, item.Unit))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("sel:t:%d", item.ID)),
		))
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("🗂 В группу", "sel:group"),
		tgbotapi.NewInlineKeyboardButtonData("🗑 Удалить", "sel:delete"),
	))
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ Отмена", "sel:cancel"),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (b *Bot) handleSelectionAction(ctx context.Context, callback *tgbotapi.CallbackQuery, action string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	switch {
	case strings.HasPrefix(action, "t:"):
		itemID, err := strconv.ParseInt(strings.TrimPrefix(action, "t:"), 10, 64)
		if err != nil {
			return
		}
		_, count := b.selections.Toggle(userID, itemID)
		b.refreshSelectionMessage(ctx, chatID, messageID, userID, count)

	case action == "group":
		if b.selections.Count(userID) == 0 {
			b.sendMessage(chatID, "Сначала отметьте позиции.")
			return
		}
		b.promptSelectionGroup(ctx, chatID, userID)

	case action == "delete":
		b.deleteSelected(ctx, chatID, messageID, userID)

	case action == "cancel":
		b.selections.Clear(userID)
		b.editMessage(chatID, messageID, "Режим выбора закрыт.", nil)
	}
}

// refreshSelectionMessage перерисовывает чекбоксы. Снятая последняя
// отметка закрывает режим выбора.
func (b *Bot) refreshSelectionMessage(ctx context.Context, chatID int64, messageID int, userID int64, count int) {
	if count == 0 {
		b.editMessage(chatID, messageID, "Все отметки сняты, режим выбора закрыт.", nil)
		return
	}

	user, err := b.userService.GetUserByTelegramID(ctx, userID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("telegram_id", userID).Msg("Failed to load user for selection refresh")
		return
	}

	items, err := b.itemService.List(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list items for selection refresh")
		return
	}

	sortByUrgency(items, time.Now())
	keyboard := b.selectionKeyboard(items, userID)
	b.editMessage(chatID, messageID, selectionTitle(count), &keyboard)
}

func (b *Bot) deleteSelected(ctx context.Context, chatID int64, messageID int, userID int64) {
	ids := b.selections.IDs(userID)
	if len(ids) == 0 {
		b.sendMessage(chatID, "Сначала отметьте позиции.")
		return
	}

	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	deleted, err := b.itemService.BulkDelete(ctx, user.ID, ids)
	b.selections.Clear(userID)
	if err != nil {
		// Часть позиций могла удалиться, счётчик показываем вместе с ошибкой.
		b.editMessage(chatID, messageID, fmt.Sprintf("Удалено: %d, но не всё получилось. %s", deleted, b.getErrorMessage(err)), nil)
		return
	}

	b.editMessage(chatID, messageID, fmt.Sprintf("🗑 Удалено позиций: %d.", deleted), nil)
}

// promptSelectionGroup показывает группы, куда положить отмеченное.
func (b *Bot) promptSelectionGroup(ctx context.Context, chatID, userID int64) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	groups, err := b.groupService.List(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(groups) == 0 {
		b.sendMessage(chatID, "Групп пока нет. Создайте первую: /newgroup")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(g.Name, fmt.Sprintf("selg:%d", g.ID)),
		))
	}

	title := fmt.Sprintf("Куда добавить отмеченные (%d)?", b.selections.Count(userID))
	b.sendWithInlineKeyboard(chatID, title, tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleSelectionGroup(ctx context.Context, callback *tgbotapi.CallbackQuery, idStr string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	groupID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}

	ids := b.selections.IDs(userID)
	if len(ids) == 0 {
		b.editMessage(chatID, messageID, "Отмеченных позиций уже нет.", nil)
		return
	}

	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	result, err := b.itemService.BulkAddToGroup(ctx, user.ID, ids, groupID)
	if err != nil {
		b.editMessage(chatID, messageID, b.getErrorMessage(err), nil)
		return
	}

	b.selections.Clear(userID)

	var text string
	switch result.Outcome {
	case models.BulkAllAdded:
		text = fmt.Sprintf("🗂 Добавлено в группу: %d.", result.Added)
	case models.BulkPartiallyAdded:
		text = fmt.Sprintf("🗂 Добавлено: %d, уже были в группе: %d.", result.Added, result.AlreadyPresent)
	case models.BulkAllPresent:
		text = "Все отмеченные уже в этой группе."
	}
	b.editMessage(chatID, messageID, text, nil)
}
