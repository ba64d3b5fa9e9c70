package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"proviant/internal/expiry"
	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const inventoryPagePrefix = "inv_page:"

type PaginationParams struct {
	Ctx        context.Context
	ChatID     int64
	MessageID  int // 0, если сообщение новое
	Page       int
	Title      string
	PagePrefix string
}

// renderPaginatedList универсальная функция для отрисовки
// пагинированного списка.
func (b *Bot) renderPaginatedList(params PaginationParams, totalCount int, renderer func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton)) {
	itemsPerPage := b.config.Bot.PaginationSize
	if itemsPerPage <= 0 {
		itemsPerPage = models.DefaultPaginationSize
	}

	startIdx := params.Page * itemsPerPage
	endIdx := startIdx + itemsPerPage
	if endIdx > totalCount {
		endIdx = totalCount
	}

	totalPages := (totalCount + itemsPerPage - 1) / itemsPerPage
	if params.Page >= totalPages && totalPages > 0 {
		params.Page = totalPages - 1
		startIdx = params.Page * itemsPerPage
		endIdx = totalCount
	}

	content, keyboard := renderer(startIdx, endIdx)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("%s\n\n", params.Title))
	if totalPages > 1 {
		message.WriteString(fmt.Sprintf("Страница %d из %d\n\n", params.Page+1, totalPages))
	}
	message.WriteString(content)

	// Добавляем навигационные кнопки
	var navButtons []tgbotapi.InlineKeyboardButton
	if params.Page > 0 {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("⬅️ Назад", fmt.Sprintf("%s%d", params.PagePrefix, params.Page-1)))
	}
	if endIdx < totalCount {
		navButtons = append(navButtons, tgbotapi.NewInlineKeyboardButtonData("Вперед ➡️", fmt.Sprintf("%s%d", params.PagePrefix, params.Page+1)))
	}
	if len(navButtons) > 0 {
		keyboard = append(keyboard, navButtons)
	}

	if params.MessageID != 0 {
		if len(keyboard) > 0 {
			markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
			editMsg := tgbotapi.NewEditMessageTextAndMarkup(params.ChatID, params.MessageID, message.String(), markup)
			if _, err := b.tgService.Send(editMsg); err != nil {
				b.logger.Error().Err(err).Int64("chat_id", params.ChatID).Msg("Failed to edit paginated list")
			}
		} else {
			b.editMessage(params.ChatID, params.MessageID, message.String(), nil)
		}
		return
	}

	msg := tgbotapi.NewMessage(params.ChatID, message.String())
	if len(keyboard) > 0 {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	}
	if _, err := b.tgService.Send(msg); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", params.ChatID).Msg("Failed to send paginated list")
	}
}

// showInventory первая страница списка запасов.
func (b *Bot) showInventory(ctx context.Context, chatID, userID int64) {
	b.renderInventory(ctx, chatID, userID, 0, 0)
}

// editInventoryPage листание списка по кнопкам.
func (b *Bot) editInventoryPage(ctx context.Context, callback *tgbotapi.CallbackQuery, page int) {
	b.renderInventory(ctx, callback.Message.Chat.ID, callback.From.ID, callback.Message.MessageID, page)
}

// renderInventory перечитывает запасы и рисует страницу: список между
// нажатиями мог измениться, держать его в памяти смысла нет.
func (b *Bot) renderInventory(ctx context.Context, chatID, userID int64, messageID, page int) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	items, err := b.itemService.List(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list items")
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(items) == 0 {
		b.sendMessage(chatID, "Запасы пусты. Добавьте первую позицию: /add")
		return
	}

	now := time.Now()
	sortByUrgency(items, now)

	params := PaginationParams{
		Ctx:        ctx,
		ChatID:     chatID,
		MessageID:  messageID,
		Page:       page,
		Title:      fmt.Sprintf("📦 Запасы: %d поз.", len(items)),
		PagePrefix: inventoryPagePrefix,
	}

	b.renderPaginatedList(params, len(items), func(startIdx, endIdx int) (string, [][]tgbotapi.InlineKeyboardButton) {
		var content strings.Builder
		for i, item := range items[startIdx:endIdx] {
			content.WriteString(fmt.Sprintf("%d. %s\n", startIdx+i+1, formatItemLine(item, now)))
		}
		return content.String(), nil
	})
}

// sortByUrgency ближайший срок первым, позиции без срока в конце, при
// равенстве по имени.
func sortByUrgency(items []models.Item, ref time.Time) {
	sort.SliceStable(items, func(i, j int) bool {
		di, iOK := expiry.ItemDaysUntil(&items[i], ref)
		dj, jOK := expiry.ItemDaysUntil(&items[j], ref)
		if iOK != jOK {
			return iOK
		}
		if iOK && jOK && di != dj {
			return di < dj
		}
		return items[i].Name < items[j].Name
	})
}
