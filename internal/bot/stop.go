package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Stop stops receiving Telegram updates (best-effort).
func (b *Bot) Stop() {
	if b == nil || b.tgService == nil {
		return
	}
	b.tgService.StopReceivingUpdates()
}

// handleStop выключает учёт для пользователя: обрывает начатый диалог,
// отменяет запланированные уведомления и освобождает активный слот,
// если он был занят именно этим пользователем.
func (b *Bot) handleStop(ctx context.Context, chatID, telegramID int64) {
	b.clearUserState(ctx, telegramID)
	b.selections.Clear(telegramID)

	user, err := b.userService.GetUserByTelegramID(ctx, telegramID)
	if err != nil {
		b.sendMessage(chatID, "Учёт выключен. Вернуться: /start")
		return
	}

	cancelled, err := b.alertService.CancelAllForUser(ctx, user.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("Failed to cancel alerts on stop")
	}

	active, err := b.sessions.ActiveUser(ctx)
	if err == nil && active != nil && active.UserID == user.ID {
		if err := b.sessions.ClearActiveUser(ctx); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to clear active user slot")
		}
	}

	text := "Учёт выключен, напоминания приходить не будут. Вернуться: /start"
	if cancelled > 0 {
		text = fmt.Sprintf("Учёт выключен, отменено напоминаний: %d. Вернуться: /start", cancelled)
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.tgService.Send(msg); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("chat_id", chatID).Msg("Error sending message")
	}
}
