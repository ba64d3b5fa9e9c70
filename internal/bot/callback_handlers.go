package bot

import (
	"context"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/rs/zerolog"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, update tgbotapi.Update) {
	callback := update.CallbackQuery
	if callback == nil || callback.Message == nil {
		return
	}

	l := zerolog.Ctx(ctx)
	l.Debug().
		Int64("user_id", callback.From.ID).
		Str("data", callback.Data).
		Msg("Handling callback query")

	if b.metrics != nil {
		b.metrics.CallbacksProcessed.Inc()
	}

	// Отвечаем на callback сразу, чтобы убрать "часики" на кнопке
	b.answerCallback(callback.ID, "")

	data := callback.Data

	switch {
	case strings.HasPrefix(data, "dup:"):
		b.handleDuplicateDecision(ctx, callback, strings.TrimPrefix(data, "dup:"))

	case strings.HasPrefix(data, "food:"):
		b.handleFoodSuggestion(ctx, callback, strings.TrimPrefix(data, "food:"))

	case strings.HasPrefix(data, "sg:"):
		b.handleGroupSuggestion(ctx, callback, strings.TrimPrefix(data, "sg:"))

	case strings.HasPrefix(data, "sel:"):
		b.handleSelectionAction(ctx, callback, strings.TrimPrefix(data, "sel:"))

	case strings.HasPrefix(data, "selg:"):
		b.handleSelectionGroup(ctx, callback, strings.TrimPrefix(data, "selg:"))

	case strings.HasPrefix(data, "grp:"):
		b.handleGroupAction(ctx, callback, strings.TrimPrefix(data, "grp:"))

	case strings.HasPrefix(data, inventoryPagePrefix):
		page, err := strconv.Atoi(strings.TrimPrefix(data, inventoryPagePrefix))
		if err != nil {
			b.logger.Error().Err(err).Str("data", data).Msg("Error parsing page")
			return
		}
		b.editInventoryPage(ctx, callback, page)

	case data == "noop":
		// Кнопка с номером страницы, нажатие ничего не делает.

	default:
		b.logger.Warn().Str("callback_data", data).Msg("Unknown callback data")
	}
}
