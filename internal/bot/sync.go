package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"proviant/internal/models"
	"proviant/internal/scheduler"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// handleAdminCommand разбирает команды, доступные только администраторам.
// Возвращает true, если команда распознана и обработана.
func (b *Bot) handleAdminCommand(ctx context.Context, update tgbotapi.Update, text string) bool {
	chatID := update.Message.Chat.ID

	switch text {
	case "/sync", btnSync:
		b.enqueueSheetRebuild(ctx, chatID)
	case "/refresh_all":
		b.runExpiryRefresh(ctx, chatID)
	case "/users":
		b.showUserStats(ctx, chatID)
	default:
		return false
	}
	return true
}

// enqueueSheetRebuild ставит в очередь полную перезапись внешней таблицы.
// Сама выгрузка выполняется воркером в фоне, ответ приходит сразу.
func (b *Bot) enqueueSheetRebuild(ctx context.Context, chatID int64) {
	if b.syncWorker == nil {
		b.sendMessage(chatID, "Выгрузка в таблицу не настроена.")
		return
	}

	if err := b.syncWorker.EnqueueReplaceAll(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to enqueue sheet rebuild")
		b.sendMessage(chatID, "Не удалось поставить выгрузку в очередь.")
		return
	}

	b.sendMessage(chatID, "📤 Выгрузка в таблицу поставлена в очередь.")
}

// runExpiryRefresh вручную запускает пересборку уведомлений, не дожидаясь
// планового запуска.
func (b *Bot) runExpiryRefresh(ctx context.Context, chatID int64) {
	if b.runner == nil {
		b.sendMessage(chatID, "Планировщик не запущен.")
		return
	}

	result, err := b.runner.RunNow(ctx, scheduler.TaskExpiryRefresh)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Manual expiry refresh failed")
		b.sendMessage(chatID, "Пересборка завершилась с ошибками, смотрите логи.")
		return
	}

	switch result {
	case models.TaskResultNewData:
		b.sendMessage(chatID, "🔔 Уведомления пересобраны, есть изменения.")
	default:
		b.sendMessage(chatID, "🔔 Уведомления пересобраны, изменений нет.")
	}
}

// showUserStats показывает количество пользователей и последних активных.
func (b *Bot) showUserStats(ctx context.Context, chatID int64) {
	users, err := b.userService.GetAllUsers(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to get users for stats")
		b.sendMessage(chatID, "Не удалось получить список пользователей.")
		return
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].LastActivity.After(users[j].LastActivity)
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👥 Пользователей: %d\n", len(users)))

	for i := range users {
		if i >= 5 {
			break
		}
		u := users[i]
		name := strings.TrimSpace(u.FirstName + " " + u.LastName)
		if name == "" {
			name = u.Username
		}
		sb.WriteString(fmt.Sprintf("• %s — %s\n", name, u.LastActivity.Format("02.01.2006 15:04")))
	}

	b.sendMessage(chatID, sb.String())
}
