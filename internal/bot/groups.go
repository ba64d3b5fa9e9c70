package bot

import (
	"context"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"time"

	"proviant/internal/database"
	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Палитра для новых групп. Цвет попадает в экспорт и во внешнюю
// таблицу, в чате он не виден.
var groupPalette = []string{"#4C78A8", "#F58518", "#54A24B", "#E45756", "#72B7B2", "#EECA3B"}

func groupColor(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return groupPalette[int(h.Sum32())%len(groupPalette)]
}

func (b *Bot) showGroups(ctx context.Context, chatID, userID int64) {
	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	groups, err := b.groupService.List(ctx, user.ID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	newGroupRow := tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("➕ Новая группа", "grp:new"),
	)

	if len(groups) == 0 {
		b.sendWithInlineKeyboard(chatID, "Групп пока нет. Группы собирают родственные позиции: «Молочка», «Заморозка».",
			tgbotapi.NewInlineKeyboardMarkup(newGroupRow))
		return
	}

	var message strings.Builder
	message.WriteString("🗂 Ваши группы:\n\n")

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range groups {
		items, err := b.groupService.Items(ctx, g.ID)
		if err != nil {
			b.sendMessage(chatID, b.getErrorMessage(err))
			return
		}
		message.WriteString(fmt.Sprintf("• %s (%s) — %d поз.\n", g.Name, g.Category, len(items)))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📦 "+g.Name, fmt.Sprintf("grp:items:%d", g.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", fmt.Sprintf("grp:del:%d", g.ID)),
		))
	}
	rows = append(rows, newGroupRow)

	b.sendWithInlineKeyboard(chatID, message.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleGroupAction(ctx context.Context, callback *tgbotapi.CallbackQuery, action string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID

	switch {
	case action == "new":
		b.startGroupFlow(ctx, chatID, userID)

	case strings.HasPrefix(action, "items:"):
		groupID, err := strconv.ParseInt(strings.TrimPrefix(action, "items:"), 10, 64)
		if err != nil {
			return
		}
		b.showGroupItems(ctx, chatID, groupID)

	case strings.HasPrefix(action, "del:"):
		groupID, err := strconv.ParseInt(strings.TrimPrefix(action, "del:"), 10, 64)
		if err != nil {
			return
		}
		user, ok := b.requireUser(ctx, chatID, userID)
		if !ok {
			return
		}
		if err := b.groupService.Delete(ctx, user.ID, groupID); err != nil {
			b.sendMessage(chatID, b.getErrorMessage(err))
			return
		}
		b.sendMessage(chatID, "🗑 Группа удалена, позиции остались в запасах.")

	case strings.HasPrefix(action, "rm:"):
		parts := strings.Split(strings.TrimPrefix(action, "rm:"), ":")
		if len(parts) != 2 {
			return
		}
		groupID, err1 := strconv.ParseInt(parts[0], 10, 64)
		itemID, err2 := strconv.ParseInt(parts[1], 10, 64)
		if err1 != nil || err2 != nil {
			return
		}
		user, ok := b.requireUser(ctx, chatID, userID)
		if !ok {
			return
		}
		group, err := b.groupService.Get(ctx, groupID)
		if err != nil || group.UserID != user.ID {
			b.sendMessage(chatID, b.getErrorMessage(database.ErrGroupNotFound))
			return
		}
		if err := b.groupService.RemoveItem(ctx, itemID, groupID); err != nil {
			b.sendMessage(chatID, b.getErrorMessage(err))
			return
		}
		b.sendMessage(chatID, "➖ Убрано из группы, позиция осталась в запасах.")
	}
}

func (b *Bot) showGroupItems(ctx context.Context, chatID, groupID int64) {
	group, err := b.groupService.Get(ctx, groupID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}

	items, err := b.groupService.Items(ctx, groupID)
	if err != nil {
		b.sendMessage(chatID, b.getErrorMessage(err))
		return
	}
	if len(items) == 0 {
		b.sendMessage(chatID, fmt.Sprintf("В группе «%s» пусто.", group.Name))
		return
	}

	now := time.Now()
	sortByUrgency(items, now)

	var message strings.Builder
	message.WriteString(fmt.Sprintf("🗂 %s:\n\n", group.Name))
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, item := range items {
		message.WriteString(formatItemLine(item, now))
		message.WriteString("\n")
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➖ "+item.Name, fmt.Sprintf("grp:rm:%d:%d", group.ID, item.ID)),
		))
	}
	b.sendWithInlineKeyboard(chatID, message.String(), tgbotapi.NewInlineKeyboardMarkup(rows...))
}

// Диалог создания группы: название, затем категория.

func (b *Bot) startGroupFlow(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireUser(ctx, chatID, userID); !ok {
		return
	}

	b.setUserState(ctx, userID, StateGroupName, nil)
	b.sendWithKeyboard(chatID, "Как назвать группу?", cancelKeyboard())
}

func (b *Bot) handleGroupName(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	name := sanitizeInput(text)
	if name == "" {
		b.sendMessage(chatID, "Название группы не может быть пустым. Напишите ещё раз.")
		return
	}

	state.TempData["group_name"] = name
	b.setUserState(ctx, userID, StateGroupCategory, state.TempData)

	b.sendWithKeyboard(chatID, "К какой категории относится группа?", b.categoryKeyboard())
}

func (b *Bot) handleGroupCategory(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	category, ok := b.catalog.CanonicalCategory(sanitizeInput(text))
	if !ok {
		b.sendMessage(chatID, "Такой категории нет. Выберите категорию кнопкой на клавиатуре.")
		return
	}

	user, found := b.requireUser(ctx, chatID, userID)
	if !found {
		return
	}

	group := &models.Group{
		UserID:   user.ID,
		Name:     state.GetString("group_name"),
		Category: category,
		Color:    groupColor(state.GetString("group_name")),
	}
	if err := b.groupService.Create(ctx, group); err != nil {
		b.clearUserState(ctx, userID)
		b.sendWithKeyboard(chatID, b.getErrorMessage(err), b.mainMenuKeyboard(userID))
		return
	}

	b.clearUserState(ctx, userID)
	b.sendWithKeyboard(chatID, fmt.Sprintf("🗂 Группа «%s» создана.", group.Name), b.mainMenuKeyboard(userID))
}

// offerGroupSuggestions предлагает положить новую позицию в группу той
// же категории. Одна кандидатка даёт вопрос да/нет, несколько дают
// список, без кандидаток разговор не начинается.
func (b *Bot) offerGroupSuggestions(ctx context.Context, chatID int64, result *models.CreateResult) {
	if result.Item == nil || len(result.Suggestions) == 0 {
		return
	}
	itemID := result.Item.ID

	if len(result.Suggestions) == 1 {
		g := result.Suggestions[0]
		keyboard := tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("✅ Да", fmt.Sprintf("sg:add:%d:%d", g.ID, itemID)),
				tgbotapi.NewInlineKeyboardButtonData("Нет", "sg:no"),
			),
		)
		b.sendWithInlineKeyboard(chatID, fmt.Sprintf("Добавить в группу «%s»?", g.Name), keyboard)
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, g := range result.Suggestions {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(g.Name, fmt.Sprintf("sg:add:%d:%d", g.ID, itemID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Без группы", "sg:no"),
	))
	b.sendWithInlineKeyboard(chatID, "В какую группу добавить?", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (b *Bot) handleGroupSuggestion(ctx context.Context, callback *tgbotapi.CallbackQuery, action string) {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if action == "no" {
		b.editMessage(chatID, messageID, "Ок, без группы.", nil)
		return
	}

	parts := strings.Split(action, ":")
	if len(parts) != 3 || parts[0] != "add" {
		return
	}
	groupID, err1 := strconv.ParseInt(parts[1], 10, 64)
	itemID, err2 := strconv.ParseInt(parts[2], 10, 64)
	if err1 != nil || err2 != nil {
		return
	}

	if err := b.groupService.AddItem(ctx, itemID, groupID); err != nil {
		b.editMessage(chatID, messageID, b.getErrorMessage(err), nil)
		return
	}

	group, err := b.groupService.Get(ctx, groupID)
	if err != nil {
		b.editMessage(chatID, messageID, "🗂 Добавлено в группу.", nil)
		return
	}
	b.editMessage(chatID, messageID, fmt.Sprintf("🗂 Добавлено в группу «%s».", group.Name), nil)
}
