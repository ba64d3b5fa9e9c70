package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"proviant/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// Диалог добавления: название, категория, количество с единицей, срок
// годности. Черновик лежит в сессии, так что шаги можно проходить с
// паузами. Найденный дубликат останавливает диалог до решения кнопкой.

func (b *Bot) startAddFlow(ctx context.Context, chatID, userID int64) {
	if _, ok := b.requireUser(ctx, chatID, userID); !ok {
		return
	}

	b.setUserState(ctx, userID, StateAddName, nil)
	b.sendWithKeyboard(chatID, "Что добавить в запасы? Напишите название.", cancelKeyboard())
}

func (b *Bot) handleAddName(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	name := sanitizeInput(text)
	if name == "" {
		b.sendMessage(chatID, "Название не может быть пустым. Напишите ещё раз.")
		return
	}

	state.TempData["name"] = name

	// Подсказки из внешнего каталога сохраняем в черновик: кнопка
	// подставит каноничное название вместо введённого.
	suggestions := b.searchFoodSuggestions(ctx, name)
	for i, s := range suggestions {
		state.TempData[foodSuggestionKey(i)] = s.Name
	}

	b.setUserState(ctx, userID, StateAddCategory, state.TempData)

	if len(suggestions) > 0 {
		b.sendWithInlineKeyboard(chatID, "Похожие продукты в каталоге:", foodSuggestionKeyboard(suggestions))
	}

	b.sendWithKeyboard(chatID, fmt.Sprintf("«%s». Теперь выберите категорию:", name), b.categoryKeyboard())
}

func (b *Bot) handleAddCategory(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	category, ok := b.catalog.CanonicalCategory(sanitizeInput(text))
	if !ok {
		b.sendMessage(chatID, "Такой категории нет. Выберите категорию кнопкой на клавиатуре.")
		return
	}

	state.TempData["category"] = category
	b.setUserState(ctx, userID, StateAddQuantity, state.TempData)

	units := b.catalog.AllowedUnits(category)
	example := "шт"
	if len(units) > 0 {
		example = units[0]
	}
	prompt := fmt.Sprintf("Сколько? Напишите количество и единицу через пробел, например: 2 %s.\nЕдиницы для категории «%s»: %s.",
		example, category, strings.Join(units, ", "))
	b.sendWithKeyboard(chatID, prompt, cancelKeyboard())
}

func (b *Bot) handleAddQuantity(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	qty, unit, err := parseQuantity(text)
	if err != nil {
		b.sendMessage(chatID, "Не получилось разобрать. Напишите количество и единицу через пробел, например: 0,5 кг")
		return
	}
	if qty <= 0 {
		b.sendMessage(chatID, "Количество должно быть больше нуля.")
		return
	}

	category := state.GetString("category")
	if !b.catalog.ValidUnit(category, unit) {
		b.sendMessage(chatID, fmt.Sprintf("Единица «%s» не подходит для категории «%s». Доступные: %s.",
			unit, category, strings.Join(b.catalog.AllowedUnits(category), ", ")))
		return
	}

	state.TempData["quantity"] = qty
	state.TempData["unit"] = unit
	b.setUserState(ctx, userID, StateAddExpiry, state.TempData)

	b.sendWithKeyboard(chatID, "До какого числа годен? Напишите дату в формате ДД.ММ.ГГГГ или нажмите «Без срока».", expiryKeyboard())
}

func (b *Bot) handleAddExpiry(ctx context.Context, update tgbotapi.Update, text string, state *models.UserState) {
	chatID := update.Message.Chat.ID

	var expiresAt *time.Time
	if text != btnNoExpiry {
		date, err := parseUserDate(text)
		if err != nil {
			b.sendMessage(chatID, "Неверный формат даты. Используйте ДД.ММ.ГГГГ (например, 25.12.2026) или кнопку «Без срока».")
			return
		}
		expiresAt = &date
	}

	b.finishAdd(ctx, update, state, expiresAt)
}

func (b *Bot) finishAdd(ctx context.Context, update tgbotapi.Update, state *models.UserState, expiresAt *time.Time) {
	chatID := update.Message.Chat.ID
	userID := update.Message.From.ID

	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	input := models.ItemInput{
		Name:      state.GetString("name"),
		Category:  state.GetString("category"),
		Quantity:  state.GetFloat64("quantity"),
		Unit:      state.GetString("unit"),
		ExpiresAt: expiresAt,
	}

	result, err := b.itemService.Create(ctx, user, input, models.DecisionNone)
	if err != nil {
		b.clearUserState(ctx, userID)
		b.sendWithKeyboard(chatID, b.getErrorMessage(err), b.mainMenuKeyboard(userID))
		return
	}

	switch result.Outcome {
	case models.OutcomeDuplicate:
		// Отчёт сохраняем в черновик: решение придёт отдельным
		// колбэком, и слияние должно примениться ровно к той версии,
		// которую пользователь видел.
		raw, err := json.Marshal(result.Duplicate)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("Failed to marshal duplicate report")
			b.clearUserState(ctx, userID)
			b.sendWithKeyboard(chatID, b.getErrorMessage(err), b.mainMenuKeyboard(userID))
			return
		}
		state.TempData["duplicate_report"] = string(raw)
		b.setUserState(ctx, userID, StateAddDuplicate, state.TempData)
		b.sendWithInlineKeyboard(chatID, formatDuplicateReport(result.Duplicate, time.Now()), duplicateKeyboard(result.Duplicate.CanMerge))

	case models.OutcomeCreated:
		b.clearUserState(ctx, userID)
		b.sendWithKeyboard(chatID, "✅ Добавлено: "+formatItemLine(*result.Item, time.Now()), b.mainMenuKeyboard(userID))
		b.offerGroupSuggestions(ctx, chatID, result)

	default:
		b.clearUserState(ctx, userID)
		b.sendWithKeyboard(chatID, "Готово.", b.mainMenuKeyboard(userID))
	}
}

// handleDuplicateDecision достаёт сохранённый отчёт о дубликате и
// завершает приостановленное создание выбранным способом.
func (b *Bot) handleDuplicateDecision(ctx context.Context, callback *tgbotapi.CallbackQuery, action string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	state := b.getUserState(ctx, userID)
	if state == nil || state.CurrentStep != StateAddDuplicate {
		b.editMessage(chatID, messageID, "Сессия устарела. Начните заново: /add", nil)
		return
	}

	var report models.DuplicateReport
	if err := json.Unmarshal([]byte(state.GetString("duplicate_report")), &report); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("Failed to unmarshal duplicate report")
		b.clearUserState(ctx, userID)
		b.editMessage(chatID, messageID, "Черновик повреждён. Начните заново: /add", nil)
		return
	}

	var decision models.CreateDecision
	switch action {
	case "merge":
		decision = models.DecisionMerge
	case "new":
		decision = models.DecisionCreateAnyway
	case "cancel":
		decision = models.DecisionCancel
	default:
		zerolog.Ctx(ctx).Warn().Str("action", action).Msg("Unknown duplicate decision")
		return
	}

	user, ok := b.requireUser(ctx, chatID, userID)
	if !ok {
		return
	}

	result, err := b.itemService.ResolveDuplicate(ctx, user, &report, decision)
	if err != nil {
		b.clearUserState(ctx, userID)
		b.editMessage(chatID, messageID, b.getErrorMessage(err), nil)
		return
	}

	b.clearUserState(ctx, userID)

	switch result.Outcome {
	case models.OutcomeMerged:
		b.editMessage(chatID, messageID, "🔗 Объединено: "+formatItemLine(*result.Item, time.Now()), nil)
	case models.OutcomeCreated:
		b.editMessage(chatID, messageID, "✅ Добавлено отдельной записью: "+formatItemLine(*result.Item, time.Now()), nil)
		b.offerGroupSuggestions(ctx, chatID, result)
	case models.OutcomeCancelled:
		b.editMessage(chatID, messageID, "Хорошо, ничего не добавляю.", nil)
	}
}

// searchFoodSuggestions спрашивает внешний каталог, молча пропуская
// сбои: подсказки не должны мешать добавлению.
func (b *Bot) searchFoodSuggestions(ctx context.Context, query string) []models.FoodSuggestion {
	if b.foodCatalog == nil {
		return nil
	}

	suggestions, err := b.foodCatalog.SearchFoods(ctx, query, 3)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("query", query).Msg("Food catalog search failed")
		return nil
	}
	return suggestions
}

func foodSuggestionKey(idx int) string {
	return fmt.Sprintf("food_%d", idx)
}

// foodSuggestionKeyboard кнопки с индексами: название может не влезть
// в лимит callback data, поэтому в кнопке индекс, а имя в черновике.
func foodSuggestionKeyboard(suggestions []models.FoodSuggestion) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, s := range suggestions {
		label := s.Name
		if s.Brand != "" {
			label = fmt.Sprintf("%s (%s)", s.Name, s.Brand)
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, "food:"+strconv.Itoa(i)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleFoodSuggestion подставляет выбранное каталожное название в
// черновик добавления.
func (b *Bot) handleFoodSuggestion(ctx context.Context, callback *tgbotapi.CallbackQuery, idxStr string) {
	userID := callback.From.ID
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	idx, err := strconv.Atoi(idxStr)
	if err != nil {
		return
	}

	state := b.getUserState(ctx, userID)
	if state == nil || state.GetString("name") == "" {
		b.editMessage(chatID, messageID, "Черновик уже закрыт.", nil)
		return
	}

	name := state.GetString(foodSuggestionKey(idx))
	if name == "" {
		b.editMessage(chatID, messageID, "Подсказка устарела.", nil)
		return
	}

	b.updateStateData(ctx, userID, "name", name)
	b.editMessage(chatID, messageID, fmt.Sprintf("Название заменено на «%s».", name), nil)
}
