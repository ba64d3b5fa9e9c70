package bot

import (
	"errors"

	"proviant/internal/database"
)

func (b *Bot) getErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	if errors.Is(err, database.ErrEmptyName) {
		return "⚠️ Название не может быть пустым. Напишите, что кладём в запасы."
	}

	if errors.Is(err, database.ErrInvalidQuantity) {
		return "⚠️ Количество должно быть положительным числом, например 0.5 или 2."
	}

	if errors.Is(err, database.ErrInvalidCategory) {
		return "⚠️ Такой категории нет. Выберите категорию кнопкой на клавиатуре."
	}

	if errors.Is(err, database.ErrUnitNotAllowed) {
		return "⚠️ Эта единица не подходит для выбранной категории. Посмотрите подсказку над полем ввода."
	}

	if errors.Is(err, database.ErrInventoryFull) {
		return "⚠️ Инвентарь заполнен. Удалите что-нибудь, прежде чем добавлять новое."
	}

	if errors.Is(err, database.ErrItemNotFound) {
		return "⚠️ Позиция не найдена. Возможно, её уже удалили."
	}

	if errors.Is(err, database.ErrGroupNotFound) {
		return "⚠️ Группа не найдена. Список групп: /groups"
	}

	if errors.Is(err, database.ErrEmptyGroupName) {
		return "⚠️ Название группы не может быть пустым."
	}

	if errors.Is(err, database.ErrAlreadyInGroup) {
		return "⚠️ Эта позиция уже состоит в выбранной группе."
	}

	if errors.Is(err, database.ErrMergeNotAllowed) {
		return "⚠️ Эти позиции нельзя объединить: у них разные единицы измерения. Создайте отдельную запись."
	}

	if errors.Is(err, database.ErrConcurrentModification) {
		return "⚠️ Позиция изменилась, пока вы решали. Начните добавление заново: /add"
	}

	// Default error message
	return "❌ Произошла ошибка при обработке вашего запроса. Пожалуйста, попробуйте позже."
}
