package database

import "errors"

var (
	// ErrItemNotFound возвращается, когда записи о продукте нет в базе.
	ErrItemNotFound = errors.New("item not found")

	// ErrGroupNotFound возвращается, когда группа не найдена.
	ErrGroupNotFound = errors.New("group not found")

	// ErrInventoryNotFound возвращается, когда инвентарь не найден.
	ErrInventoryNotFound = errors.New("inventory not found")

	// ErrUserNotFound возвращается, когда пользователь не найден.
	ErrUserNotFound = errors.New("user not found")

	// ErrAlreadyInGroup marks an add-to-group call for an item that is
	// already a member. Bulk operations treat it as an expected outcome.
	ErrAlreadyInGroup = errors.New("item already in group")

	// ErrInventoryFull blocks item creation once the inventory hit its
	// max_items capacity.
	ErrInventoryFull = errors.New("inventory is full")

	// ErrConcurrentModification signals a stale-version update, e.g. a
	// duplicate-merge decision applied twice.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrEmptyName пустое имя позиции.
	ErrEmptyName = errors.New("item name is empty")

	// ErrEmptyGroupName пустое имя группы.
	ErrEmptyGroupName = errors.New("group name is empty")

	// ErrInvalidQuantity количество должно быть больше нуля.
	ErrInvalidQuantity = errors.New("quantity must be positive")

	// ErrInvalidCategory категория не из каталога.
	ErrInvalidCategory = errors.New("unknown category")

	// ErrUnitNotAllowed единица измерения не разрешена для категории.
	ErrUnitNotAllowed = errors.New("unit not allowed for category")

	// ErrMergeNotAllowed слияние дубликатов невозможно, например из-за
	// разных единиц измерения.
	ErrMergeNotAllowed = errors.New("merge not allowed")
)
