package models

const (
	ParseModeMarkdown = "Markdown"
	ParseModeHTML     = "HTML"
)

const (
	// DefaultRedisTTL время жизни состояния пользователя в Redis
	DefaultRedisTTL = 24 * 60 * 60 // 24 часа в секундах

	// AlertHorizonDays окно планирования уведомлений о сроке годности
	AlertHorizonDays = 3

	// AlertDeliveryHour локальный час доставки уведомлений
	AlertDeliveryHour = 9

	// DefaultInventoryName имя инвентаря, создаваемого по умолчанию
	DefaultInventoryName = "Кладовая"

	// DefaultInventoryMaxItems вместимость инвентаря по умолчанию
	DefaultInventoryMaxItems = 200

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 1000

	// DefaultPaginationSize размер пагинации по умолчанию
	DefaultPaginationSize = 8

	// RateLimitMessages количество сообщений в окне
	RateLimitMessages = 20

	// RateLimitWindow окно ограничения частоты сообщений
	RateLimitWindow = 60 // 1 минута в секундах
)
