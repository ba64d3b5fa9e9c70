package models

import "time"

// TaskResult is what a background task reports back to the runner.
type TaskResult string

const (
	// TaskResultNewData пересборка что-то изменила
	TaskResultNewData TaskResult = "new_data"
	// TaskResultNoData изменений нет (или нет активного пользователя)
	TaskResultNoData TaskResult = "no_data"
	// TaskResultFailed запуск не удался, перезапуск по политике раннера
	TaskResultFailed TaskResult = "failed"
)

// RefreshSummary итог пересборки уведомлений пользователя.
type RefreshSummary struct {
	Scanned   int `json:"scanned"`
	Expired   int `json:"expired"`
	Today     int `json:"today"`
	Tomorrow  int `json:"tomorrow"`
	Soon      int `json:"soon"`
	Cancelled int `json:"cancelled"`
	Scheduled int `json:"scheduled"`
	Failures  int `json:"failures"`
}

// ActiveUser is the durable slot the background refresh reads to know
// whom to rebuild alerts for. Written on /start, cleared on /stop.
type ActiveUser struct {
	UserID     int64     `json:"user_id"`
	TelegramID int64     `json:"telegram_id"`
	ChatID     int64     `json:"chat_id"`
	StartedAt  time.Time `json:"started_at"`
}
