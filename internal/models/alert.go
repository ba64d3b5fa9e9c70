package models

import "time"

// AlertKindExpiry помечает уведомления движка сроков годности. Отмена и
// пересборка фильтруют по этому тегу и не трогают чужие уведомления.
const AlertKindExpiry = "expiry"

// Alert is a scheduled push notification. Scheduling again for the same
// user/item/kind replaces the previous instance instead of stacking.
type Alert struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	UserID    int64     `json:"user_id"`
	ChatID    int64     `json:"chat_id"`
	ItemID    int64     `json:"item_id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	DaysLeft  int       `json:"days_left"`
	DeliverAt time.Time `json:"deliver_at"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}
