package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SenderAdapter подгоняет *tgbotapi.BotAPI под domain.TelegramSender:
// Self у библиотеки это поле, а интерфейсу нужен метод.
type SenderAdapter struct {
	*tgbotapi.BotAPI
}

func NewSenderAdapter(api *tgbotapi.BotAPI) *SenderAdapter {
	return &SenderAdapter{BotAPI: api}
}

func (a *SenderAdapter) GetSelf() tgbotapi.User {
	return a.Self
}

func (a *SenderAdapter) StopReceivingUpdates() {
	a.BotAPI.StopReceivingUpdates()
}
