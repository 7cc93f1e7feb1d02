package telegram

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// sender is the part of the Bot API the tracker bot talks to. Send posts
// messages; Request is used for calls without a message result, such as
// answering an inline button press.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

var _ sender = (*tgbotapi.BotAPI)(nil)
