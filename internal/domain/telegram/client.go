package telegram

import "gopkg.in/telebot.v3"

// Messenger pushes messages to a chat outside of a command reply: page text
// that spans several messages and notices for the admin.
type Messenger interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
	// SendLong splits text into messages that fit Telegram's size limit.
	SendLong(chatID int64, text string) error
}
