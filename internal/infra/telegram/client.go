// internal/infra/telegram/client.go
package telegram

import (
	"fmt"
	"strings"

	"gopkg.in/telebot.v3"

	domainTelegram "khatm_bot/internal/domain/telegram"
)

// maxMessageRunes stays under Telegram's 4096 character limit.
const maxMessageRunes = 4000

// TelebotAdapter implements the Messenger interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

var _ domainTelegram.Messenger = (*TelebotAdapter)(nil)

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

func (tba *TelebotAdapter) SendMessage(chatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}
	_, err := tba.bot.Send(telebot.ChatID(chatID), text, options)
	return err
}

// SendLong sends text in order, one message per chunk, and stops at the
// first failed chunk.
func (tba *TelebotAdapter) SendLong(chatID int64, text string) error {
	chunks := splitMessage(text, maxMessageRunes)
	for i, chunk := range chunks {
		if err := tba.SendMessage(chatID, chunk, nil); err != nil {
			return fmt.Errorf("send chunk %d/%d: %w", i+1, len(chunks), err)
		}
	}
	return nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring a
// line break or space in the second half of each chunk.
func splitMessage(text string, limit int) []string {
	var chunks []string
	runes := []rune(strings.TrimSpace(text))
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i] == '\n' || runes[i] == ' ' {
				cut = i
				break
			}
		}
		if chunk := strings.TrimSpace(string(runes[:cut])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		runes = []rune(strings.TrimLeft(string(runes[cut:]), " \n"))
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
