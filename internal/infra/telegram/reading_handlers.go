// internal/infra/telegram/reading_handlers.go
package telegram

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	domainTelegram "khatm_bot/internal/domain/telegram"
	"khatm_bot/internal/infra/i18n"
)

// RegisterReadingHandlers wires the inline buttons that reserve pages and
// deliver their text.
func RegisterReadingHandlers(
	ctx context.Context,
	b *telebot.Bot,
	khatmService *app.KhatmService,
	readingService *app.ReadingService,
	messenger domainTelegram.Messenger,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	callbackLogger := baseLogger.WithField("handler_group", "reading")

	b.Handle(&telebot.Btn{Unique: uniqueTake}, func(c telebot.Context) error {
		logCtx := callbackLogger.WithFields(logrus.Fields{"handler": uniqueTake, "sender_id": c.Sender().ID})
		p := printerFor(c)

		id, requested, err := parseTakeData(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: p.Sprintf(i18n.KeyGenericError)})
		}
		logCtx = logCtx.WithFields(logrus.Fields{"khatm_id": id, "requested": requested})

		a, err := khatmService.AssignPages(ctx, id, requested)
		if err != nil {
			logCtx.WithError(err).Warn("Assignment rejected")
			msg := p.Sprintf(errorKey(err))
			if respErr := c.Respond(&telebot.CallbackResponse{Text: msg}); respErr != nil {
				logCtx.WithError(respErr).Warn("Failed to answer callback")
			}
			return c.Send(msg)
		}

		if err := c.Respond(&telebot.CallbackResponse{Text: p.Sprintf(i18n.KeyCallbackAccepted)}); err != nil {
			logCtx.WithError(err).Warn("Failed to answer callback")
		}

		// The name only decorates the reply; the assignment is already committed.
		name := id
		if k, err := khatmService.GetByID(ctx, id); err == nil {
			name = k.Name
			if a.CycleCompleted {
				notifyAdmin(messenger, adminTelegramID, c.Sender().ID, k.Name, k.Slug, a.Cycle, logCtx)
			}
		}

		return c.Send(assignmentText(p, name, a, khatmService.Policy()), readMarkup(p, a))
	})

	b.Handle(&telebot.Btn{Unique: uniqueRead}, func(c telebot.Context) error {
		logCtx := callbackLogger.WithFields(logrus.Fields{"handler": uniqueRead, "sender_id": c.Sender().ID})
		p := printerFor(c)

		start, end, err := parseReadData(c.Callback().Data)
		if err != nil {
			c.Bot().OnError(err, c)
			return c.Respond(&telebot.CallbackResponse{Text: p.Sprintf(i18n.KeyGenericError)})
		}
		logCtx = logCtx.WithFields(logrus.Fields{"start_page": start, "end_page": end})
		if err := c.Respond(); err != nil {
			logCtx.WithError(err).Warn("Failed to answer callback")
		}

		pages, err := readingService.Pages(ctx, start, end)
		if err != nil {
			logCtx.WithError(err).Error("Failed to load pages")
			return c.Send(p.Sprintf(i18n.KeyContentError))
		}

		chatID := c.Chat().ID
		for _, page := range pages {
			if err := messenger.SendLong(chatID, pageText(p, page)); err != nil {
				return fmt.Errorf("send page %d to chat %d: %w", page.Number, chatID, err)
			}
		}
		logCtx.WithField("pages", len(pages)).Info("Page text delivered")
		return nil
	})
}

func notifyAdmin(messenger domainTelegram.Messenger, adminID, senderID int64, name, slug string, cycle int, logCtx *logrus.Entry) {
	if adminID == 0 || adminID == senderID {
		return
	}
	text := i18n.Printer("").Sprintf(i18n.KeyAdminCycleNotice, name, slug, cycle)
	if err := messenger.SendMessage(adminID, text, nil); err != nil {
		logCtx.WithError(err).Warn("Failed to notify admin about completed cycle")
	}
}
