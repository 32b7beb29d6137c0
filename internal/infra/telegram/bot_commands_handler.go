// internal/infra/telegram/bot_commands_handler.go
package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/infra/i18n"
)

// RegisterBotCommands wires the participant commands: /start, /join, /new,
// /status and /help.
func RegisterBotCommands(
	ctx context.Context,
	b *telebot.Bot,
	khatmService *app.KhatmService,
	adminTelegramID int64,
	baseLogger *logrus.Entry, // For contextual logging
) {
	commandLogger := baseLogger.WithField("handler_group", "commands")

	// showKhatm replies with the progress of a khatm and the page count
	// buttons. ref is a slug, or a record id from a deep link.
	showKhatm := func(c telebot.Context, logCtx *logrus.Entry, ref string) error {
		p := printerFor(c)
		st, err := khatmService.Status(ctx, ref)
		if errors.Is(err, khatm.ErrNotFound) {
			if k, idErr := khatmService.GetByID(ctx, ref); idErr == nil {
				st, err = khatmService.Status(ctx, k.Slug)
			}
		}
		if err != nil {
			logCtx.WithError(err).WithField("ref", ref).Warn("Failed to load khatm")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		logCtx = logCtx.WithField("khatm_id", st.Khatm.ID)

		if khatmService.Policy() == khatm.CompletionLock && st.Khatm.IsCompleted {
			logCtx.Info("Khatm is locked, no page buttons")
			return c.Send(statusText(p, st) + "\n\n" + p.Sprintf(i18n.KeyLocked))
		}

		logCtx.Info("Showing khatm")
		text := statusText(p, st) + "\n\n" + p.Sprintf(i18n.KeyChoosePages)
		return c.Send(text, pageChoiceMarkup(p, st.Khatm.ID))
	}

	b.Handle("/start", func(c telebot.Context) error {
		logCtx := commandLogger.WithFields(logrus.Fields{"handler": "/start", "sender_id": c.Sender().ID})
		slug := strings.TrimSpace(c.Message().Payload)
		if slug == "" {
			logCtx.Info("Processing /start without payload")
			return c.Send(printerFor(c).Sprintf(i18n.KeyWelcome))
		}
		return showKhatm(c, logCtx, slug)
	})

	b.Handle("/join", func(c telebot.Context) error {
		logCtx := commandLogger.WithFields(logrus.Fields{"handler": "/join", "sender_id": c.Sender().ID})
		slug := strings.TrimSpace(c.Message().Payload)
		if slug == "" {
			return c.Send(printerFor(c).Sprintf(i18n.KeyUsageJoin))
		}
		return showKhatm(c, logCtx, slug)
	})

	b.Handle("/new", func(c telebot.Context) error {
		logCtx := commandLogger.WithFields(logrus.Fields{"handler": "/new", "sender_id": c.Sender().ID})
		p := printerFor(c)
		name := strings.TrimSpace(c.Message().Payload)
		if name == "" {
			return c.Send(p.Sprintf(i18n.KeyUsageNew))
		}

		created, err := khatmService.CreateKhatm(ctx, name)
		if err != nil {
			logCtx.WithError(err).Error("Failed to create khatm")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		logCtx.WithFields(logrus.Fields{"khatm_id": created.ID, "slug": created.Slug}).Info("Khatm created via command")

		link := deepLink(c.Bot().Me.Username, created)
		text := p.Sprintf(i18n.KeyCreated, created.Name, link) + "\n\n" + p.Sprintf(i18n.KeyChoosePages)
		return c.Send(text, pageChoiceMarkup(p, created.ID))
	})

	b.Handle("/status", func(c telebot.Context) error {
		logCtx := commandLogger.WithFields(logrus.Fields{"handler": "/status", "sender_id": c.Sender().ID})
		p := printerFor(c)
		slug := strings.TrimSpace(c.Message().Payload)
		if slug == "" {
			return c.Send(p.Sprintf(i18n.KeyUsageStatus))
		}

		st, err := khatmService.Status(ctx, slug)
		if err != nil {
			logCtx.WithError(err).WithField("slug", slug).Warn("Failed to load khatm status")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		return c.Send(statusText(p, st))
	})

	b.Handle("/help", func(c telebot.Context) error {
		p := printerFor(c)
		text := p.Sprintf(i18n.KeyHelp)
		if adminTelegramID != 0 && c.Sender().ID == adminTelegramID {
			text += p.Sprintf(i18n.KeyHelpAdmin)
		}
		return c.Send(text)
	})
}
