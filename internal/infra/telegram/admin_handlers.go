package telegram

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	"khatm_bot/internal/infra/i18n"
)

// RegisterAdminHandlers registers handlers for admin commands.
// A zero adminTelegramID disables them for everyone.
func RegisterAdminHandlers(
	ctx context.Context,
	b *telebot.Bot,
	khatmService *app.KhatmService,
	auditService *app.AuditService,
	adminTelegramID int64,
	baseLogger *logrus.Entry,
) {
	isAdmin := func(c telebot.Context) bool {
		return adminTelegramID != 0 && c.Sender().ID == adminTelegramID
	}

	b.Handle("/audit", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/audit",
			"sender_id": c.Sender().ID,
		})
		p := printerFor(c)
		if !isAdmin(c) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(p.Sprintf(i18n.KeyUnauthorized))
		}

		report, err := auditService.AuditAll(ctx)
		if err != nil {
			handlerLogger.WithError(err).Error("Audit failed")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		handlerLogger.WithFields(logrus.Fields{
			"checked":      report.Checked,
			"out_of_range": report.OutOfRange,
		}).Info("Audit run on demand")
		return c.Send(p.Sprintf(i18n.KeyAuditDone, report.Checked, report.OutOfRange))
	})

	b.Handle("/reopen", func(c telebot.Context) error {
		handlerLogger := baseLogger.WithFields(logrus.Fields{
			"handler":   "/reopen",
			"sender_id": c.Sender().ID,
		})
		p := printerFor(c)
		if !isAdmin(c) {
			handlerLogger.Warn("Unauthorized access attempt")
			return c.Send(p.Sprintf(i18n.KeyUnauthorized))
		}

		args := c.Args()
		if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
			return c.Send(p.Sprintf(i18n.KeyUsageReopen))
		}
		slug := strings.TrimSpace(args[0])
		handlerLogger = handlerLogger.WithField("slug", slug)

		k, err := khatmService.FindBySlug(ctx, slug)
		if err != nil {
			handlerLogger.WithError(err).Warn("Khatm to reopen not found")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		if _, err := khatmService.Reopen(ctx, k.ID); err != nil {
			handlerLogger.WithError(err).Error("Failed to reopen khatm")
			return c.Send(p.Sprintf(errorKey(err)))
		}
		handlerLogger.WithField("khatm_id", k.ID).Info("Khatm reopened by admin")
		return c.Send(p.Sprintf(i18n.KeyReopened, k.Slug))
	})
}
