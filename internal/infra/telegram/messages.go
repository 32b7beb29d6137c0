package telegram

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/message"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/domain/quran"
	"khatm_bot/internal/infra/i18n"
)

// Callback uniques. Payloads are joined with '|' by telebot.
const (
	uniqueTake = "take"
	uniqueRead = "read"
)

// minutesPerPage feeds the reading time estimate.
const minutesPerPage = 2

var pageChoices = [][]int{{1, 2, 3}, {5, 10, 20}}

var startParamRx = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func printerFor(c telebot.Context) *message.Printer {
	if sender := c.Sender(); sender != nil {
		return i18n.Printer(sender.LanguageCode)
	}
	return i18n.Printer("")
}

// errorKey maps service errors to the message shown to the user.
func errorKey(err error) string {
	switch {
	case errors.Is(err, khatm.ErrNotFound):
		return i18n.KeyNotFound
	case errors.Is(err, khatm.ErrCycleLocked):
		return i18n.KeyLocked
	case errors.Is(err, khatm.ErrConflict):
		return i18n.KeyBusy
	case errors.Is(err, khatm.ErrInvalidName):
		return i18n.KeyInvalidName
	case errors.Is(err, khatm.ErrInvalidPageCount), errors.Is(err, app.ErrInvalidPageRange):
		return i18n.KeyInvalidPages
	default:
		return i18n.KeyGenericError
	}
}

// deepLink opens the bot with the khatm preselected. Telegram accepts only
// [A-Za-z0-9_-]{1,64} as a start parameter, so slugs with Arabic letters fall
// back to the record id.
func deepLink(botUsername string, k *khatm.Khatm) string {
	param := k.Slug
	if !startParamRx.MatchString(param) {
		param = k.ID
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, param)
}

func statusText(p *message.Printer, st *app.KhatmStatus) string {
	return p.Sprintf(i18n.KeyStatus,
		st.Khatm.Name, st.Cycle, st.ProgressPct, st.RemainingPages, st.Khatm.CompletedCount)
}

func pageChoiceMarkup(p *message.Printer, khatmID string) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	rows := make([]telebot.Row, 0, len(pageChoices))
	for _, choice := range pageChoices {
		btns := make([]telebot.Btn, 0, len(choice))
		for _, n := range choice {
			btns = append(btns, markup.Data(p.Sprintf(i18n.KeyPagesButton, n), uniqueTake, khatmID, strconv.Itoa(n)))
		}
		rows = append(rows, markup.Row(btns...))
	}
	markup.Inline(rows...)
	return markup
}

func readMarkup(p *message.Printer, a *khatm.Assignment) *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.Inline(markup.Row(
		markup.Data(p.Sprintf(i18n.KeyReadButton), uniqueRead, strconv.Itoa(a.StartPage), strconv.Itoa(a.EndPage)),
	))
	return markup
}

func assignmentText(p *message.Printer, name string, a *khatm.Assignment, policy khatm.CompletionPolicy) string {
	lines := []string{p.Sprintf(i18n.KeyAssigned, name, a.Cycle, a.StartPage, a.EndPage)}
	if a.Truncated() {
		lines = append(lines, p.Sprintf(i18n.KeyAssignedTrunc, a.Pages()))
	}
	lines = append(lines, p.Sprintf(i18n.KeyEstimatedTime, a.Pages()*minutesPerPage))
	if a.CycleCompleted {
		if policy == khatm.CompletionLock {
			lines = append(lines, p.Sprintf(i18n.KeyCycleClosed))
		} else {
			lines = append(lines, p.Sprintf(i18n.KeyCycleCompleted))
		}
	}
	return strings.Join(lines, "\n")
}

// pageText renders one page with ayah end markers.
func pageText(p *message.Printer, page *quran.Page) string {
	var b strings.Builder
	b.WriteString(p.Sprintf(i18n.KeyPageHeader, page.Number, strings.Join(page.SurahNames, "، ")))
	b.WriteString("\n\n")
	for i, v := range page.Verses {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v.TextUthmani)
		b.WriteString(" ﴿")
		b.WriteString(quran.ArabicNumerals(v.VerseNumber()))
		b.WriteString("﴾")
	}
	return b.String()
}

// parseTakeData reads "<khatm id>|<pages>".
func parseTakeData(data string) (string, int, error) {
	id, count, ok := strings.Cut(data, "|")
	if !ok || id == "" {
		return "", 0, fmt.Errorf("invalid take payload %q", data)
	}
	n, err := strconv.Atoi(count)
	if err != nil {
		return "", 0, fmt.Errorf("invalid page count in %q: %w", data, err)
	}
	return id, n, nil
}

// parseReadData reads "<start>|<end>".
func parseReadData(data string) (int, int, error) {
	first, second, ok := strings.Cut(data, "|")
	if !ok {
		return 0, 0, fmt.Errorf("invalid read payload %q", data)
	}
	start, err := strconv.Atoi(first)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid start page in %q: %w", data, err)
	}
	end, err := strconv.Atoi(second)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid end page in %q: %w", data, err)
	}
	return start, end, nil
}
