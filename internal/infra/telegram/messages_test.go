package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"khatm_bot/internal/app"
	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/domain/quran"
	"khatm_bot/internal/infra/i18n"
)

func TestSplitMessage(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		require.Equal(t, []string{"hello"}, splitMessage("  hello \n", 10))
	})

	t.Run("empty text has no chunks", func(t *testing.T) {
		require.Empty(t, splitMessage(" \n ", 10))
	})

	t.Run("prefers word boundaries", func(t *testing.T) {
		require.Equal(t, []string{"aaaa bbbb", "cccc"}, splitMessage("aaaa bbbb cccc", 10))
	})

	t.Run("hard cuts long words", func(t *testing.T) {
		require.Equal(t, []string{"abcdef", "ghij"}, splitMessage("abcdefghij", 6))
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		text := strings.Repeat("بسم ", 3000)
		chunks := splitMessage(text, maxMessageRunes)

		require.Len(t, chunks, 3)
		var total int
		for _, c := range chunks {
			require.LessOrEqual(t, utf8.RuneCountInString(c), maxMessageRunes)
			total += strings.Count(c, "بسم")
		}
		require.Equal(t, 3000, total)
	})
}

func TestErrorKey(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("assign pages: %w", khatm.ErrNotFound), i18n.KeyNotFound},
		{khatm.ErrCycleLocked, i18n.KeyLocked},
		{fmt.Errorf("wrapped: %w", khatm.ErrConflict), i18n.KeyBusy},
		{khatm.ErrInvalidName, i18n.KeyInvalidName},
		{khatm.ErrInvalidPageCount, i18n.KeyInvalidPages},
		{app.ErrInvalidPageRange, i18n.KeyInvalidPages},
		{khatm.ErrStoreUnavailable, i18n.KeyGenericError},
		{errors.New("boom"), i18n.KeyGenericError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, errorKey(tt.err))
		})
	}
}

func TestParseTakeData(t *testing.T) {
	id, n, err := parseTakeData("6f1c-aa|10")
	require.NoError(t, err)
	require.Equal(t, "6f1c-aa", id)
	require.Equal(t, 10, n)

	for _, bad := range []string{"", "only-id", "|3", "id|ten"} {
		_, _, err := parseTakeData(bad)
		require.Error(t, err, bad)
	}
}

func TestParseReadData(t *testing.T) {
	start, end, err := parseReadData("600|604")
	require.NoError(t, err)
	require.Equal(t, 600, start)
	require.Equal(t, 604, end)

	for _, bad := range []string{"", "600", "a|2", "1|b"} {
		_, _, err := parseReadData(bad)
		require.Error(t, err, bad)
	}
}

func TestAssignmentText(t *testing.T) {
	p := i18n.Printer("en")

	t.Run("plain assignment", func(t *testing.T) {
		a := &khatm.Assignment{StartPage: 11, EndPage: 20, Requested: 10, Cycle: 2}
		require.Equal(t,
			"Your pages in Family (cycle 2): 11 - 20\nEstimated time: 20 minutes",
			assignmentText(p, "Family", a, khatm.CompletionReset))
	})

	t.Run("truncated completion", func(t *testing.T) {
		a := &khatm.Assignment{StartPage: 600, EndPage: 604, Requested: 10, Cycle: 1, CycleCompleted: true}
		text := assignmentText(p, "Family", a, khatm.CompletionReset)
		require.Contains(t, text, "Only 5 pages were left")
		require.Contains(t, text, "A new cycle starts now.")
	})

	t.Run("lock policy notice", func(t *testing.T) {
		a := &khatm.Assignment{StartPage: 1, EndPage: 5, Requested: 5, Cycle: 1, CycleCompleted: true}
		require.Contains(t, assignmentText(p, "Family", a, khatm.CompletionLock), "until an admin reopens it")
	})
}

func TestPageText(t *testing.T) {
	page := &quran.Page{
		Number: 1,
		Verses: []quran.Verse{
			{Key: "1:1", TextUthmani: "بِسْمِ ٱللَّهِ", ChapterID: 1},
			{Key: "1:2", TextUthmani: "ٱلْحَمْدُ لِلَّهِ", ChapterID: 1},
		},
		SurahNames: []string{"الفاتحة"},
	}

	text := pageText(i18n.Printer("en"), page)

	require.Equal(t, "Page 1 - الفاتحة\n\nبِسْمِ ٱللَّهِ ﴿١﴾ ٱلْحَمْدُ لِلَّهِ ﴿٢﴾", text)
}

func TestPageChoiceMarkup(t *testing.T) {
	markup := pageChoiceMarkup(i18n.Printer("en"), "k-1")

	require.Len(t, markup.InlineKeyboard, 2)
	first := markup.InlineKeyboard[0][0]
	require.Equal(t, "1 pages", first.Text)
	require.True(t, strings.HasSuffix(first.Data, "k-1|1"))
	require.True(t, strings.HasSuffix(markup.InlineKeyboard[1][2].Data, "k-1|20"))
}

func TestDeepLink(t *testing.T) {
	latin := &khatm.Khatm{ID: "0b6f3c1e-9f0a-4a57-8f39-0f4c6f1f2d11", Slug: "family-abc123"}
	require.Equal(t, "https://t.me/khatm_bot?start=family-abc123", deepLink("khatm_bot", latin))

	arabic := &khatm.Khatm{ID: "0b6f3c1e-9f0a-4a57-8f39-0f4c6f1f2d11", Slug: "ختمة-العائلة-abc123"}
	require.Equal(t, "https://t.me/khatm_bot?start=0b6f3c1e-9f0a-4a57-8f39-0f4c6f1f2d11", deepLink("khatm_bot", arabic))
}
