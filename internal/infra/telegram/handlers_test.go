package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gopkg.in/telebot.v3"

	"khatm_bot/internal/app"
	"khatm_bot/internal/domain/khatm"
	"khatm_bot/internal/domain/quran"
	"khatm_bot/internal/infra/memstore"
	"khatm_bot/internal/infra/txretry"
)

const (
	testChatID  = 42
	testUserID  = 7
	testAdminID = 99
)

type apiCall struct {
	method string
	params map[string]any
}

// fakeBotAPI answers Bot API requests and records them.
type fakeBotAPI struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)
	params := map[string]any{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, params: params})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if method == "sendMessage" {
		fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%v,"type":"private"}}}`, params["chat_id"])
		return
	}
	fmt.Fprint(w, `{"ok":true,"result":true}`)
}

// sent returns the texts of sendMessage calls to chat, in order.
func (f *fakeBotAPI) sent(chat int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if c.method == "sendMessage" && fmt.Sprint(c.params["chat_id"]) == fmt.Sprint(chat) {
			out = append(out, fmt.Sprint(c.params["text"]))
		}
	}
	return out
}

func (f *fakeBotAPI) lastMarkup() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.calls) - 1; i >= 0; i-- {
		if m, ok := f.calls[i].params["reply_markup"]; ok {
			return fmt.Sprint(m)
		}
	}
	return ""
}

func (f *fakeBotAPI) count(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.method == method {
			n++
		}
	}
	return n
}

type pageFetcher struct{}

func (pageFetcher) FetchPage(_ context.Context, n int) (*quran.Page, error) {
	return &quran.Page{
		Number:     n,
		Verses:     []quran.Verse{{Key: fmt.Sprintf("2:%d", n), TextUthmani: "ذَٰلِكَ ٱلْكِتَٰبُ", ChapterID: 2}},
		SurahNames: []string{quran.SurahName(2)},
	}, nil
}

type botFixture struct {
	bot   *telebot.Bot
	api   *fakeBotAPI
	store *memstore.KhatmStore
	errs  []error
}

func newBotFixture(t *testing.T, policy khatm.CompletionPolicy) *botFixture {
	t.Helper()
	f := &botFixture{api: &fakeBotAPI{}}
	srv := httptest.NewServer(f.api)
	t.Cleanup(srv.Close)

	b, err := telebot.NewBot(telebot.Settings{
		Token:       "test-token",
		URL:         srv.URL,
		Offline:     true,
		Synchronous: true,
		OnError: func(err error, _ telebot.Context) {
			f.errs = append(f.errs, err)
		},
	})
	require.NoError(t, err)
	b.Me.Username = "khatm_test_bot"
	f.bot = b

	l := logrus.New()
	l.SetOutput(io.Discard)
	log := logrus.NewEntry(l)

	retryPolicy := txretry.Policy{MaxElapsed: 5 * time.Second, InitialInterval: time.Millisecond, MaxInterval: 3 * time.Millisecond}
	f.store = memstore.NewKhatmStore(txretry.NewRunner("memory", retryPolicy, nil, log))
	khatmService := app.NewKhatmService(f.store, 604, policy, nil, nil, log)
	readingService := app.NewReadingService(pageFetcher{}, log)
	auditService := app.NewAuditService(f.store, nil, log)

	ctx := context.Background()
	RegisterBotCommands(ctx, b, khatmService, testAdminID, log)
	RegisterReadingHandlers(ctx, b, khatmService, readingService, NewTelebotAdapter(b), testAdminID, log)
	RegisterAdminHandlers(ctx, b, khatmService, auditService, testAdminID, log)
	return f
}

func (f *botFixture) command(from int64, lang, text string) {
	f.bot.ProcessUpdate(telebot.Update{
		ID: 1,
		Message: &telebot.Message{
			ID:     1,
			Sender: &telebot.User{ID: from, LanguageCode: lang},
			Chat:   &telebot.Chat{ID: testChatID, Type: telebot.ChatPrivate},
			Text:   text,
		},
	})
}

func (f *botFixture) press(from int64, data string) {
	f.bot.ProcessUpdate(telebot.Update{
		ID: 2,
		Callback: &telebot.Callback{
			ID:      "cb-1",
			Sender:  &telebot.User{ID: from, LanguageCode: "en"},
			Message: &telebot.Message{ID: 3, Chat: &telebot.Chat{ID: testChatID, Type: telebot.ChatPrivate}},
			Data:    data,
		},
	})
}

func TestCommands_NewKhatm(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.command(testUserID, "en", "/new Family Khatm")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], `Khatm "Family Khatm" created.`)
	require.Contains(t, sent[0], "https://t.me/khatm_test_bot?start=Family-Khatm-")
	require.Contains(t, f.api.lastMarkup(), "take|")
	require.Empty(t, f.errs)

	all, err := f.store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, 1, all[0].CurrentPage)
}

func TestCommands_NewWithoutName(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.command(testUserID, "en", "/new")

	require.Equal(t, []string{"Usage: /new <name>"}, f.api.sent(testChatID))
}

func TestCommands_StartWithSlugShowsStatus(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)
	f.store.Put(khatm.Khatm{ID: "k1", Name: "Family", Slug: "family-abc123", TotalPages: 604, CurrentPage: 303, CompletedCount: 1})

	f.command(testUserID, "en", "/start family-abc123")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "Family (cycle 2)\nProgress: 50%\nRemaining pages: 302\nCompleted khatms: 1")
	require.Contains(t, sent[0], "How many pages will you read?")
	require.Contains(t, f.api.lastMarkup(), "k1|10")
}

func TestCommands_StatusUnknownSlug(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.command(testUserID, "en", "/status nope-000000")

	require.Equal(t, []string{"Khatm not found. Check the link and try again."}, f.api.sent(testChatID))
}

func TestCommands_HelpIsLocalized(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.command(testUserID, "ar", "/help")
	f.command(testAdminID, "en", "/help")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 2)
	require.Contains(t, sent[0], "بدء ختمة جماعية جديدة")
	require.NotContains(t, sent[0], "/audit")
	require.Contains(t, sent[1], "/audit - check all khatms now")
}

func TestReading_TakePages(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)
	f.store.Put(khatm.Khatm{ID: "k1", Name: "Family", Slug: "family-abc123", TotalPages: 604, CurrentPage: 600})

	f.press(testUserID, "\ftake|k1|10")

	require.Empty(t, f.errs)
	require.Equal(t, 1, f.api.count("answerCallbackQuery"))

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "Your pages in Family (cycle 1): 600 - 604")
	require.Contains(t, sent[0], "Only 5 pages were left in this cycle.")
	require.Contains(t, sent[0], "A new cycle starts now.")
	require.Contains(t, f.api.lastMarkup(), "600|604")

	require.Equal(t, []string{`Khatm "Family" (family-abc123) completed cycle 1.`}, f.api.sent(testAdminID))

	stored, err := f.store.GetByID(context.Background(), "k1")
	require.NoError(t, err)
	require.Equal(t, 1, stored.CurrentPage)
	require.Equal(t, 1, stored.CompletedCount)
}

func TestReading_TakeUnknownKhatm(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.press(testUserID, "\ftake|missing|3")

	require.Equal(t, []string{"Khatm not found. Check the link and try again."}, f.api.sent(testChatID))
}

func TestReading_ReadPages(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.press(testUserID, "\fread|5|6")

	require.Empty(t, f.errs)
	sent := f.api.sent(testChatID)
	require.Len(t, sent, 2)
	require.Equal(t, "Page 5 - البقرة\n\nذَٰلِكَ ٱلْكِتَٰبُ ﴿٥﴾", sent[0])
	require.Contains(t, sent[1], "Page 6 - البقرة")
}

func TestReading_ReadRejectsInvalidRange(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)

	f.press(testUserID, "\fread|600|700")

	require.Equal(t, []string{"Could not load the pages right now. Please try again."}, f.api.sent(testChatID))
}

func TestAdmin_AuditRequiresAdmin(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)
	f.store.Put(khatm.Khatm{ID: "k1", Name: "Family", Slug: "family-abc123", TotalPages: 604, CurrentPage: 609})

	f.command(testUserID, "en", "/audit")
	f.command(testAdminID, "en", "/audit")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 2)
	require.Equal(t, "You are not allowed to run this command.", sent[0])
	require.Equal(t, "Audit finished: 1 khatms checked, 1 out of range (they heal on the next assignment).", sent[1])
}

func TestAdmin_ReopenLockedKhatm(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionLock)
	f.store.Put(khatm.Khatm{ID: "k1", Name: "Family", Slug: "family-abc123", TotalPages: 604, CurrentPage: 1, CompletedCount: 1, IsCompleted: true})

	f.press(testUserID, "\ftake|k1|2")
	f.command(testAdminID, "en", "/reopen family-abc123")
	f.press(testUserID, "\ftake|k1|2")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 3)
	require.Equal(t, "This khatm is completed and waiting to be reopened.", sent[0])
	require.Equal(t, "Khatm family-abc123 reopened.", sent[1])
	require.Contains(t, sent[2], "Your pages in Family (cycle 2): 1 - 2")
}

func TestCommands_StartWithRecordID(t *testing.T) {
	f := newBotFixture(t, khatm.CompletionReset)
	f.store.Put(khatm.Khatm{ID: "k1", Name: "ختمة العائلة", Slug: "ختمة-العائلة-abc123", TotalPages: 604, CurrentPage: 1})

	f.command(testUserID, "en", "/start k1")

	sent := f.api.sent(testChatID)
	require.Len(t, sent, 1)
	require.Contains(t, sent[0], "ختمة العائلة (cycle 1)")
}
