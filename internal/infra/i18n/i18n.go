// Package i18n holds the bot's user-facing strings in English and Arabic and
// registers them with x/text/message.
package i18n

import (
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys.
const (
	KeyWelcome          = "welcome"
	KeyHelp             = "help"
	KeyHelpAdmin        = "help.admin"
	KeyUsageNew         = "usage.new"
	KeyUsageJoin        = "usage.join"
	KeyUsageStatus      = "usage.status"
	KeyUsageReopen      = "usage.reopen"
	KeyCreated          = "khatm.created"
	KeyStatus           = "khatm.status"
	KeyChoosePages      = "khatm.choose_pages"
	KeyPagesButton      = "khatm.pages_button"
	KeyAssigned         = "assignment.assigned"
	KeyAssignedTrunc    = "assignment.truncated"
	KeyCycleCompleted   = "assignment.cycle_completed"
	KeyCycleClosed      = "assignment.cycle_closed"
	KeyEstimatedTime    = "assignment.estimated_time"
	KeyReadButton       = "assignment.read_button"
	KeyPageHeader       = "reading.page_header"
	KeyNotFound         = "error.not_found"
	KeyLocked           = "error.locked"
	KeyBusy             = "error.busy"
	KeyGenericError     = "error.generic"
	KeyInvalidName      = "error.invalid_name"
	KeyInvalidPages     = "error.invalid_pages"
	KeyContentError     = "error.content"
	KeyUnauthorized     = "error.unauthorized"
	KeyAuditDone        = "admin.audit_done"
	KeyReopened         = "admin.reopened"
	KeyAdminCycleNotice = "admin.cycle_notice"
	KeyCallbackAccepted = "callback.accepted"
)

var catalogs = map[language.Tag]map[string]string{
	language.English: {
		KeyWelcome:          "Welcome! Create a shared khatm with /new <name>, or open a shared link to join one.",
		KeyHelp:             "/new <name> - start a new shared khatm\n/join <slug> - join a khatm and take pages\n/status <slug> - show progress\n/help - show this message",
		KeyHelpAdmin:        "\n\nAdmin:\n/audit - check all khatms now\n/reopen <slug> - reopen a completed khatm",
		KeyUsageNew:         "Usage: /new <name>",
		KeyUsageJoin:        "Usage: /join <slug>",
		KeyUsageStatus:      "Usage: /status <slug>",
		KeyUsageReopen:      "Usage: /reopen <slug>",
		KeyCreated:          "Khatm \"%s\" created.\nShare this link so others can join:\n%s",
		KeyStatus:           "%s (cycle %d)\nProgress: %d%%\nRemaining pages: %d\nCompleted khatms: %d",
		KeyChoosePages:      "How many pages will you read?",
		KeyPagesButton:      "%d pages",
		KeyAssigned:         "Your pages in %s (cycle %d): %d - %d",
		KeyAssignedTrunc:    "Only %d pages were left in this cycle.",
		KeyCycleCompleted:   "This completes the khatm! A new cycle starts now.",
		KeyCycleClosed:      "This completes the khatm! It stays closed until an admin reopens it.",
		KeyEstimatedTime:    "Estimated time: %d minutes",
		KeyReadButton:       "Read pages",
		KeyPageHeader:       "Page %d - %s",
		KeyNotFound:         "Khatm not found. Check the link and try again.",
		KeyLocked:           "This khatm is completed and waiting to be reopened.",
		KeyBusy:             "Many people are joining right now. Please try again.",
		KeyGenericError:     "Something went wrong. Please try again later.",
		KeyInvalidName:      "Please give the khatm a name.",
		KeyInvalidPages:     "Please choose at least one page.",
		KeyContentError:     "Could not load the pages right now. Please try again.",
		KeyUnauthorized:     "You are not allowed to run this command.",
		KeyAuditDone:        "Audit finished: %d khatms checked, %d out of range (they heal on the next assignment).",
		KeyReopened:         "Khatm %s reopened.",
		KeyAdminCycleNotice: "Khatm \"%s\" (%s) completed cycle %d.",
		KeyCallbackAccepted: "Pages reserved!",
	},
	language.Arabic: {
		KeyWelcome:          "أهلاً بك! أنشئ ختمة جماعية بالأمر /new <الاسم>، أو افتح رابط مشاركة للانضمام.",
		KeyHelp:             "/new <الاسم> - بدء ختمة جماعية جديدة\n/join <المعرف> - الانضمام إلى ختمة وحجز صفحات\n/status <المعرف> - عرض التقدم\n/help - عرض هذه الرسالة",
		KeyHelpAdmin:        "\n\nالمشرف:\n/audit - فحص جميع الختمات الآن\n/reopen <المعرف> - إعادة فتح ختمة مكتملة",
		KeyUsageNew:         "الاستخدام: /new <الاسم>",
		KeyUsageJoin:        "الاستخدام: /join <المعرف>",
		KeyUsageStatus:      "الاستخدام: /status <المعرف>",
		KeyUsageReopen:      "الاستخدام: /reopen <المعرف>",
		KeyCreated:          "تم إنشاء ختمة \"%s\".\nشارك هذا الرابط ليتمكن الآخرون من الانضمام:\n%s",
		KeyStatus:           "%s (الختمة %d)\nالتقدم: %d%%\nالصفحات المتبقية: %d\nالختمات المكتملة: %d",
		KeyChoosePages:      "كم صفحة ستقرأ؟",
		KeyPagesButton:      "%d صفحات",
		KeyAssigned:         "صفحاتك في %s (الختمة %d): %d - %d",
		KeyAssignedTrunc:    "لم يتبق في هذه الختمة سوى %d صفحات.",
		KeyCycleCompleted:   "بهذا تكتمل الختمة! تبدأ ختمة جديدة الآن.",
		KeyCycleClosed:      "بهذا تكتمل الختمة! ستبقى مغلقة حتى يعيد المشرف فتحها.",
		KeyEstimatedTime:    "الوقت المتوقع: %d دقيقة",
		KeyReadButton:       "اقرأ الصفحات",
		KeyPageHeader:       "صفحة %d - %s",
		KeyNotFound:         "الختمة غير موجودة. تحقق من الرابط وحاول مرة أخرى.",
		KeyLocked:           "هذه الختمة مكتملة وبانتظار إعادة فتحها.",
		KeyBusy:             "ينضم الكثيرون الآن. يرجى المحاولة مرة أخرى.",
		KeyGenericError:     "حدث خطأ ما. يرجى المحاولة لاحقاً.",
		KeyInvalidName:      "يرجى إعطاء الختمة اسماً.",
		KeyInvalidPages:     "يرجى اختيار صفحة واحدة على الأقل.",
		KeyContentError:     "تعذر تحميل الصفحات الآن. يرجى المحاولة مرة أخرى.",
		KeyUnauthorized:     "لا تملك صلاحية تنفيذ هذا الأمر.",
		KeyAuditDone:        "انتهى الفحص: تم فحص %d ختمة، منها %d خارج النطاق (تُصلح عند الحجز التالي).",
		KeyReopened:         "تمت إعادة فتح الختمة %s.",
		KeyAdminCycleNotice: "أكملت ختمة \"%s\" (%s) الدورة %d.",
		KeyCallbackAccepted: "تم حجز الصفحات!",
	},
}

var (
	supported = []language.Tag{language.English, language.Arabic}
	matcher   = language.NewMatcher(supported)
)

func init() {
	for tag, messages := range catalogs {
		for key, value := range messages {
			if err := message.SetString(tag, key, value); err != nil {
				panic(err)
			}
		}
	}
}

// Printer returns a message printer for a client language code such as the
// one Telegram reports; unknown or empty codes fall back to English.
func Printer(languageCode string) *message.Printer {
	return message.NewPrinter(Match(languageCode))
}

// Match picks the supported language closest to languageCode.
func Match(languageCode string) language.Tag {
	if languageCode == "" {
		return language.English
	}
	tag, err := language.Parse(languageCode)
	if err != nil {
		return language.English
	}
	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return language.English
	}
	return supported[index]
}

// Keys lists the message keys of a language, sorted.
func Keys(tag language.Tag) []string {
	keys := make([]string, 0, len(catalogs[tag]))
	for key := range catalogs[tag] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
