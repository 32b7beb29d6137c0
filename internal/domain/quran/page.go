// internal/domain/quran/page.go
package quran

import (
	"context"
	"strconv"
	"strings"
)

// MushafPages is the page count of the Madani mushaf served by the content API.
const MushafPages = 604

// Verse is one ayah as returned by the content API.
type Verse struct {
	ID          int64
	Key         string // "2:255"
	TextUthmani string
	ChapterID   int
}

// Page is the content of one mushaf page.
type Page struct {
	Number     int
	Verses     []Verse
	SurahNames []string // in order of first appearance on the page
}

// Fetcher retrieves page content by absolute page number.
type Fetcher interface {
	FetchPage(ctx context.Context, pageNumber int) (*Page, error)
}

var surahNames = [...]string{
	"الفاتحة", "البقرة", "آل عمران", "النساء", "المائدة", "الأنعام", "الأعراف", "الأنفال", "التوبة", "يونس",
	"هود", "يوسف", "الرعد", "إبراهيم", "الحجر", "النحل", "الإسراء", "الكهف", "مريم", "طه",
	"الأنبياء", "الحج", "المؤمنون", "النور", "الفرقان", "الشعراء", "النمل", "القصص", "العنكبوت", "الروم",
	"لقمان", "السجدة", "الأحزاب", "سبأ", "فاطر", "يس", "الصافات", "ص", "الزمر", "غافر",
	"فصلت", "الشورى", "الزخرف", "الدخان", "الجاثية", "الأحقاف", "محمد", "الفتح", "الحجرات", "ق",
	"الذاريات", "الطور", "النجم", "القمر", "الرحمن", "الواقعة", "الحديد", "المجادلة", "الحشر", "الممتحنة",
	"الصف", "الجمعة", "المنافقون", "التغابن", "الطلاق", "التحريم", "الملك", "القلم", "الحاقة", "المعارج",
	"نوح", "الجن", "المزمل", "المدثر", "القيامة", "الإنسان", "المرسلات", "النبأ", "النازعات", "عبس",
	"التكوير", "الانفطار", "المطففين", "الانشقاق", "البروج", "الطارق", "الأعلى", "الغاشية", "الفجر", "البلد",
	"الشمس", "الليل", "الضحى", "الشرح", "التين", "العلق", "القدر", "البينة", "الزلزلة", "العاديات", "القارعة",
	"التكاثر", "العصر", "الهمزة", "الفيل", "قريش", "الماعون", "الكوثر", "الكافرون", "النصر", "المسد",
	"الإخلاص", "الفلق", "الناس",
}

// SurahName returns the Arabic name of a chapter, or "سورة N" when unknown.
func SurahName(chapterID int) string {
	if chapterID >= 1 && chapterID <= len(surahNames) {
		return surahNames[chapterID-1]
	}
	return "سورة " + strconv.Itoa(chapterID)
}

// SurahNamesOf returns the distinct chapter names of verses in order.
func SurahNamesOf(verses []Verse) []string {
	seen := make(map[int]bool)
	names := make([]string, 0, 2)
	for _, v := range verses {
		if seen[v.ChapterID] {
			continue
		}
		seen[v.ChapterID] = true
		names = append(names, SurahName(v.ChapterID))
	}
	return names
}

var arabicDigits = strings.NewReplacer(
	"0", "٠", "1", "١", "2", "٢", "3", "٣", "4", "٤",
	"5", "٥", "6", "٦", "7", "٧", "8", "٨", "9", "٩",
)

// ArabicNumerals rewrites ASCII digits as Arabic-Indic digits.
func ArabicNumerals(n int) string {
	return arabicDigits.Replace(strconv.Itoa(n))
}

// VerseNumber returns the ayah number part of a verse key.
func (v Verse) VerseNumber() int {
	_, after, ok := strings.Cut(v.Key, ":")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(after)
	return n
}
