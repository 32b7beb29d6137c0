package khatm

import (
	"crypto/rand"
	"math/big"
	"strings"
	"unicode"
)

const (
	slugSuffixLen  = 6
	slugAlphabet   = "0123456789abcdefghijklmnopqrstuvwxyz"
	slugFallback   = "khatm"
	arabicBlockLow = '\u0600'
	arabicBlockHi  = '\u06FF'
)

// GenerateSlug builds a shareable identifier from a display name: whitespace
// runs become '-', characters outside ASCII letters, digits, '-' and the
// Arabic block are dropped, and a random base36 suffix is appended.
func GenerateSlug(name string) (string, error) {
	suffix, err := randomSuffix(slugSuffixLen)
	if err != nil {
		return "", err
	}
	base := SanitizeSlugName(name)
	if base == "" {
		base = slugFallback
	}
	return base + "-" + suffix, nil
}

// SanitizeSlugName returns the name part of a slug.
func SanitizeSlugName(name string) string {
	var b strings.Builder
	inSpace := false
	for _, r := range strings.TrimSpace(name) {
		if unicode.IsSpace(r) {
			if !inSpace {
				b.WriteRune('-')
			}
			inSpace = true
			continue
		}
		inSpace = false
		if isSlugRune(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isSlugRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
		return true
	case r >= arabicBlockLow && r <= arabicBlockHi:
		return true
	}
	return false
}

func randomSuffix(n int) (string, error) {
	limit := big.NewInt(int64(len(slugAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = slugAlphabet[idx.Int64()]
	}
	return string(out), nil
}
