package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugify turns a title into a lower-case, hyphen separated URL segment
func Slugify(s string) string {
	var b strings.Builder
	dash := false // Last written rune was a dash
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimRight(b.String(), "-")
}

// CopySlug returns the n-th duplicate slug candidate: base-copy, base-copy-2, ...
func CopySlug(base string, n int) string {
	if n <= 1 {
		return base + "-copy"
	}
	return base + "-copy-" + strconv.Itoa(n)
}

// UniqueSlug returns the first candidate produced by next for which taken reports false
func UniqueSlug(next func(n int) string, taken func(slug string) (bool, error)) (string, error) {
	for n := 1; ; n++ {
		candidate := next(n)
		exists, err := taken(candidate)
		if err != nil {
			return "", err
		}
		if !exists {
			return candidate, nil
		}
	}
}
