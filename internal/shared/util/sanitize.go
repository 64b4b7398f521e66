package util

import (
	"path"
	"strings"
	"unicode/utf8"
)

// SanitizeFileName reduces an uploaded file name to a safe base name made of
// ASCII letters, digits, '.', '_' and '-'. Other runs collapse to '_'. The
// result never starts with a dot and falls back to "upload" when empty.
func SanitizeFileName(name string) string {
	base := BaseName(name)

	var b strings.Builder
	b.Grow(len(base))
	lastUnderscore := false
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}

	s := strings.Trim(b.String(), "._")
	if s == "" {
		return "upload"
	}
	return s
}

// BaseName returns the last element of a client-supplied path, accepting
// both slash styles.
func BaseName(name string) string {
	s := strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	if s == "" {
		return ""
	}
	s = path.Base(s)
	if s == "." || s == "/" || s == ".." {
		return ""
	}
	return s
}

// TruncateRunes returns at most n runes of s.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n || utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
