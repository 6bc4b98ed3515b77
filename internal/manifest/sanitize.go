package manifest

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTitleBytes bounds the sanitized title so that name plus extension fits
// common filesystem limits.
const MaxTitleBytes = 200

// DefaultTitle replaces titles that sanitize to nothing.
const DefaultTitle = "video"

const illegalChars = `\/:*?"<>|%`

var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// StripAnnotation drops a trailing "| description" segment from a title.
func StripAnnotation(title string) string {
	if i := strings.Index(title, "|"); i >= 0 {
		title = title[:i]
	}
	return strings.TrimSpace(title)
}

// SanitizeTitle turns a display title into a filesystem-safe base name.
// Letters outside ASCII are kept. Applying it twice gives the same result.
func SanitizeTitle(title string) string {
	title = StripAnnotation(title)

	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		switch {
		case r == utf8.RuneError:
		case unicode.IsControl(r), unicode.In(r, unicode.Cf):
		case strings.ContainsRune(illegalChars, r):
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	name = truncate(name, MaxTitleBytes)
	name = strings.TrimLeft(strings.TrimRight(name, " ."), " ")

	if name == "" {
		return DefaultTitle
	}
	if _, ok := reservedNames[strings.ToUpper(name)]; ok {
		name += "_"
	}
	return name
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
