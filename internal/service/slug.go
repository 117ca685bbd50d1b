package service

import (
	"strings"
	"unicode"
)

// slugify lowers a channel name into a URL-safe slug: letters and digits
// kept, runs of anything else collapsed to single dashes.
func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "channel"
	}
	return slug
}
