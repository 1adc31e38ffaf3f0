package domain

import (
	"regexp"
	"strings"
)

// Quantity tokens such as "500ml" or "1kg" carry no identity information and
// are dropped before the remaining characters are reduced to [a-z0-9 ].
var (
	quantityToken = regexp.MustCompile(`\b\d+(ml|l|g|kg)\b`)
	nonKeyChars   = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// Normalize maps a raw display name to its canonical identity key. The
// function is pure, total, deterministic, and idempotent:
// Normalize(Normalize(x)) == Normalize(x). Two display names sharing a key are
// grouped and matched together; no stronger notion of "same product" is
// implied.
func Normalize(raw string) string {
	s := strings.ToLower(raw)
	s = quantityToken.ReplaceAllString(s, "")
	s = nonKeyChars.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
