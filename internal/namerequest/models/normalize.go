package models

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// asciiFold decomposes, strips combining marks and drops whatever is still
// outside the ASCII range.
func asciiFold() transform.Transformer {
	return transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
		norm.NFC,
	)
}

// ToASCII folds text to plain ASCII, e.g. "café" becomes "cafe".
// Folding is idempotent.
func ToASCII(s string) string {
	if s == "" {
		return s
	}
	out, _, err := transform.String(asciiFold(), s)
	if err != nil {
		// transformers above never fail on valid strings; keep the ASCII bytes
		var b strings.Builder
		for _, r := range s {
			if r <= unicode.MaxASCII {
				b.WriteRune(r)
			}
		}
		return b.String()
	}
	return out
}

// NormalizeName returns the stored form of a name choice: ASCII and uppercase.
func NormalizeName(s string) string {
	return strings.ToUpper(ToASCII(s))
}
