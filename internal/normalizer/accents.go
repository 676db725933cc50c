package normalizer

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// FoldCase lowercases s with Turkish rules so that I/ı and İ/i stay distinct
// letters. Casers are not safe for concurrent use, so one is built per call.
func FoldCase(s string) string {
	return cases.Lower(language.Turkish).String(norm.NFC.String(s))
}

// TitleCase renders a folded name for display ("kadıköy" -> "Kadıköy").
func TitleCase(s string) string {
	return cases.Title(language.Turkish).String(s)
}

// ASCIIFold maps s to a lowercase ASCII key. Distinct Turkish letters collapse
// here (ı and i both become i), so the key is only used for lookups, never
// as output text.
func ASCIIFold(s string) string {
	return strings.ToLower(unidecode.Unidecode(FoldCase(s)))
}

// StripDiacritics removes combining marks while keeping base letters.
func StripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	out, _, _ := transform.String(t, s)
	return out
}

func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

// Key builds the lookup key used across the resolver for place names:
// ASCII folded with collapsed whitespace.
func Key(s string) string {
	return strings.Join(strings.Fields(ASCIIFold(s)), " ")
}
