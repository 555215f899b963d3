package search

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentClasses expands a base letter to every accented form stored missions
// are written with
var accentClasses = map[rune]string{
	'a': "[aàâäáã]",
	'c': "[cç]",
	'e': "[eéèêë]",
	'i': "[iîïí]",
	'n': "[nñ]",
	'o': "[oôöóò]",
	'u': "[uùûüú]",
	'y': "[yÿ]",
}

// fold lower-cases s and strips its combining marks
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// accentInsensitive turns free text into a Pattern matching it regardless of
// case and accents: "Été" and "ete" both become "[eéèêë]t[eéèêë]"
func accentInsensitive(s string) Pattern {
	quoted := regexp.QuoteMeta(fold(s))
	var b strings.Builder
	b.Grow(len(quoted) * 2)
	for _, r := range quoted {
		if class, ok := accentClasses[r]; ok {
			b.WriteString(class)
			continue
		}
		b.WriteRune(r)
	}
	return Pattern(b.String())
}

// ContainsPattern matches s anywhere in the field
func ContainsPattern(s string) Pattern {
	return accentInsensitive(s)
}

// PrefixPattern matches fields starting with s
func PrefixPattern(s string) Pattern {
	return "^" + accentInsensitive(s)
}
