// Package normalize canonicalizes free-text organization names for comparison.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// genericWords are removed by substring. Order matters: "medical center"
// must go before "center" or a stray "medical" would remain.
var genericWords = []string{"hospital", "medical center", "center", "clinic"}

// Name lowercases s, drops everything but letters, digits and spaces, strips
// generic organizational words and trims whitespace.
//
// Name is idempotent: Name(Name(s)) == Name(s).
func Name(s string) string {
	// A removal can splice two halves into another generic word
	// ("hospcenterital" -> "hospital"), so run to a fixed point. After the
	// first pass only the word removals can change the string and each one
	// shrinks it, so len(cur)+1 further passes always reach the fixed point.
	cur := pass(s)
	for range len(cur) + 1 {
		next := pass(cur)
		if next == cur {
			break
		}
		cur = next
	}
	return cur
}

func pass(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToLower(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		default:
			return -1
		}
	}, s)
	for _, w := range genericWords {
		s = strings.ReplaceAll(s, w, "")
	}
	return strings.Join(strings.Fields(s), " ")
}
