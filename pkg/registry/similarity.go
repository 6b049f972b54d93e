package registry

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Similarity scores two already-normalized names from 0 to 1.
//
// It is a weighted ratio: the best of a plain indel ratio and
// token-sort / token-set ratios (so word order does not matter), with a
// partial ratio taking over when one string is much longer than the other.
// Empty input scores 0.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	lenRatio := float64(max(la, lb)) / float64(min(la, lb))

	const unbaseScale = 0.95
	best := ratio(a, b)

	if lenRatio < 1.5 {
		best = max(best,
			tokenSortRatio(a, b)*unbaseScale,
			tokenSetRatio(a, b)*unbaseScale)
		return best
	}

	partialScale := 0.9
	if lenRatio > 8 {
		partialScale = 0.6
	}
	return max(best,
		partialRatio(a, b)*partialScale,
		partialRatio(sortedTokens(a), sortedTokens(b))*unbaseScale*partialScale,
		tokenSetRatio(a, b)*unbaseScale*partialScale)
}

// ratio is the indel similarity 2*LCS/(len(a)+len(b)): one minus the
// insertions and deletions needed to turn a into b over the combined length.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}
	return 2 * float64(lcs(ra, rb)) / float64(len(ra)+len(rb))
}

// lcs is the length of the longest common subsequence of a and b.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := range a {
		for j := range b {
			switch {
			case a[i] == b[j]:
				cur[j+1] = prev[j] + 1
			case prev[j+1] >= cur[j]:
				cur[j+1] = prev[j+1]
			default:
				cur[j+1] = cur[j]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// partialRatio is the best ratio of the shorter string against any
// equal-length window of the longer one.
func partialRatio(a, b string) float64 {
	short, long := []rune(a), []rune(b)
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) == 0 {
		return 0
	}
	s := string(short)
	best := 0.0
	for i := 0; i+len(short) <= len(long); i++ {
		r := ratio(s, string(long[i:i+len(short)]))
		if r > best {
			best = r
			if best == 1 {
				break
			}
		}
	}
	return best
}

func sortedTokens(s string) string {
	f := strings.Fields(s)
	slices.Sort(f)
	return strings.Join(f, " ")
}

func tokenSortRatio(a, b string) float64 {
	return ratio(sortedTokens(a), sortedTokens(b))
}

// tokenSetRatio compares the shared tokens against each side's shared plus
// leftover tokens, so "ucsf benioff" vs "benioff ucsf childrens" scores on
// what they have in common.
func tokenSetRatio(a, b string) float64 {
	setA, setB := tokenSet(a), tokenSet(b)
	var inter, onlyA, onlyB []string
	for t := range setA {
		if setB[t] {
			inter = append(inter, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for t := range setB {
		if !setA[t] {
			onlyB = append(onlyB, t)
		}
	}
	slices.Sort(inter)
	slices.Sort(onlyA)
	slices.Sort(onlyB)

	t0 := strings.Join(inter, " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(onlyA, " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(onlyB, " "))
	return max(ratio(t0, t1), ratio(t0, t2), ratio(t1, t2))
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range strings.Fields(s) {
		set[t] = true
	}
	return set
}
