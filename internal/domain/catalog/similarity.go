package catalog

import (
	"strings"
	"unicode"
)

// SimilarityFunc decides whether two already-normalized names refer to the same
// model. The matching policy is pluggable so the merge algorithm never needs to
// change when the heuristic does.
type SimilarityFunc func(a, b string) bool

// maxNameEditDistance is the Levenshtein threshold for treating two normalized
// names as variants of the same model. 2 absorbs version punctuation drift
// ("flux1pro" vs "flux1 pro") without collapsing genuinely distinct models.
const maxNameEditDistance = 2

// NormalizeName lowercases a name and strips punctuation and whitespace so
// "FLUX.1 [pro]" and "flux.1 pro" compare equal.
func NormalizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DefaultSimilarity matches normalized names by containment or by edit distance
// within maxNameEditDistance.
func DefaultSimilarity(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if a == b {
		return true
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	return levenshtein(a, b) <= maxNameEditDistance
}

// levenshtein computes the edit distance between two strings using a two-row
// dynamic programming table.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
