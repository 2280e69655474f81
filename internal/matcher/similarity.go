package matcher

import (
	"math"
	"strings"
	"unicode"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

// indelOptions weighs a substitution as a deletion plus an insertion, which
// turns the distance into the basis of a normalized similarity ratio.
var indelOptions = levenshtein.Options{
	InsCost: 1,
	DelCost: 1,
	SubCost: 2,
	Matches: levenshtein.IdenticalRunes,
}

// ProcessName lower-cases s, replaces every rune that is not a letter, digit
// or underscore with a space and trims the result.
func ProcessName(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.TrimSpace(mapped)
}

// ratio is the normalized similarity of a and b in [0, 1].
func ratio(a, b []rune) float64 {
	total := len(a) + len(b)
	if total == 0 {
		return 0
	}
	dist := levenshtein.DistanceForStrings(a, b, indelOptions)
	return float64(total-dist) / float64(total)
}

// Ratio scores the whole of a against the whole of b on a 0-100 scale.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	return toScore(ratio([]rune(a), []rune(b)))
}

// PartialRatio scores the shorter string against the best matching window of
// the longer one on a 0-100 scale. Either string being empty scores 0.
func PartialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := []rune(a), []rune(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	best := 0.0
	for start := 0; start+len(shorter) <= len(longer); start++ {
		r := ratio(shorter, longer[start:start+len(shorter)])
		if r > 0.995 {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return toScore(best)
}

// toScore maps a [0, 1] ratio to an integer percentage, rounding half to even.
func toScore(r float64) int {
	return int(math.RoundToEven(r * 100))
}
