package similarity

import (
	"math"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize strips diacritics, folds case, and collapses every run of
// non-alphanumeric runes into a single space.
func Normalize(s string) string {
	// Transformers and casers keep state, so each call builds its own.
	stripMarks := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(stripMarks, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	fields := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// Ratio is the indel similarity of a and b after normalisation:
// 2*LCS / (len(a)+len(b)), scaled to [0, 100] and rounded. Either side empty
// scores 0.
func Ratio(a, b string) int {
	return ratio([]rune(Normalize(a)), []rune(Normalize(b)))
}

// TokenSortRatio is Ratio over the sorted tokens of each side.
func TokenSortRatio(a, b string) int {
	return ratio([]rune(sortedTokens(a)), []rune(sortedTokens(b)))
}

func sortedTokens(s string) string {
	tokens := strings.Fields(Normalize(s))
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

func ratio(a, b []rune) int {
	total := len(a) + len(b)
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	lcs := longestCommonSubsequence(a, b)
	return int(math.Round(float64(200*lcs) / float64(total)))
}

func longestCommonSubsequence(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				curr[j] = prev[j-1] + 1
			case prev[j] >= curr[j-1]:
				curr[j] = prev[j]
			default:
				curr[j] = curr[j-1]
			}
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
