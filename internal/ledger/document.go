package ledger

import "strings"

var (
	nationalIDWeights1 = []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	nationalIDWeights2 = []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	orgIDWeights1      = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	orgIDWeights2      = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// NormalizeDocument strips every non-digit character.
func NormalizeDocument(doc string) string {
	var b strings.Builder
	b.Grow(len(doc))
	for _, r := range doc {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateDocument normalizes doc and checks it as an 11-digit national id or a 14-digit
// organization id. It returns the normalized form.
func ValidateDocument(doc string) (string, error) {
	digits := NormalizeDocument(doc)
	var ok bool
	switch len(digits) {
	case 11:
		ok = checkDigits(digits, nationalIDWeights1, nationalIDWeights2)
	case 14:
		ok = checkDigits(digits, orgIDWeights1, orgIDWeights2)
	}
	if !ok {
		return "", ErrInvalidDocument
	}
	return digits, nil
}

// checkDigits verifies the two trailing check digits of digits. len(w2) == len(w1)+1 and
// len(digits) == len(w1)+2.
func checkDigits(digits string, w1, w2 []int) bool {
	if strings.Count(digits, digits[:1]) == len(digits) {
		return false
	}
	d := make([]int, len(digits))
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}
	return checkDigit(d, w1) == d[len(w1)] && checkDigit(d, w2) == d[len(w2)]
}

func checkDigit(d, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += d[i] * w
	}
	rem := sum % 11
	if rem < 2 {
		return 0
	}
	return 11 - rem
}
