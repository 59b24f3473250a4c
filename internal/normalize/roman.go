package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxNumeral bounds numeral conversion. Values at or above 4000 have no
// standard Roman form and would only produce nonsense variants.
const MaxNumeral = 3999

// maxArabicDigits bounds digit tokens considered for conversion.
const maxArabicDigits = 4

var romanPattern = regexp.MustCompile(`^[ivxlcdm]+$`)

var romanValues = map[byte]int{
	'i': 1, 'v': 5, 'x': 10, 'l': 50, 'c': 100, 'd': 500, 'm': 1000,
}

var romanTable = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// IsRoman reports whether s is a well-formed lowercase Roman numeral.
func IsRoman(s string) bool {
	_, ok := RomanToArabic(s)
	return ok
}

// RomanToArabic converts a lowercase Roman numeral. Only canonical forms
// are accepted, so "iiii" and "vx" are rejected.
func RomanToArabic(s string) (int, bool) {
	s = strings.ToLower(s)
	if !romanPattern.MatchString(s) {
		return 0, false
	}

	total := 0
	for i := 0; i < len(s); i++ {
		v := romanValues[s[i]]
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	if total < 1 || total > MaxNumeral {
		return 0, false
	}

	canonical, _ := ArabicToRoman(total)
	if canonical != s {
		return 0, false
	}
	return total, true
}

// ArabicToRoman converts 1..MaxNumeral to a lowercase Roman numeral.
func ArabicToRoman(n int) (string, bool) {
	if n < 1 || n > MaxNumeral {
		return "", false
	}

	var sb strings.Builder
	for _, r := range romanTable {
		for n >= r.value {
			sb.WriteString(r.symbol)
			n -= r.value
		}
	}
	return sb.String(), true
}

// ParseArabic parses a bounded all-digit token.
func ParseArabic(s string) (int, bool) {
	if s == "" || len(s) > maxArabicDigits {
		return 0, false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > MaxNumeral {
		return 0, false
	}
	return n, true
}

// NumeralVariant returns the other numeral form of a token: Arabic for a
// Roman numeral and Roman for digits. ok is false when the token is not
// a numeral in range.
func NumeralVariant(token string) (string, bool) {
	if n, ok := ParseArabic(token); ok {
		return ArabicToRoman(n)
	}
	if n, ok := RomanToArabic(token); ok {
		return strconv.Itoa(n), true
	}
	return "", false
}
