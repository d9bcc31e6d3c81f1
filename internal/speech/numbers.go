package speech

import (
	"strconv"
	"strings"
)

var smallNumbers = [...]string{
	"zero", "one", "two", "three", "four", "five", "six", "seven", "eight", "nine",
	"ten", "eleven", "twelve", "thirteen", "fourteen", "fifteen", "sixteen",
	"seventeen", "eighteen", "nineteen",
}

var tensNumbers = [...]string{
	"", "", "twenty", "thirty", "forty", "fifty", "sixty", "seventy", "eighty", "ninety",
}

var scaleNumbers = [...]string{
	"", "thousand", "million", "billion", "trillion", "quadrillion", "quintillion",
}

// maxCardinalDigits is the longest run read as a single number. Longer runs
// are read digit by digit.
const maxCardinalDigits = 18

// ExpandNumbers replaces every maximal run of ASCII digits with words.
// Four-digit runs are read as years, everything else as a cardinal.
func ExpandNumbers(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	i := 0
	for i < len(text) {
		if !isDigit(text[i]) {
			b.WriteByte(text[i])
			i++
			continue
		}
		j := i
		for j < len(text) && isDigit(text[j]) {
			j++
		}
		b.WriteString(numberWords(text[i:j]))
		i = j
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func numberWords(digits string) string {
	if len(digits) == 4 {
		return YearWords(digits)
	}
	if len(digits) > maxCardinalDigits {
		words := make([]string, len(digits))
		for i := 0; i < len(digits); i++ {
			words[i] = smallNumbers[digits[i]-'0']
		}
		return strings.Join(words, " ")
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return digits
	}
	return Cardinal(n)
}

// Cardinal spells n in English: 1725 -> "one thousand seven hundred twenty-five".
func Cardinal(n uint64) string {
	if n == 0 {
		return smallNumbers[0]
	}

	var groups []string
	for scale := 0; n > 0; scale++ {
		chunk := int(n % 1000)
		n /= 1000
		if chunk == 0 {
			continue
		}
		words := underThousand(chunk)
		if scaleNumbers[scale] != "" {
			words += " " + scaleNumbers[scale]
		}
		groups = append(groups, words)
	}

	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return strings.Join(groups, " ")
}

func underThousand(n int) string {
	hundreds, rest := n/100, n%100
	switch {
	case hundreds == 0:
		return underHundred(rest)
	case rest == 0:
		return smallNumbers[hundreds] + " hundred"
	default:
		return smallNumbers[hundreds] + " hundred " + underHundred(rest)
	}
}

func underHundred(n int) string {
	if n < 20 {
		return smallNumbers[n]
	}
	if n%10 == 0 {
		return tensNumbers[n/10]
	}
	return tensNumbers[n/10] + "-" + smallNumbers[n%10]
}

// YearWords reads a four-digit run the way years are spoken:
//
//	1725 -> "seventeen twenty-five"
//	1900 -> "nineteen hundred"
//	1905 -> "nineteen oh five"
//	2000 -> "two thousand"
//	2005 -> "two thousand five"
//	0042 -> "forty-two"
func YearWords(digits string) string {
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return digits
	}
	if n < 1000 {
		return Cardinal(uint64(n))
	}

	hi, lo := n/100, n%100
	switch {
	case hi%10 == 0 && lo < 10:
		return Cardinal(uint64(n))
	case lo == 0:
		return underHundred(hi) + " hundred"
	case lo < 10:
		return underHundred(hi) + " oh " + smallNumbers[lo]
	default:
		return underHundred(hi) + " " + underHundred(lo)
	}
}
