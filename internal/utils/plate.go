package utils

import (
	"strings"
	"unicode"
)

// NormalizePlate reduces a plate number to its canonical form: letters and
// digits only, uppercased. "123 abc 02" and "123ABC02" compare equal.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range plate {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}
