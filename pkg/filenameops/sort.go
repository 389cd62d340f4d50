package filenameops

import (
	"cmp"
	"regexp"
	"strings"
)

var numbersRegexp *regexp.Regexp = regexp.MustCompile(`\d+`)

// CompareNumberStrings orders names naturally, file2 before file10. Names are compared with their
// digits removed first, then number by number.
func CompareNumberStrings(a, b string) int {
	baseA := numbersRegexp.ReplaceAllString(a, "")
	baseB := numbersRegexp.ReplaceAllString(b, "")
	if c := strings.Compare(baseA, baseB); c != 0 {
		return c
	}

	numsA := numbersRegexp.FindAllString(a, -1)
	numsB := numbersRegexp.FindAllString(b, -1)
	for i := range min(len(numsA), len(numsB)) {
		if c := compareDigits(numsA[i], numsB[i]); c != 0 {
			return c
		}
	}
	return cmp.Compare(len(numsA), len(numsB))
}

// compareDigits compares decimal numbers of any length without parsing them.
func compareDigits(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
