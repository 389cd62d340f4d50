package filenameops

import (
	"regexp"

	"github.com/agnivade/levenshtein"
)

var filenameExtensionRegexp *regexp.Regexp = regexp.MustCompile(`(\.([\w\-+\[\]()]{1,8})){1,2}$`)

func GetBaseFilename(filename string) string {
	return filenameExtensionRegexp.ReplaceAllString(filename, "")
}

// ClosestMatch returns the candidate whose base name has the smallest edit distance to name's,
// along with the similarity between 0 and 1. ok is false without candidates.
func ClosestMatch(name string, candidates []string) (match string, similarity float32, ok bool) {
	base := GetBaseFilename(name)

	bestDistance := -1
	for _, candidate := range candidates {
		distance := levenshtein.ComputeDistance(base, GetBaseFilename(candidate))
		if bestDistance < 0 || distance < bestDistance {
			bestDistance = distance
			match = candidate
		}
	}
	if bestDistance < 0 {
		return "", 0, false
	}

	longest := max(len(base), len(GetBaseFilename(match)))
	if longest == 0 {
		return match, 1, true
	}
	return match, 1 - float32(bestDistance)/float32(longest), true
}
