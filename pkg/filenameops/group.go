package filenameops

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// movie.mkv.001
var numberedSuffixRegexp *regexp.Regexp = regexp.MustCompile(`^(.+)\.(\d{3,4})$`)

// movie.part01.mkv
var partInfixRegexp *regexp.Regexp = regexp.MustCompile(`(?i)^(.+)\.part(\d{1,4})(\.[^.]+)$`)

// SplitPartName recognizes names of split parts and returns the name of the whole file
// together with the part number.
func SplitPartName(filename string) (group string, number int, ok bool) {
	if m := numberedSuffixRegexp.FindStringSubmatch(filename); m != nil {
		number, _ = strconv.Atoi(m[2])
		return m[1], number, true
	}
	if m := partInfixRegexp.FindStringSubmatch(filename); m != nil {
		number, _ = strconv.Atoi(m[2])
		return m[1] + m[3], number, true
	}
	return filename, 0, false
}

// GroupPartFilenames groups split parts by the name of the whole file, ordered by part number.
// Names not looking like parts form a group of their own.
func GroupPartFilenames(filenames []string) map[string][]string {
	groupedFiles := make(map[string][]string, 1)

	for _, filename := range filenames {
		groupName, _, _ := SplitPartName(filename)
		groupedFiles[groupName] = append(groupedFiles[groupName], filename)
	}

	SortGroupedFilenames(groupedFiles)
	return groupedFiles
}

func SortGroupedFilenames(groupedFiles map[string][]string) {
	for _, filenames := range groupedFiles {
		slices.SortFunc(filenames, comparePartFilenames)
	}
}

func comparePartFilenames(a, b string) int {
	_, numA, okA := SplitPartName(a)
	_, numB, okB := SplitPartName(b)
	if okA && okB && numA != numB {
		return numA - numB
	}
	return CompareNumberStrings(strings.ToLower(a), strings.ToLower(b))
}
