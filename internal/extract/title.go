package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const minTitleLen = 3

var (
	listingEdgeRe = regexp.MustCompile(`^[\s,;:|\-–\[\]]+|[\s,;:|\-–\[\]]+$`)
	// Digits, punctuation, symbols and the stray "i" OCR reads from rules.
	garbageTitleRe = regexp.MustCompile(`^[\d\s\p{P}\p{S}i]+$`)
	cellArtifactRe = regexp.MustCompile(`[|_]{2,}`)
	leadingDayRe   = regexp.MustCompile(`^\d{1,2}\s+`)
)

// foldText applies NFKC so ligatures and full-width digits from OCR compare
// like their ASCII forms.
func foldText(s string) string {
	return norm.NFKC.String(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isGarbageTitle(s string) bool {
	return s == "" || garbageTitleRe.MatchString(s)
}

// cleanListingTitle trims separators, collapses whitespace and drops any
// leading month names. It returns "" for garbage.
func cleanListingTitle(s string) string {
	s = collapseSpace(listingEdgeRe.ReplaceAllString(s, ""))

	words := strings.Fields(s)
	for len(words) > 0 && isMonthToken(words[0]) {
		words = words[1:]
	}
	s = strings.Join(words, " ")

	if isGarbageTitle(s) {
		return ""
	}
	return s
}

// cleanCellTitle strips runs of rule characters, surrounding punctuation and
// a leading day number left over from the cell header.
func cleanCellTitle(s string) string {
	s = collapseSpace(s)
	s = cellArtifactRe.ReplaceAllString(s, "")
	s = strings.Trim(s, ".,;:-_|")
	s = leadingDayRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	if isGarbageTitle(s) {
		return ""
	}
	return s
}

func acceptTitle(s string) bool {
	return utf8.RuneCountInString(s) >= minTitleLen && !isGarbageTitle(s)
}
