package recipe

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the case-normalized form of s used for sorting by name and
// for substring search. Text is NFC-normalized first so composed and
// decomposed spellings of the same word compare equal.
//
// A Caser is stateful, so a fresh one is built per call.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	return cases.Fold().String(norm.NFC.String(s))
}

// ContainsFold reports whether needle occurs in haystack ignoring case.
// needle must already be folded.
func ContainsFold(haystack, foldedNeedle string) bool {
	if foldedNeedle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), foldedNeedle)
}
