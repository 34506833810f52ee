package livequery

import (
	"strings"
	"unicode/utf8"

	"github.com/roach88/larder/internal/recipe"
)

// Highlight returns the byte range [start, end) of the first case-insensitive
// occurrence of filter in text, for emphasizing search hits when rendering a
// name or description. ok is false when filter is blank or absent from text.
//
// Matching uses the same folding as search, so text[start:end] may differ in
// length from filter (e.g. "ß" matches "ss").
func Highlight(text, filter string) (start, end int, ok bool) {
	if strings.TrimSpace(filter) == "" {
		return 0, 0, false
	}
	needle := recipe.Fold(filter)
	if !strings.Contains(recipe.Fold(text), needle) {
		return 0, 0, false
	}

	for i := 0; i < len(text); {
		for j := i; j < len(text); {
			_, size := utf8.DecodeRuneInString(text[j:])
			j += size
			folded := recipe.Fold(text[i:j])
			if folded == needle {
				return i, j, true
			}
			if !strings.HasPrefix(needle, folded) {
				break
			}
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	return 0, 0, false
}
