// Package markup canonicalizes editor markup for equality checks.
//
// Two folds are provided. NormalizeForUndo is the loose fold used to decide
// whether an edit deserves a new undo snapshot. NormalizeForSave also drops
// attributes the editor adds for its own bookkeeping, so that selection or
// drag noise never looks like a change worth persisting.
package markup

import (
	"regexp"
	"strings"
)

const nbspEntity = "&nbsp;"

var (
	// editorAttr matches attributes the editor injects while editing (data-mce-*).
	editorAttr = regexp.MustCompile(`\s*data-mce-[^=\s]+="[^"]*"`)
	// styleAttr matches inline style attributes.
	styleAttr = regexp.MustCompile(`\s*style="[^"]*"`)
)

// NormalizeForUndo replaces non-breaking-space entities with plain spaces,
// collapses whitespace runs to a single space and trims the result.
func NormalizeForUndo(s string) string {
	return collapse(strings.ReplaceAll(s, nbspEntity, " "))
}

// NormalizeForSave strips editor-internal and inline style attributes, then
// applies the same folding as NormalizeForUndo.
func NormalizeForSave(s string) string {
	// Removing one attribute can splice its neighbours into a new match,
	// so strip until nothing changes.
	for {
		next := editorAttr.ReplaceAllString(s, "")
		next = styleAttr.ReplaceAllString(next, "")
		next = strings.ReplaceAll(next, nbspEntity, " ")

		if next == s {
			break
		}

		s = next
	}

	return collapse(s)
}

// Equal reports whether a and b are the same document under the undo fold.
func Equal(a, b string) bool {
	return NormalizeForUndo(a) == NormalizeForUndo(b)
}

// collapse folds every unicode whitespace run (including U+00A0) into one
// space and trims both ends.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
