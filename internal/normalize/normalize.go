// Package normalize derives dedup keys from entity display names.
//
// Department names arrive from the row store with inconsistent spacing
// and abbreviation periods ("สำนักปลัด", "สำนักปลัด ", "สำนักปลัด.") that
// all denote the same department. The key strips exactly that noise and
// nothing else, so byte-different names with equal keys are merge
// candidates.
package normalize

import (
	"strings"
	"unicode"
)

// Key maps a display name to its dedup key: lowercase, with all Unicode
// whitespace and all '.' characters removed. Idempotent.
func Key(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return strings.ToLower(stripped)
}
