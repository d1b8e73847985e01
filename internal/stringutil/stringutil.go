// Package stringutil holds the name mangling used to derive sql table and
// column names from Go identifiers.
package stringutil

import (
	"strings"
	"unicode"
)

// PascalToSnake turns an exported Go identifier into the snake_case form the
// schema uses. Runs of capitals stay together, so ExternalID becomes
// external_id and APIKey becomes api_key.
func PascalToSnake(s string) string {
	var b strings.Builder

	rs := []rune(s)

	for i, r := range rs {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}

		if i > 0 && (unicode.IsLower(rs[i-1]) || (i+1 < len(rs) && unicode.IsLower(rs[i+1]))) {
			b.WriteByte('_')
		}

		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}
