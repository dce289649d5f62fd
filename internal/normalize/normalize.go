// SPDX-License-Identifier: MIT

// Package normalize cleans free-text values before they are sent to the
// gateway as query parameters. Clip titles in particular arrive from
// newsroom systems with mixed Unicode composition and invisible
// characters that make database-side matching fail.
package normalize

import (
	"strings"
	"unicode"

	unorm "golang.org/x/text/unicode/norm"
)

// Term normalizes a free-text search term:
// - applies Unicode NFC so composed and decomposed forms compare equal
// - trims Unicode whitespace and invisible edge characters
// Case and interior spacing are preserved; Quantel title searches carry
// their own wildcard semantics.
func Term(s string) string {
	s = unorm.NFC.String(s)
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) ||
			r == '​' || // Zero Width Space
			r == '‌' || // Zero Width Non-Joiner
			r == '‍' || // Zero Width Joiner
			r == '\uFEFF' // Zero Width Non-Breaking Space (BOM)
	})
}
