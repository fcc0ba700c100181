package extract

import (
	"strings"
	"unicode/utf8"
)

// extractPlain decodes content as UTF-8, dropping invalid byte sequences.
func extractPlain(content []byte) string {
	if !utf8.Valid(content) {
		return strings.ToValidUTF8(string(content), "")
	}
	return string(content)
}
