package validation

import (
	"strings"
	"unicode"
)

// StripUnprintable removes non-printable characters from imported field text,
// keeping common whitespace. Statement exports occasionally carry control
// bytes that would otherwise end up inside fingerprinted details strings.
func StripUnprintable(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			return r
		}
		return -1
	}, s)
}

// SanitizeForFormulaInjection prepends a single quote when a field starts
// with a spreadsheet formula character, so re-exported data is treated as
// text by spreadsheet software.
func SanitizeForFormulaInjection(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '=', '+', '@', '\t', '\r':
			return "'" + s
		}
	}
	return s
}
