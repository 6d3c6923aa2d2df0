// Package fingerprint normalizes loosely-formatted transaction fields and
// derives the content hash used as the duplicate-detection key. Everything in
// this package is pure: no I/O, no shared state, safe to call from any
// goroutine.
package fingerprint

import (
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
)

const fieldSeparator = "_"

// Compute derives the duplicate-detection digest for an operation. Field
// order is fixed: op type, account slug, type display, details, operation
// date, amount in cents. Both the import path (hashing a fresh row before a
// store lookup) and the resync path (re-hashing an edited record) call this
// one function, which is what keeps the two paths byte-identical.
//
// Each field is prefixed with its byte length before the separator is
// appended, so a details string that itself contains the separator cannot
// collapse two distinct rows onto the same pre-hash string.
func Compute(opType, accountSlug, typeDisplay, details, operationDate string, amountInCents int64) string {
	fields := [...]string{
		opType,
		accountSlug,
		typeDisplay,
		details,
		operationDate,
		strconv.FormatInt(amountInCents, 10),
	}

	var b strings.Builder
	for i, f := range fields {
		if i > 0 {
			b.WriteString(fieldSeparator)
		}
		b.WriteString(strconv.Itoa(len(f)))
		b.WriteByte(':')
		b.WriteString(f)
	}

	sum := sha512.Sum512([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
