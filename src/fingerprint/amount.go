package fingerprint

import (
	"fmt"
	"regexp"
	"strconv"
)

var nonAmountChars = regexp.MustCompile(`[^0-9-]+`)

// MalformedAmountError is returned when an amount string does not reduce to a
// parseable number. Its message is shown to the end user as-is.
type MalformedAmountError struct {
	Input string
}

func (e *MalformedAmountError) Error() string {
	return fmt.Sprintf("Could not normalize amount %q. It does not seem to be a valid number.", e.Input)
}

// NormalizeAmount converts a free-text monetary string into an exact count of
// currency minor units (cents). Every character that is not a digit or a minus
// sign is stripped before parsing, so "1,234.56" becomes 123456 and "-12 €"
// becomes -12. Statement exports are expected to carry the minor unit as
// trailing digits; no locale-aware decimal handling is attempted.
func NormalizeAmount(text string) (int64, error) {
	stripped := nonAmountChars.ReplaceAllString(text, "")
	cents, err := strconv.ParseInt(stripped, 10, 64)
	if err != nil {
		return 0, &MalformedAmountError{Input: text}
	}
	return cents, nil
}
