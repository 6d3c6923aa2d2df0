package fingerprint

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// DateFormat identifies the layout of the date column in a statement export.
// The importer selects the format explicitly; this package never guesses.
type DateFormat string

const (
	FormatDMYSlash DateFormat = "DD/MM/YYYY"
	FormatMDYSlash DateFormat = "MM/DD/YYYY"
	FormatYMDDash  DateFormat = "YYYY-MM-DD"
	FormatDMYDash  DateFormat = "DD-MM-YYYY"
	FormatYMDSlash DateFormat = "YYYY/MM/DD"
	FormatDMYDot   DateFormat = "DD.MM.YYYY"
)

var dateFormatPatterns = map[DateFormat]*regexp.Regexp{
	FormatDMYSlash: regexp.MustCompile(`^(?P<day>\d{2})/(?P<month>\d{2})/(?P<year>\d{4})$`),
	FormatMDYSlash: regexp.MustCompile(`^(?P<month>\d{2})/(?P<day>\d{2})/(?P<year>\d{4})$`),
	FormatYMDDash:  regexp.MustCompile(`^(?P<year>\d{4})-(?P<month>\d{2})-(?P<day>\d{2})$`),
	FormatDMYDash:  regexp.MustCompile(`^(?P<day>\d{2})-(?P<month>\d{2})-(?P<year>\d{4})$`),
	FormatYMDSlash: regexp.MustCompile(`^(?P<year>\d{4})/(?P<month>\d{2})/(?P<day>\d{2})$`),
	FormatDMYDot:   regexp.MustCompile(`^(?P<day>\d{2})\.(?P<month>\d{2})\.(?P<year>\d{4})$`),
}

// ParseDateFormat validates a user-supplied format name.
func ParseDateFormat(s string) (DateFormat, error) {
	f := DateFormat(s)
	if _, ok := dateFormatPatterns[f]; !ok {
		return "", fmt.Errorf("unknown date format %q", s)
	}
	return f, nil
}

// NormalizedDate is a plain calendar date. It carries no time of day and no
// timezone; it can only be produced by a successful NormalizeDate call.
type NormalizedDate struct {
	Year  int
	Month time.Month
	Day   int
}

// ISO renders the canonical YYYY-MM-DD form. Operations store this string,
// and it is the date representation the fingerprint hashes.
func (d NormalizedDate) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d NormalizedDate) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// DateFormatMismatchError is returned when the input string does not
// structurally match the selected format.
type DateFormatMismatchError struct {
	Input  string
	Format DateFormat
}

func (e *DateFormatMismatchError) Error() string {
	return fmt.Sprintf("Date %q does not respect the %q date format. Please double-check the date format field.", e.Input, string(e.Format))
}

// InvalidCalendarDateError is returned when the string matched the format but
// the components do not form a real date (day 31 in a 30-day month, etc).
type InvalidCalendarDateError struct {
	Input string
}

func (e *InvalidCalendarDateError) Error() string {
	return fmt.Sprintf("Could not parse date %q. It does not seem to be a valid date. Please check the date format option.", e.Input)
}

// NormalizeDate parses a date string against an explicitly selected format.
func NormalizeDate(text string, format DateFormat) (NormalizedDate, error) {
	re, ok := dateFormatPatterns[format]
	if !ok {
		return NormalizedDate{}, fmt.Errorf("unknown date format %q", format)
	}

	m := re.FindStringSubmatch(text)
	if m == nil {
		return NormalizedDate{}, &DateFormatMismatchError{Input: text, Format: format}
	}

	var year, month, day int
	for i, name := range re.SubexpNames() {
		switch name {
		case "year":
			year, _ = strconv.Atoi(m[i])
		case "month":
			month, _ = strconv.Atoi(m[i])
		case "day":
			day, _ = strconv.Atoi(m[i])
		}
	}

	// time.Date normalizes out-of-range components (Feb 30 rolls into
	// March). A date that does not round-trip is rejected, never coerced.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return NormalizedDate{}, &InvalidCalendarDateError{Input: text}
	}

	return NormalizedDate{Year: year, Month: time.Month(month), Day: day}, nil
}
