package ledger

import (
	"fmt"
	"time"
)

// dateFormats lists the layouts accepted when parsing dates from broker
// exports. Brokers are not consistent; Morgan Stanley alone uses three of
// these depending on the export screen.
var dateFormats = []string{
	"2006-01-02",
	"01/02/2006",
	"01-02-2006",
	"2006/01/02",
	"01/02/06",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// Date represents a calendar date with day resolution. Vesting and sale
// events carry no time component; all dates are normalized to midnight UTC
// so day arithmetic is exact.
type Date struct {
	time.Time
}

// NewDate parses a date string in any of the accepted broker formats.
func NewDate(value string) (Date, error) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, value); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("cannot parse date %q", value)
}

// MustDate parses a date and panics on failure. Use only in tests.
func MustDate(value string) Date {
	d, err := NewDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates a time to its calendar date in UTC.
func DateOf(t time.Time) Date {
	return Date{time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// Today returns the current calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// DaysUntil returns the number of whole days from d to other. Negative if
// other is earlier than d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Sub(d.Time).Hours() / 24)
}

// Equal reports whether two dates fall on the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Time.Equal(other.Time)
}

// String formats the date in ISO 8601 form.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes a date from any accepted format.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := NewDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
