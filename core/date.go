package core

import (
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

// Date is a calendar day (UTC midnight) read from and written to JSON as YYYY-MM-DD.
// RFC 3339 timestamps are accepted on input and truncated to their UTC day.
type Date struct {
	time.Time
}

func NewDate(t time.Time) Date {
	return Date{Day(t)}
}

// ParseDate parses a YYYY-MM-DD day.
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	if len(s) == len(DateLayout) {
		parsed, err := ParseDate(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*d = NewDate(t)
	return nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}
