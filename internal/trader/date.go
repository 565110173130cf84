package trader

import (
	"encoding/json"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date stored as "YYYY-MM-DD" in the state files.
// RFC3339 timestamps are still accepted on read.
type Date struct {
	time.Time
}

// NewDate truncates t to a UTC calendar date
func NewDate(t time.Time) Date {
	return Date{dateOnly(t)}
}

// MarshalJSON writes "YYYY-MM-DD" (null for the zero date)
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(dateLayout))
}

// UnmarshalJSON reads "YYYY-MM-DD" or an RFC3339 timestamp
func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		if t, err = time.Parse(time.RFC3339, s); err != nil {
			return fmt.Errorf("date %q: expected YYYY-MM-DD", s)
		}
	}
	*d = NewDate(t)
	return nil
}

// dateOnly truncates to a calendar date in UTC
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
