// Package quarter assigns timestamps to calendar quarters and accumulates
// per-quarter counters. All boundaries are computed in UTC as half-open
// intervals [start, nextStart) so a boundary instant lands in the later
// quarter, never both.
package quarter

import (
	"strconv"
	"strings"
	"time"
)

// Quarter identifies one calendar quarter of a target year, or None when a
// timestamp falls outside the year (or could not be parsed).
type Quarter int

const (
	None Quarter = iota
	Q1
	Q2
	Q3
	Q4
)

// String returns "Q1".."Q4", or "" for None.
func (q Quarter) String() string {
	switch q {
	case Q1:
		return "Q1"
	case Q2:
		return "Q2"
	case Q3:
		return "Q3"
	case Q4:
		return "Q4"
	default:
		return ""
	}
}

// All lists the four quarters in calendar order.
func All() []Quarter {
	return []Quarter{Q1, Q2, Q3, Q4}
}

// epochSecondsCutoff separates epoch-second values from epoch-millisecond
// values when parsing all-digit timestamps. Anything below it is treated as
// seconds; HubSpot timestamps are milliseconds and always exceed it.
const epochSecondsCutoff = int64(1e12)

// ParseTime parses a timestamp in any of the formats CRM properties arrive
// in: epoch milliseconds (all digits), epoch seconds (all digits, small),
// RFC 3339, or a bare date. Returns false for empty, zero, or unparseable
// input rather than an error, so callers can skip bad records.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return time.Time{}, false
	}

	if isDigits(s) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n <= 0 {
			return time.Time{}, false
		}
		if n < epochSecondsCutoff {
			return time.Unix(n, 0).UTC(), true
		}
		return time.UnixMilli(n).UTC(), true
	}

	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// Bucket assigns t to a quarter of year. Timestamps outside the year return
// None. The zero time always returns None.
func Bucket(t time.Time, year int) Quarter {
	if t.IsZero() {
		return None
	}
	t = t.UTC()
	if t.Year() != year {
		return None
	}
	switch {
	case t.Month() <= time.March:
		return Q1
	case t.Month() <= time.June:
		return Q2
	case t.Month() <= time.September:
		return Q3
	default:
		return Q4
	}
}

// BucketValue parses a raw CRM timestamp value and buckets it in one step.
// Unparseable input returns None.
func BucketValue(v string, year int) Quarter {
	t, ok := ParseTime(v)
	if !ok {
		return None
	}
	return Bucket(t, year)
}

// Range returns the half-open [start, end) interval of a quarter in UTC.
// For None it returns the whole year.
func Range(year int, q Quarter) (start, end time.Time) {
	switch q {
	case Q1:
		return date(year, time.January), date(year, time.April)
	case Q2:
		return date(year, time.April), date(year, time.July)
	case Q3:
		return date(year, time.July), date(year, time.October)
	case Q4:
		return date(year, time.October), date(year+1, time.January)
	default:
		return date(year, time.January), date(year+1, time.January)
	}
}

func date(year int, month time.Month) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
}

// Counts accumulates an integer counter per quarter. The year total is
// always derived from the four cells so it cannot drift from their sum.
type Counts struct {
	Q1 int `json:"q1"`
	Q2 int `json:"q2"`
	Q3 int `json:"q3"`
	Q4 int `json:"q4"`
}

// Add increments the counter for q by n. None is ignored.
func (c *Counts) Add(q Quarter, n int) {
	switch q {
	case Q1:
		c.Q1 += n
	case Q2:
		c.Q2 += n
	case Q3:
		c.Q3 += n
	case Q4:
		c.Q4 += n
	}
}

// Get returns the counter for q, or 0 for None.
func (c Counts) Get(q Quarter) int {
	switch q {
	case Q1:
		return c.Q1
	case Q2:
		return c.Q2
	case Q3:
		return c.Q3
	case Q4:
		return c.Q4
	default:
		return 0
	}
}

// Set overwrites the counter for q. None is ignored.
func (c *Counts) Set(q Quarter, n int) {
	switch q {
	case Q1:
		c.Q1 = n
	case Q2:
		c.Q2 = n
	case Q3:
		c.Q3 = n
	case Q4:
		c.Q4 = n
	}
}

// Total returns the exact sum of the four quarters.
func (c Counts) Total() int {
	return c.Q1 + c.Q2 + c.Q3 + c.Q4
}

// IsZero reports whether every quarter is zero.
func (c Counts) IsZero() bool {
	return c.Q1 == 0 && c.Q2 == 0 && c.Q3 == 0 && c.Q4 == 0
}

// Amounts accumulates a monetary value per quarter.
type Amounts struct {
	Q1 float64 `json:"q1"`
	Q2 float64 `json:"q2"`
	Q3 float64 `json:"q3"`
	Q4 float64 `json:"q4"`
}

// Add increments the amount for q by v. None is ignored.
func (a *Amounts) Add(q Quarter, v float64) {
	switch q {
	case Q1:
		a.Q1 += v
	case Q2:
		a.Q2 += v
	case Q3:
		a.Q3 += v
	case Q4:
		a.Q4 += v
	}
}

// Get returns the amount for q, or 0 for None.
func (a Amounts) Get(q Quarter) float64 {
	switch q {
	case Q1:
		return a.Q1
	case Q2:
		return a.Q2
	case Q3:
		return a.Q3
	case Q4:
		return a.Q4
	default:
		return 0
	}
}

// Total returns the exact sum of the four quarters.
func (a Amounts) Total() float64 {
	return a.Q1 + a.Q2 + a.Q3 + a.Q4
}
