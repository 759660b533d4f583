package model

import (
	"fmt"
	"time"
)

// DateLayout is the canonical day format used in storage keys and provider payloads.
const DateLayout = "2006-01-02"

// DailyPrice is one day of Bitcoin price history.
type DailyPrice struct {
	Date      time.Time
	PriceUSD  float64
	MarketCap float64 // 0 when the source doesn't report it
	Volume    float64 // 0 when the source doesn't report it
}

// DateKey returns the storage key for this record's date.
func (p DailyPrice) DateKey() string {
	return p.Date.UTC().Format(DateLayout)
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// DateRange is an inclusive span of calendar days, Start <= End.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange builds a range with both ends normalized to UTC midnight.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: Day(start), End: Day(end)}
}

// IsZero reports whether the range is unset.
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Days returns the number of calendar days in the range, inclusive.
func (r DateRange) Days() int {
	if r.End.Before(r.Start) {
		return 0
	}
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Intersect returns the overlap of r and o. ok is false when they don't overlap.
func (r DateRange) Intersect(o DateRange) (DateRange, bool) {
	out := r
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	if out.End.Before(out.Start) {
		return DateRange{}, false
	}
	return out, true
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// Capability describes the span of dates a provider can answer for.
// A zero Latest means open-ended (data through today).
type Capability struct {
	Earliest time.Time
	Latest   time.Time
}

// Range resolves the capability against a reference day, closing an
// open-ended Latest at that day.
func (c Capability) Range(today time.Time) DateRange {
	latest := c.Latest
	if latest.IsZero() {
		latest = today
	}
	return NewDateRange(c.Earliest, latest)
}
