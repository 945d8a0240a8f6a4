// Package interval provides half-open time ranges used throughout the booking engine.
package interval

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalid = errors.New("start time must be before end time")

// Interval is the half-open range [Start, End). Both instants are kept in UTC.
type Interval struct {
	Start time.Time
	End   time.Time
}

// New normalizes both bounds to UTC and rejects empty or inverted ranges.
func New(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, ErrInvalid
	}
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// Overlaps reports whether the two ranges share at least one instant.
// Back-to-back ranges (a.End == b.Start) do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Contains reports whether o lies entirely within i.
func (i Interval) Contains(o Interval) bool {
	return !o.Start.Before(i.Start) && !o.End.After(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// ShiftIn moves the range by the given number of calendar days as observed
// in loc, keeping its duration. Across a daylight saving change the local
// wall-clock start stays fixed while the UTC instant moves.
func (i Interval) ShiftIn(days int, loc *time.Location) Interval {
	if loc == nil {
		loc = time.UTC
	}
	start := i.Start.In(loc).AddDate(0, 0, days).UTC()
	return Interval{Start: start, End: start.Add(i.Duration())}
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339), i.End.Format(time.RFC3339))
}
